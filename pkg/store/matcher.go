package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// patternCacheSize bounds the compiled-pattern cache. Request filters repeat
// heavily (the same UI filters fire on every page load), so a small cache
// absorbs nearly all compilations.
const patternCacheSize = 256

var (
	patternCache     *lru.Cache[string, *regexp.Regexp]
	patternCacheOnce sync.Once
)

func compilePattern(value string) *regexp.Regexp {
	patternCacheOnce.Do(func() {
		patternCache, _ = lru.New[string, *regexp.Regexp](patternCacheSize)
	})

	if re, ok := patternCache.Get(value); ok {
		return re
	}

	re, err := regexp.Compile("(?i)" + value)
	if err != nil {
		// Not a valid pattern; fall back to a literal match
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(value))
	}
	patternCache.Add(value, re)
	return re
}

// Match reports whether the document satisfies the filter
func Match(doc Document, f Filter) bool {
	for _, c := range f.Conds {
		if !matchCond(doc, c) {
			return false
		}
	}
	for _, g := range f.Groups {
		if !matchGroup(doc, g) {
			return false
		}
	}
	return true
}

func matchGroup(doc Document, g Group) bool {
	switch g.Op {
	case GroupOr:
		for _, clause := range g.Clauses {
			if Match(doc, clause) {
				return true
			}
		}
		return len(g.Clauses) == 0
	case GroupAnd:
		for _, clause := range g.Clauses {
			if !Match(doc, clause) {
				return false
			}
		}
		return true
	case GroupNor:
		for _, clause := range g.Clauses {
			if Match(doc, clause) {
				return false
			}
		}
		return true
	}
	return false
}

func matchCond(doc Document, c Cond) bool {
	value, present := doc[c.Field]

	switch c.Op {
	case OpBlank:
		return !present || strings.TrimSpace(asString(value)) == ""
	case OpNotBlank:
		return present && strings.TrimSpace(asString(value)) != ""
	}

	switch c.Op {
	case OpEq:
		if fieldNum, condNum, ok := bothNumeric(value, c.Value); ok {
			return fieldNum == condNum
		}
		return asString(value) == asString(c.Value)
	case OpNe:
		if fieldNum, condNum, ok := bothNumeric(value, c.Value); ok {
			return fieldNum != condNum
		}
		return asString(value) != asString(c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		fieldNum, condNum, ok := bothNumeric(value, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGt:
			return fieldNum > condNum
		case OpGte:
			return fieldNum >= condNum
		case OpLt:
			return fieldNum < condNum
		default:
			return fieldNum <= condNum
		}
	case OpContains:
		return compilePattern(asString(c.Value)).MatchString(asString(value))
	case OpNotContains:
		return !strings.Contains(
			strings.ToLower(asString(value)),
			strings.ToLower(asString(c.Value)),
		)
	case OpIn:
		needle := asString(value)
		switch set := c.Value.(type) {
		case []string:
			for _, member := range set {
				if member == needle {
					return true
				}
			}
		case []interface{}:
			for _, member := range set {
				if asString(member) == needle {
					return true
				}
			}
		}
		return false
	}
	return false
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	}
	return fmt.Sprintf("%v", v)
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		return parsed, err == nil
	}
	return 0, false
}

func bothNumeric(a, b interface{}) (float64, float64, bool) {
	x, okA := asNumber(a)
	y, okB := asNumber(b)
	return x, y, okA && okB
}
