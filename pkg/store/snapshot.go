package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SaveSnapshot writes every collection to dir as <collection>.json, one
// document array per file. The write goes through a temp file and rename
// so a crash mid-save never leaves a torn snapshot behind.
func (m *Memory) SaveSnapshot(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, docs := range m.collections {
		list := make([]Document, 0, len(docs))
		for _, doc := range docs {
			list = append(list, doc)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })

		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal collection %s: %w", name, err)
		}

		target := filepath.Join(dir, name+".json")
		tmp := target + ".tmp"
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			return fmt.Errorf("write collection %s: %w", name, err)
		}
		if err := os.Rename(tmp, target); err != nil {
			return fmt.Errorf("finalise collection %s: %w", name, err)
		}
	}
	return nil
}

// LoadSnapshot reads every *.json file in dir into the store, replacing
// any collection of the same name. A missing directory loads nothing.
func (m *Memory) LoadSnapshot(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot directory: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read collection %s: %w", name, err)
		}

		var list []Document
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("unmarshal collection %s: %w", name, err)
		}

		docs := make(map[string]Document, len(list))
		for _, doc := range list {
			if id := doc.ID(); id != "" {
				docs[id] = doc
			}
		}
		m.collections[name] = docs
	}
	return nil
}
