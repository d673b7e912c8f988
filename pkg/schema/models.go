package schema

// Collection names
const (
	CollUsers         = "users"
	CollRoles         = "roles"
	CollPeople        = "people"
	CollParties       = "parties"
	CollCandidates    = "candidates"
	CollElections     = "elections"
	CollVotingSystems = "votingsystems"
	CollCanvasses     = "canvasses"
	CollAssignments   = "assignments"
	CollSurveys       = "surveys"
	CollResults       = "results"
	CollNotices       = "notices"
	CollAddresses     = "addresses"
	CollContacts      = "contacts"
)

// Registry holds the canonical relationship tree for every entity type.
// Built once at process start and treated as read-only shared state.
type Registry struct {
	Address       *Node
	ContactDetail *Node
	Role          *Node
	VotingSystem  *Node
	Notice        *Node
	Person        *Node
	User          *Node
	Party         *Node
	Candidate     *Node
	Election      *Node
	Survey        *Node
	Result        *Node
	Assignment    *Node
	Canvass       *Node
}

// BuildRegistry composes all entity trees. Leaf entities build standalone
// trees first; composite entities mount clones of those trees as child
// branches, so every mount point owns an independent copy.
func BuildRegistry() *Registry {
	addressModel := &Model{
		Name:       "address",
		Collection: CollAddresses,
		Fields: map[string]Kind{
			"line1":     KindText,
			"line2":     KindText,
			"city":      KindText,
			"region":    KindText,
			"postcode":  KindText,
			"country":   KindText,
			"latitude":  KindNumeric,
			"longitude": KindNumeric,
		},
	}

	contactModel := &Model{
		Name:       "contactDetail",
		Collection: CollContacts,
		Fields: map[string]Kind{
			"email":     KindText,
			"phone":     KindText,
			"mobile":    KindText,
			"preferred": KindText,
		},
	}

	roleModel := &Model{
		Name:       "role",
		Collection: CollRoles,
		Fields: map[string]Kind{
			"name":  KindText,
			"level": KindNumeric,
		},
	}

	votingSystemModel := &Model{
		Name:       "votingSystem",
		Collection: CollVotingSystems,
		Fields: map[string]Kind{
			"name":        KindText,
			"description": KindText,
		},
	}

	noticeModel := &Model{
		Name:       "notice",
		Collection: CollNotices,
		Fields: map[string]Kind{
			"title":     KindText,
			"body":      KindText,
			"audience":  KindText,
			"expiresAt": KindNumeric,
		},
	}

	personModel := &Model{
		Name:       "person",
		Collection: CollPeople,
		Fields: map[string]Kind{
			"firstname":   KindText,
			"lastname":    KindText,
			"middlenames": KindText,
			"gender":      KindText,
			"age":         KindNumeric,
			"party":       KindID,
		},
		Refs: map[string]string{"party": CollParties},
	}

	userModel := &Model{
		Name:       "user",
		Collection: CollUsers,
		Fields: map[string]Kind{
			"username":     KindText,
			"email":        KindText,
			"source":       KindText,
			"passwordHash": KindText,
			"role":         KindID,
			"person":       KindID,
		},
		Refs:   map[string]string{"role": CollRoles, "person": CollPeople},
		Unique: []string{"username"},
		Hidden: []string{"passwordHash"},
	}

	partyModel := &Model{
		Name:       "party",
		Collection: CollParties,
		Fields: map[string]Kind{
			"name":         KindText,
			"abbreviation": KindText,
			"colour":       KindText,
		},
	}

	candidateModel := &Model{
		Name:       "candidate",
		Collection: CollCandidates,
		Fields: map[string]Kind{
			"candidateName": KindText,
			"party":         KindID,
			"election":      KindID,
			"person":        KindID,
		},
		Refs: map[string]string{
			"party":    CollParties,
			"election": CollElections,
			"person":   CollPeople,
		},
	}

	electionModel := &Model{
		Name:       "election",
		Collection: CollElections,
		Fields: map[string]Kind{
			"name":         KindText,
			"electionDate": KindTime,
			"votingSystem": KindID,
		},
		Refs: map[string]string{"votingSystem": CollVotingSystems},
	}

	canvassModel := &Model{
		Name:       "canvass",
		Collection: CollCanvasses,
		Fields: map[string]Kind{
			"name":      KindText,
			"status":    KindText,
			"startDate": KindTime,
			"endDate":   KindTime,
			"election":  KindID,
		},
		Refs: map[string]string{"election": CollElections},
	}

	assignmentModel := &Model{
		Name:       "canvassAssignment",
		Collection: CollAssignments,
		Fields: map[string]Kind{
			"ward":      KindText,
			"canvasser": KindID,
			"startDate": KindTime,
			"endDate":   KindTime,
			"expiresAt": KindNumeric,
		},
		Refs: map[string]string{"canvasser": CollUsers},
	}

	surveyModel := &Model{
		Name:       "survey",
		Collection: CollSurveys,
		Fields: map[string]Kind{
			"title":   KindText,
			"version": KindNumeric,
			"canvass": KindID,
		},
	}

	resultModel := &Model{
		Name:       "surveyResult",
		Collection: CollResults,
		Fields: map[string]Kind{
			"survey":   KindID,
			"person":   KindID,
			"response": KindText,
			"score":    KindNumeric,
		},
		Refs: map[string]string{"person": CollPeople},
	}

	// Leaf trees
	address := NewNode(addressModel)
	contact := NewNode(contactModel)
	role := NewNode(roleModel)
	votingSystem := NewNode(votingSystemModel)
	notice := NewNode(noticeModel)

	// Composite trees, leaves first
	person := NewNode(personModel)
	person.AddChildBranch(address, "address")
	person.AddChildBranch(contact, "contactDetails")
	person.Populate = RefPopulator(personModel)

	user := NewNode(userModel)
	user.AddChildBranch(person, "person")
	user.AddChildBranch(role, "role")
	user.Projection = map[string]bool{"passwordHash": false}
	user.Populate = RefPopulator(userModel)

	party := NewNode(partyModel)
	party.AddChildBranch(address, "address")

	candidate := NewNode(candidateModel)
	candidate.AddChildBranch(person, "person")
	candidate.Populate = RefPopulator(candidateModel)

	election := NewNode(electionModel)
	election.AddChildBranch(votingSystem, "votingSystem")
	election.Populate = RefPopulator(electionModel)

	result := NewNode(resultModel)
	result.Populate = RefPopulator(resultModel)

	survey := NewNode(surveyModel)
	survey.AddChildBranch(result, "results")

	assignment := NewNode(assignmentModel)
	assignment.AddChildBranch(address, "address")
	assignment.Populate = RefPopulator(assignmentModel)

	canvass := NewNode(canvassModel)
	canvass.AddChildBranch(assignment, "assignments")
	canvass.AddChildBranch(survey, "surveys")
	canvass.Populate = RefPopulator(canvassModel)

	return &Registry{
		Address:       address,
		ContactDetail: contact,
		Role:          role,
		VotingSystem:  votingSystem,
		Notice:        notice,
		Person:        person,
		User:          user,
		Party:         party,
		Candidate:     candidate,
		Election:      election,
		Survey:        survey,
		Result:        result,
		Assignment:    assignment,
		Canvass:       canvass,
	}
}
