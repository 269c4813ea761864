package chat

import "github.com/google/uuid"

// StaticCapabilities is a CapabilityChecker backed by a fixed grant
// table, for deployments without an external permission system.
type StaticCapabilities struct {
	grants map[uuid.UUID]map[string]struct{}
}

// NewStaticCapabilities parses a uuid -> capabilities table. Entries
// with unparseable UUIDs are dropped; the returned slice names them so
// the caller can log.
func NewStaticCapabilities(table map[string][]string) (*StaticCapabilities, []string) {
	s := &StaticCapabilities{grants: make(map[uuid.UUID]map[string]struct{}, len(table))}
	var bad []string
	for raw, caps := range table {
		id, err := uuid.Parse(raw)
		if err != nil {
			bad = append(bad, raw)
			continue
		}
		set := make(map[string]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		s.grants[id] = set
	}
	return s, bad
}

func (s *StaticCapabilities) Has(user uuid.UUID, capability string) bool {
	_, ok := s.grants[user][capability]
	return ok
}
