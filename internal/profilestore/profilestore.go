// Package profilestore serves the administrator-defined profile map back
// to clients verbatim (spec.md §4.10).
package profilestore

// Store is a thin, read-only wrapper over the YAML-decoded profile map
// loaded at startup.
type Store struct {
	profiles map[string]interface{}
}

// New wraps profiles for serving. A nil map is normalized to empty so
// handlers can always marshal a JSON object rather than null.
func New(profiles map[string]interface{}) *Store {
	if profiles == nil {
		profiles = map[string]interface{}{}
	}
	return &Store{profiles: profiles}
}

// All returns the full profile map, verbatim.
func (s *Store) All() map[string]interface{} {
	return s.profiles
}
