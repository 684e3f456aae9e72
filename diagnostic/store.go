package diagnostic

import (
	lru "github.com/hashicorp/golang-lru"
)

// Store keeps the most recent diagnostics, keyed by ID, so an operator holding
// a request's diagnostic ID can look the full record up. Older entries are
// evicted once size is reached.
type Store struct {
	cache *lru.Cache
}

func NewStore(size int) (*Store, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Store{cache: cache}, nil
}

func (s *Store) Record(d Diagnostic) {
	s.cache.Add(d.ID, d)
}

func (s *Store) Get(id string) (Diagnostic, bool) {
	v, ok := s.cache.Get(id)
	if !ok {
		return Diagnostic{}, false
	}
	return v.(Diagnostic), true
}

func (s *Store) Len() int { return s.cache.Len() }

// Recent returns up to n stored diagnostics, newest first. n <= 0 returns all.
func (s *Store) Recent(n int) []Diagnostic {
	keys := s.cache.Keys()
	if n <= 0 || n > len(keys) {
		n = len(keys)
	}
	out := make([]Diagnostic, 0, n)
	for i := len(keys) - 1; i >= 0 && len(out) < n; i-- {
		if v, ok := s.cache.Peek(keys[i]); ok {
			out = append(out, v.(Diagnostic))
		}
	}
	return out
}
