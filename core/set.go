package core

import "iter"

// Set is a persistent set of non-empty strings. Members are records with an
// empty value.
type Set struct {
	t *table
}

func OpenSet(path string, opts ...Option) (*Set, error) {
	t, err := openTable(path, newConfig(opts))
	if err != nil {
		return nil, err
	}
	return &Set{t: t}, nil
}

func (s *Set) Path() string { return s.t.path }

// Add inserts member and reports whether it was newly added. Adding a member
// that is already present writes nothing.
func (s *Set) Add(member string) (bool, error) {
	if err := validateKey(member); err != nil {
		return false, err
	}
	if err := s.t.checkWritable(); err != nil {
		return false, err
	}

	if _, ok := s.t.keys.Lookup(member); ok {
		return false, nil
	}
	if err := s.t.put(member, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Set) Contains(member string) (bool, error) {
	if err := validateKey(member); err != nil {
		return false, err
	}
	if err := s.t.checkOpen(); err != nil {
		return false, err
	}

	_, ok := s.t.keys.Lookup(member)
	return ok, nil
}

// Remove deletes member and reports whether it was present.
func (s *Set) Remove(member string) (bool, error) {
	if err := validateKey(member); err != nil {
		return false, err
	}
	if err := s.t.checkWritable(); err != nil {
		return false, err
	}
	return s.t.remove(member)
}

// Size is the number of members, or zero once the set is closed.
func (s *Set) Size() int {
	if s.t.closed {
		return 0
	}
	return s.t.keys.Len()
}

// All ranges over the members present at the time of the call, skipping any
// removed while ranging.
func (s *Set) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		if s.t.closed {
			return
		}
		for _, m := range s.t.keys.Keys() {
			if _, ok := s.t.keys.Lookup(m); !ok {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

func (s *Set) Compact() error {
	if err := s.t.checkWritable(); err != nil {
		return err
	}
	return s.t.compact()
}

func (s *Set) Stats() Stats { return s.t.stats(s.Size()) }
func (s *Set) Sync() error  { return s.t.sync() }
func (s *Set) Close() error { return s.t.close() }
