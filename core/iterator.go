package core

import "errors"

// Iterator walks a snapshot of the keys of a Dictionary or
// ConcurrentDictionary, reading each value when it is reached. Keys removed
// after the snapshot are skipped.
//
//	it := d.Iterate()
//	for it.Next() {
//		fmt.Println(it.Key(), it.Value())
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
type Iterator struct {
	keys  []string
	pos   int
	get   func(string) ([]byte, error)
	key   string
	value []byte
	err   error
}

func newIterator(keys []string, get func(string) ([]byte, error)) *Iterator {
	return &Iterator{keys: keys, get: get}
}

func errIterator(err error) *Iterator {
	return &Iterator{err: err}
}

// Next advances to the next live key. It returns false when the snapshot is
// exhausted or a read fails; Err tells which.
func (it *Iterator) Next() bool {
	for it.err == nil && it.pos < len(it.keys) {
		key := it.keys[it.pos]
		it.pos++

		value, err := it.get(key)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			it.err = err
			return false
		}

		it.key, it.value = key, value
		return true
	}
	it.key, it.value = "", nil
	return false
}

func (it *Iterator) Key() string   { return it.key }
func (it *Iterator) Value() []byte { return it.value }
func (it *Iterator) Err() error    { return it.err }
