package core

import (
	"github.com/0xRadioAc7iv/go-filebacked/internal/lock"
	"github.com/0xRadioAc7iv/go-filebacked/internal/record"
)

const (
	CompactFileSuffix = ".compact"  // Temporary file written by Compact
	LockFileSuffix    = lock.Suffix // Side file carrying the advisory lock

	// Remainders smaller than an empty record could never be parsed as a
	// slot of their own, so the allocator never splits them off.
	minFragmentSize = record.MinFrameSizeBytes

	// Number of unlocked reads a ConcurrentDictionary attempts before it
	// falls back to reading under the read lock.
	maxOptimisticReads = 3
)
