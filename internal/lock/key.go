package lock

import (
	"hash/fnv"
	"strconv"
)

// Key maps a lock label to the 64-bit key used by the lock service.
// The mapping is FNV-1a over the label bytes and is stable across processes.
func Key(label string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(label))
	return int64(h.Sum64())
}

// KeyString returns the decimal form of Key(label), used for key-value backends.
func KeyString(label string) string {
	return formatKey(Key(label))
}

func formatKey(key int64) string {
	return strconv.FormatInt(key, 10)
}
