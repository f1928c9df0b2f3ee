package shared

import (
	"context"
	"sort"
)

// KeyLocker grants exclusive access to a set of named keys.
//
// LockKeys blocks until every key is held or ctx is done. Implementations
// acquire keys in SortKeys order so that two callers sharing keys can never
// deadlock. The returned function releases all keys and is safe to call once.
type KeyLocker interface {
	LockKeys(ctx context.Context, keys ...string) (unlock func(), err error)
}

// SortKeys returns the keys deduplicated and in lexicographic order.
func SortKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
