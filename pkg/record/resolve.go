package record

import (
	"fmt"

	"dirnet/pkg/types"
)

// identityKey is the semantic identity a replaceable record is keyed by.
// Non-replaceable records key on their id, so they pass through untouched.
func identityKey(r *types.Record) string {
	if r.IsReplaceable() {
		return fmt.Sprintf("%s|%d|%s", r.Owner, r.Kind, r.Discriminator())
	}
	return string(r.ID)
}

// supersedes reports whether a should replace b under latest-wins.
// Ties on CreatedAt break toward the lexicographically greatest id,
// which keeps the result independent of arrival order.
func supersedes(a, b *types.Record) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID > b.ID
}

// ResolveLatest reduces a record collection to the current record per
// replaceable identity (owner, kind, discriminator). The function is pure
// and idempotent; output order follows first appearance of each identity
// in the input.
func ResolveLatest(records []types.Record) []types.Record {
	latest := make(map[string]int, len(records))
	order := make([]string, 0, len(records))

	for i := range records {
		key := identityKey(&records[i])
		j, seen := latest[key]
		if !seen {
			latest[key] = i
			order = append(order, key)
			continue
		}
		if supersedes(&records[i], &records[j]) {
			latest[key] = i
		}
	}

	out := make([]types.Record, 0, len(order))
	for _, key := range order {
		out = append(out, records[latest[key]])
	}
	return out
}
