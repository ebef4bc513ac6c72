package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

type RecordID string
type OwnerID string
type SubscriptionID string

// Record kinds understood by this client. The relay network itself is
// kind-agnostic; these are the kinds the directory layer produces and
// consumes.
const (
	KindDeletion       = 5
	KindAttestation    = 1985
	KindServiceListing = 31990
)

// Parameterized-replaceable kind range. Records in this range are
// identified by (owner, kind, discriminator tag) and newer records
// supersede older ones.
const (
	ReplaceableKindMin = 30000
	ReplaceableKindMax = 40000
)

// Record is a signed, immutable unit of data as relays store and serve it.
// ID and Sig are derived from the remaining fields; a record must verify
// before it is trusted.
type Record struct {
	ID        RecordID `json:"id"`
	Owner     OwnerID  `json:"pubkey"`
	CreatedAt int64    `json:"created_at"`
	Kind      int      `json:"kind"`
	Tags      Tags     `json:"tags"`
	Content   string   `json:"content"`
	Sig       string   `json:"sig"`
}

type Tag []string
type Tags []Tag

// Get returns the second element of the first tag whose first element is
// name, or "" if no such tag exists.
func (ts Tags) Get(name string) string {
	for _, t := range ts {
		if len(t) >= 2 && t[0] == name {
			return t[1]
		}
	}
	return ""
}

// All returns the second element of every tag named name, in tag order.
func (ts Tags) All(name string) []string {
	var out []string
	for _, t := range ts {
		if len(t) >= 2 && t[0] == name {
			out = append(out, t[1])
		}
	}
	return out
}

// Find returns the first tag named name with at least n elements.
func (ts Tags) Find(name string, n int) (Tag, bool) {
	for _, t := range ts {
		if len(t) >= n && t[0] == name {
			return t, true
		}
	}
	return nil, false
}

// Discriminator returns the record's "d" tag value. For parameterized
// replaceable kinds an absent tag is equivalent to an empty one.
func (r *Record) Discriminator() string {
	return r.Tags.Get("d")
}

// IsReplaceable reports whether the record's kind is in the
// parameterized-replaceable range.
func (r *Record) IsReplaceable() bool {
	return r.Kind >= ReplaceableKindMin && r.Kind < ReplaceableKindMax
}

// Filter is the predicate sent verbatim to relays. Relays apply it
// server-side; the client never re-filters on these fields except for
// fields relays cannot filter on (price, trust).
//
// Tag constraints marshal as "#<name>" keys, so the zero map key "t"
// becomes "#t" on the wire.
type Filter struct {
	IDs     []RecordID          `json:"ids,omitempty"`
	Kinds   []int               `json:"kinds,omitempty"`
	Authors []OwnerID           `json:"authors,omitempty"`
	Since   int64               `json:"since,omitempty"`
	Until   int64               `json:"until,omitempty"`
	Limit   int                 `json:"limit,omitempty"`
	Tags    map[string][]string `json:"-"`
}

type filterAlias Filter

func (f Filter) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(filterAlias(f))
	if err != nil {
		return nil, err
	}
	if len(f.Tags) == 0 {
		return base, nil
	}

	// Splice "#name" keys into the object. Keys are sorted so the output
	// is deterministic.
	names := make([]string, 0, len(f.Tags))
	for name := range f.Tags {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.Write(base[:len(base)-1]) // drop closing brace
	for _, name := range names {
		vals, err := json.Marshal(f.Tags[name])
		if err != nil {
			return nil, err
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:%s", "#"+name, vals)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Filter) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*filterAlias)(f)); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key, val := range raw {
		if len(key) < 2 || key[0] != '#' {
			continue
		}
		var vals []string
		if err := json.Unmarshal(val, &vals); err != nil {
			return fmt.Errorf("tag filter %s: %w", key, err)
		}
		if f.Tags == nil {
			f.Tags = make(map[string][]string)
		}
		f.Tags[key[1:]] = vals
	}
	return nil
}

// TrustScore is derived per query and never persisted.
type TrustScore struct {
	Score         int              `json:"score"`
	AttesterCount int              `json:"attester_count"`
	Attesters     []AttesterDetail `json:"attesters"`
}

// AttesterDetail records one attester's contribution to a score.
type AttesterDetail struct {
	Attester  OwnerID `json:"attester"`
	ClaimType string  `json:"claim_type"`
	Weight    float64 `json:"weight"`
}

// PublishOutcome aggregates per-relay acknowledgments for one publish call.
type PublishOutcome struct {
	SuccessCount   int      `json:"success_count"`
	FailureReasons []string `json:"failure_reasons"`
	Total          int      `json:"total"`
}

// AllFailed reports whether no relay accepted the record.
func (o PublishOutcome) AllFailed() bool {
	return o.Total > 0 && o.SuccessCount == 0
}
