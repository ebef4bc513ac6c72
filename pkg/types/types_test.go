package types

import (
	"encoding/json"
	"testing"
)

func TestTagsHelpers(t *testing.T) {
	tags := Tags{
		{"d", "svc"},
		{"cap", "resize"},
		{"cap", "crop"},
		{"l", "service-quality", "svc.trust"},
		{"broken"},
	}

	if got := tags.Get("d"); got != "svc" {
		t.Errorf("Get(d): %q", got)
	}
	if got := tags.Get("missing"); got != "" {
		t.Errorf("Get(missing): %q", got)
	}
	if got := tags.All("cap"); len(got) != 2 || got[1] != "crop" {
		t.Errorf("All(cap): %v", got)
	}
	if _, ok := tags.Find("l", 3); !ok {
		t.Error("Find(l, 3) should match")
	}
	if _, ok := tags.Find("broken", 2); ok {
		t.Error("Find(broken, 2) should not match a 1-element tag")
	}
}

func TestFilterJSON_TagKeys(t *testing.T) {
	f := Filter{
		Kinds:   []int{31990},
		Authors: []OwnerID{"alice"},
		Tags:    map[string][]string{"d": {"svc"}},
	}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("output not an object: %v", err)
	}
	if _, ok := raw["#d"]; !ok {
		t.Errorf("missing #d key in %s", data)
	}
	if _, ok := raw["Tags"]; ok {
		t.Errorf("raw Tags field leaked into %s", data)
	}

	var back Filter
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Tags["d"][0] != "svc" {
		t.Errorf("tag filter lost: %+v", back.Tags)
	}
	if len(back.Kinds) != 1 || back.Kinds[0] != 31990 {
		t.Errorf("kinds lost: %+v", back.Kinds)
	}
}

func TestFilterJSON_TagsOnly(t *testing.T) {
	f := Filter{Tags: map[string][]string{"p": {"bob"}, "L": {"svc.trust"}}}

	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var back Filter
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Tags["p"][0] != "bob" || back.Tags["L"][0] != "svc.trust" {
		t.Errorf("tag filters lost: %+v", back.Tags)
	}
}

func TestRecordReplaceable(t *testing.T) {
	cases := []struct {
		kind int
		want bool
	}{
		{KindDeletion, false},
		{KindAttestation, false},
		{ReplaceableKindMin, true},
		{KindServiceListing, true},
		{ReplaceableKindMax - 1, true},
		{ReplaceableKindMax, false},
	}
	for _, c := range cases {
		r := Record{Kind: c.kind}
		if r.IsReplaceable() != c.want {
			t.Errorf("kind %d: replaceable = %v, want %v", c.kind, !c.want, c.want)
		}
	}
}

func TestPublishOutcomeAllFailed(t *testing.T) {
	if (PublishOutcome{Total: 0}).AllFailed() {
		t.Error("zero-relay outcome should not count as all-failed")
	}
	if !(PublishOutcome{Total: 2, SuccessCount: 0}).AllFailed() {
		t.Error("0/2 should be all-failed")
	}
	if (PublishOutcome{Total: 2, SuccessCount: 1}).AllFailed() {
		t.Error("1/2 should not be all-failed")
	}
}
