package record

import (
	"encoding/hex"
	"testing"

	"github.com/cloudflare/circl/sign/ed25519"

	"dirnet/pkg/types"
)

func testKey(seed byte) ed25519.PrivateKey {
	var s [ed25519.SeedSize]byte
	s[0] = seed
	return ed25519.NewKeyFromSeed(s[:])
}

func TestSignAndVerify(t *testing.T) {
	rec := &types.Record{
		Kind:      types.KindServiceListing,
		CreatedAt: 1700000000,
		Tags:      types.Tags{{"d", "imgproc"}, {"cap", "resize"}},
		Content:   "image processing",
	}
	if err := Sign(rec, testKey(1)); err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if rec.ID == "" || rec.Sig == "" || rec.Owner == "" {
		t.Fatal("sign left derived fields empty")
	}
	if !Verify(rec) {
		t.Fatal("freshly signed record does not verify")
	}
}

func TestVerify_RejectsTampering(t *testing.T) {
	rec := &types.Record{
		Kind:      types.KindServiceListing,
		CreatedAt: 1700000000,
		Tags:      types.Tags{{"d", "imgproc"}},
		Content:   "original",
	}
	if err := Sign(rec, testKey(1)); err != nil {
		t.Fatal(err)
	}

	tampered := *rec
	tampered.Content = "modified"
	if Verify(&tampered) {
		t.Error("record with altered content verified")
	}

	wrongOwner := *rec
	otherPub := testKey(2).Public().(ed25519.PublicKey)
	wrongOwner.Owner = types.OwnerID(hex.EncodeToString(otherPub))
	if Verify(&wrongOwner) {
		t.Error("record with swapped owner verified")
	}
}

func TestVerify_RejectsGarbage(t *testing.T) {
	rec := &types.Record{
		ID:    "not-hex",
		Owner: "also-not-hex",
		Sig:   "nope",
		Kind:  1,
	}
	if Verify(rec) {
		t.Error("garbage record verified")
	}
}

func TestServiceRoundTrip(t *testing.T) {
	svc := &Service{
		Name:         "imgproc",
		About:        "image processing",
		Capabilities: []string{"resize", "crop"},
		Hashtags:     []string{"images"},
		RequestKinds: []string{"5100"},
		PriceAmount:  250,
		PriceUnit:    "sats",
	}

	rec := svc.ToRecord()
	if err := Sign(rec, testKey(3)); err != nil {
		t.Fatal(err)
	}

	got, err := ServiceFromRecord(rec)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Name != svc.Name || got.About != svc.About {
		t.Errorf("name/about mismatch: %+v", got)
	}
	if len(got.Capabilities) != 2 || got.Capabilities[0] != "resize" {
		t.Errorf("capabilities mismatch: %v", got.Capabilities)
	}
	if got.PriceAmount != 250 || got.PriceUnit != "sats" {
		t.Errorf("price mismatch: %d %s", got.PriceAmount, got.PriceUnit)
	}
}

func TestServiceFromRecord_WrongKind(t *testing.T) {
	rec := &types.Record{Kind: types.KindAttestation}
	if _, err := ServiceFromRecord(rec); err == nil {
		t.Error("expected error decoding a non-listing record")
	}
}

func TestClaimType(t *testing.T) {
	att := NewAttestation("bob", ClaimServiceQuality, "great work")
	if got := ClaimType(att); got != ClaimServiceQuality {
		t.Errorf("expected %s, got %s", ClaimServiceQuality, got)
	}

	// No namespace tag at all: default.
	bare := &types.Record{Kind: types.KindAttestation, Tags: types.Tags{{"p", "bob"}}}
	if got := ClaimType(bare); got != ClaimGeneralTrust {
		t.Errorf("expected default %s, got %s", ClaimGeneralTrust, got)
	}

	// Malformed label tag (no namespace element): default.
	malformed := &types.Record{Kind: types.KindAttestation, Tags: types.Tags{{"l", "service-quality"}}}
	if got := ClaimType(malformed); got != ClaimGeneralTrust {
		t.Errorf("expected default %s, got %s", ClaimGeneralTrust, got)
	}

	// Foreign namespace: default.
	foreign := &types.Record{Kind: types.KindAttestation, Tags: types.Tags{{"l", "spam", "other.ns"}}}
	if got := ClaimType(foreign); got != ClaimGeneralTrust {
		t.Errorf("expected default %s, got %s", ClaimGeneralTrust, got)
	}
}

func TestNewDeletion(t *testing.T) {
	del := NewDeletion("abc", "def")
	if del.Kind != types.KindDeletion {
		t.Errorf("expected kind %d, got %d", types.KindDeletion, del.Kind)
	}
	refs := del.Tags.All("e")
	if len(refs) != 2 || refs[0] != "abc" || refs[1] != "def" {
		t.Errorf("unexpected deletion refs: %v", refs)
	}
}
