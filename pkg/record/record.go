// Package record implements the content-derived identity, signature and
// tag conventions for directory records, plus the latest-wins resolver
// for parameterized replaceable records.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudflare/circl/sign/ed25519"

	"dirnet/pkg/types"
)

// canonical serializes the fields covered by the record id in the fixed
// array form the network hashes: [0, owner, created_at, kind, tags, content].
func canonical(r *types.Record) ([]byte, error) {
	return json.Marshal([]interface{}{
		0,
		r.Owner,
		r.CreatedAt,
		r.Kind,
		r.Tags,
		r.Content,
	})
}

// ComputeID returns the sha256 hex identifier of the record's canonical form.
func ComputeID(r *types.Record) (types.RecordID, error) {
	ser, err := canonical(r)
	if err != nil {
		return "", fmt.Errorf("failed to serialize record: %w", err)
	}
	sum := sha256.Sum256(ser)
	return types.RecordID(hex.EncodeToString(sum[:])), nil
}

// Sign fills in the record's Owner, ID and Sig from the private key.
// All other fields must already be set.
func Sign(r *types.Record, priv ed25519.PrivateKey) error {
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return fmt.Errorf("unexpected public key type %T", priv.Public())
	}
	r.Owner = types.OwnerID(hex.EncodeToString(pub))

	id, err := ComputeID(r)
	if err != nil {
		return err
	}
	r.ID = id

	digest, err := hex.DecodeString(string(id))
	if err != nil {
		return fmt.Errorf("failed to decode record id: %w", err)
	}
	r.Sig = hex.EncodeToString(ed25519.Sign(priv, digest))
	return nil
}

// Verify checks that the record's id matches its contents and that the
// signature verifies against the owner key. Records that fail either
// check must not be trusted.
func Verify(r *types.Record) bool {
	id, err := ComputeID(r)
	if err != nil || id != r.ID {
		return false
	}

	pub, err := hex.DecodeString(string(r.Owner))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(r.Sig)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	digest, err := hex.DecodeString(string(r.ID))
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), digest, sig)
}

// NewDeletion builds an unsigned deletion record referencing the given ids.
func NewDeletion(ids ...types.RecordID) *types.Record {
	tags := make(types.Tags, 0, len(ids))
	for _, id := range ids {
		tags = append(tags, types.Tag{"e", string(id)})
	}
	return &types.Record{
		Kind:      types.KindDeletion,
		CreatedAt: time.Now().Unix(),
		Tags:      tags,
	}
}
