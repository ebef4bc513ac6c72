// Package keys handles the signing keypair: hex-encoded ed25519 seed in
// a 0600 file, generated on first use.
package keys

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudflare/circl/sign/ed25519"
)

// Keypair wraps the signing key and its derived public identity.
type Keypair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// OwnerID returns the hex public key, the identity records are owned by.
func (k *Keypair) OwnerID() string {
	return hex.EncodeToString(k.Public)
}

// Load reads a keypair from path. The file holds the 32-byte seed as hex.
func Load(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key file %s: %w", path, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key file %s: expected %d-byte seed, got %d", path, ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keypair{Private: priv, Public: priv.Public().(ed25519.PublicKey)}, nil
}

// Generate creates a new keypair and writes its seed to path with 0600
// permissions, creating parent directories as needed.
func Generate(path string) (*Keypair, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(seed)+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keypair{Private: priv, Public: priv.Public().(ed25519.PublicKey)}, nil
}

// LoadOrGenerate loads the keypair at path, generating one if the file
// does not exist yet.
func LoadOrGenerate(path string) (*Keypair, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Generate(path)
	}
	return Load(path)
}
