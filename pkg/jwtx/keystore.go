package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// signingKeyRecord is the on-disk form of the process signing key:
// algorithm tag, raw-url-base64 seed and public point, creation timestamp.
type signingKeyRecord struct {
	Algorithm  string    `json:"algorithm"`
	Kid        string    `json:"kid"`
	PrivateKey string    `json:"private_key"`
	PublicKey  string    `json:"public_key"`
	CreatedAt  time.Time `json:"created_at"`
}

// KeyStore owns the process's single long-lived Ed25519 signing keypair.
// The key is loaded from the configured path on start; if the file is
// absent or unparseable a fresh keypair is generated and persisted
// atomically. The fields are written once before the store is published,
// so reads need no locking.
type KeyStore struct {
	path    string
	kid     string
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	created time.Time
	logger  *slog.Logger
}

// LoadOrCreateKeyStore loads the persisted signing key, falling back to
// generate-and-persist. A persist failure is logged and ignored: the
// in-memory key still serves this process, the next restart regenerates.
func LoadOrCreateKeyStore(path string, logger *slog.Logger) (*KeyStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if ks, err := loadKeyStore(path, logger); err == nil {
		logger.Info("signing key loaded", "kid", ks.kid, "path", path)
		return ks, nil
	} else if !os.IsNotExist(err) {
		logger.Warn("signing key unreadable, generating a new one", "path", path, "err", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("jwtx: generate signing key: %w", err)
	}

	ks := &KeyStore{
		path:    path,
		kid:     newKid(),
		priv:    priv,
		pub:     pub,
		created: time.Now().UTC(),
		logger:  logger,
	}

	if err := ks.persist(); err != nil {
		logger.Warn("signing key persist failed, key is memory-only until restart", "path", path, "err", err)
	} else {
		logger.Info("signing key generated", "kid", ks.kid, "path", path)
	}

	return ks, nil
}

func loadKeyStore(path string, logger *slog.Logger) (*KeyStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rec signingKeyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse key record: %w", err)
	}
	if rec.Algorithm != AlgEdDSA || rec.Kid == "" {
		return nil, fmt.Errorf("unexpected key record (alg=%q)", rec.Algorithm)
	}

	seed, err := base64.RawURLEncoding.DecodeString(rec.PrivateKey)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("bad private key encoding")
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	// The key is derived from the seed. A stored public point that decodes
	// but does not match it rejects the whole record.
	if stored, err := base64.RawURLEncoding.DecodeString(rec.PublicKey); err == nil && len(stored) == ed25519.PublicKeySize {
		if !pub.Equal(ed25519.PublicKey(stored)) {
			return nil, fmt.Errorf("public key does not match private seed")
		}
	}

	return &KeyStore{
		path:    path,
		kid:     rec.Kid,
		priv:    priv,
		pub:     pub,
		created: rec.CreatedAt,
		logger:  logger,
	}, nil
}

func (k *KeyStore) persist() error {
	rec := signingKeyRecord{
		Algorithm:  AlgEdDSA,
		Kid:        k.kid,
		PrivateKey: base64.RawURLEncoding.EncodeToString(k.priv.Seed()),
		PublicKey:  base64.RawURLEncoding.EncodeToString(k.pub),
		CreatedAt:  k.created,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(k.path, data, 0o600)
}

// Algorithm returns the signing algorithm tag.
func (k *KeyStore) Algorithm() string { return AlgEdDSA }

// KID returns the stable key id.
func (k *KeyStore) KID() string { return k.kid }

// Public returns the verification half of the signing key.
func (k *KeyStore) Public() ed25519.PublicKey { return k.pub }

// CreatedAt returns when the keypair was first generated.
func (k *KeyStore) CreatedAt() time.Time { return k.created }

// Sign produces a detached Ed25519 signature over arbitrary bytes.
func (k *KeyStore) Sign(data []byte) []byte {
	return ed25519.Sign(k.priv, data)
}

// SignClaims encodes and signs a claim set under the local key, with the
// standard kid header.
func (k *KeyStore) SignClaims(c Claims) (string, error) {
	return Encode(Header{Alg: AlgEdDSA, Typ: "JWT", Kid: k.kid}, c, k.priv)
}

// PublicJWK returns the discovery record for the local key.
func (k *KeyStore) PublicJWK() JWK {
	return NewEd25519JWK(k.kid, k.pub)
}

// writeFileAtomic writes via temp file, fsync and rename so a crash
// mid-write never leaves a half-file for the next start to load.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".key-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	_ = os.Chmod(tmpPath, perm)

	if err := os.Rename(tmpPath, path); err != nil {
		// Windows can refuse to clobber; remove the old file and retry the
		// rename once. If the retry fails too, the old file is already gone.
		_ = os.Remove(path)
		if err2 := os.Rename(tmpPath, path); err2 != nil {
			return fmt.Errorf("rename: %v (after remove: %v)", err, err2)
		}
	}
	return nil
}

func newKid() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return "dualauth-" + base64.RawURLEncoding.EncodeToString(b[:])
}
