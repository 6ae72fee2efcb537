package app

import (
	"fmt"
	"log/slog"

	"github.com/sanasol-ws/dualauth/pkg/jwtx"
)

// InitSigningKey loads the persisted Ed25519 signing key, or generates and
// persists one on first start. The key never rotates within a process
// lifetime; the kid printed here is the one discovery publishes until the
// key file is replaced.
func InitSigningKey(cfg Config, logger *slog.Logger) (*jwtx.KeyStore, error) {
	keys, err := jwtx.LoadOrCreateKeyStore(cfg.SigningKeyFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing key: %w", err)
	}

	logger.Info("signing key ready",
		"algorithm", keys.Algorithm(),
		"kid", keys.KID(),
		"created_at", keys.CreatedAt(),
	)
	return keys, nil
}
