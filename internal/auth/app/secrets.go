package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/marquee/pkg/cryptox"
	"github.com/aussiebroadwan/marquee/pkg/jwtx"
)

var ErrMissingSecret = errors.New("JWT_SECRET and JWT_REFRESH_SECRET are required in prod")

// signingSecrets returns the access and refresh secrets. Outside prod a
// missing secret is generated, which means every token dies with the
// process. Length and distinctness are checked again by jwtx.NewCodec.
func signingSecrets(cfg Config, logger *slog.Logger) (access, refresh []byte, err error) {
	if cfg.IsProduction() {
		if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
			return nil, nil, ErrMissingSecret
		}
		if len(cfg.AccessSecret) < jwtx.MinSecretLength || len(cfg.RefreshSecret) < jwtx.MinSecretLength {
			return nil, nil, jwtx.ErrWeakSecret
		}
		if cfg.AccessSecret == cfg.RefreshSecret {
			return nil, nil, jwtx.ErrSharedSecret
		}
		return []byte(cfg.AccessSecret), []byte(cfg.RefreshSecret), nil
	}

	accessSecret, err := secretOrGenerate(cfg.AccessSecret, "JWT_SECRET", logger)
	if err != nil {
		return nil, nil, err
	}
	refreshSecret, err := secretOrGenerate(cfg.RefreshSecret, "JWT_REFRESH_SECRET", logger)
	if err != nil {
		return nil, nil, err
	}
	return []byte(accessSecret), []byte(refreshSecret), nil
}

func secretOrGenerate(value, name string, logger *slog.Logger) (string, error) {
	if value != "" {
		return value, nil
	}

	generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", name, err)
	}
	logger.Warn("signing secret not set, generated one for this process", "env", name)
	return generated, nil
}
