package cryptox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PepperSize is the number of random bytes in a generated pepper.
const PepperSize = TokenSize256

// LoadOrCreatePepper reads the pepper stored at path. When the file does not
// exist a new random pepper is generated and written with 0600 permissions.
// Losing the file invalidates every stored password hash.
func LoadOrCreatePepper(path string) (pepper string, created bool, err error) {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		pepper = strings.TrimSpace(string(data))
		if pepper == "" {
			return "", false, fmt.Errorf("pepper file %s is empty", path)
		}
		return pepper, false, nil

	case errors.Is(err, fs.ErrNotExist):
		// fallthrough to generation

	default:
		return "", false, fmt.Errorf("read pepper: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", false, fmt.Errorf("create pepper dir: %w", err)
	}

	pepper, err = GenerateToken(PepperSize)
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(path, []byte(pepper), 0o600); err != nil {
		return "", false, fmt.Errorf("write pepper: %w", err)
	}

	return pepper, true, nil
}
