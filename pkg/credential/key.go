package credential

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const pemMarker = "-----BEGIN"

// NormalizePrivateKey turns a private key as it arrives from the environment
// into clean PEM. Accepted forms are plain PEM, PEM with literal "\n" escapes
// (optionally wrapped in quotes) and base64-encoded PEM.
func NormalizePrivateKey(raw string) ([]byte, error) {
	key := strings.TrimSpace(raw)
	key = strings.Trim(key, `"'`)
	if key == "" {
		return nil, fmt.Errorf("%w: private key", ErrMissingConfig)
	}

	if !strings.Contains(key, pemMarker) {
		compact := strings.Join(strings.Fields(key), "")
		decoded, err := base64.StdEncoding.DecodeString(compact)
		if err != nil {
			return nil, fmt.Errorf("private key is neither PEM nor base64: %w", err)
		}
		key = strings.TrimSpace(string(decoded))
	}

	key = strings.ReplaceAll(key, `\r\n`, "\n")
	key = strings.ReplaceAll(key, `\n`, "\n")
	key = strings.ReplaceAll(key, "\r\n", "\n")
	if !strings.Contains(key, pemMarker) {
		return nil, fmt.Errorf("private key is not PEM encoded")
	}

	return []byte(key + "\n"), nil
}
