package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// NewSessionKey returns an opaque random value used as a session id when the
// client has none yet.
func NewSessionKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
