package crypto

import "encoding/hex"

// NewVersionToken returns a fresh opaque version token. Callers compare tokens
// only for equality; a new token is distinct from every previously issued one.
func NewVersionToken() (string, error) {
	b, err := RandBytes(16)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewDeviceAuthToken returns a fresh opaque device authentication token.
func NewDeviceAuthToken() (string, error) {
	b, err := RandBytes(32)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
