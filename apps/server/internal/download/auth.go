package download

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// TokenDigest returns the hex SHA-256 digest of the server credential. Clients
// present this value instead of the credential itself.
func TokenDigest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// CheckToken verifies a caller-supplied token against the server credential.
// An empty token skips the check.
func CheckToken(secret, supplied string) error {
	if supplied == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(TokenDigest(secret)), []byte(supplied)) != 1 {
		return AuthenticationError{}
	}
	return nil
}
