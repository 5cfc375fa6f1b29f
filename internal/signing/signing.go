// Package signing issues and checks HMAC signatures for time-limited download
// links served by the API when the object store cannot presign on its own.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Signer generates and validates HMAC based signatures.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret, now: time.Now}
}

// Sign returns the hex signature binding an object key to an expiry.
func (s *Signer) Sign(objectKey string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	// The key may contain ':' so the expiry goes first.
	fmt.Fprintf(mac, "%d:%s", expiresUnix, objectKey)
	return hex.EncodeToString(mac.Sum(nil))
}

// Expiry returns the unix expiry for a link valid for ttl from now.
func (s *Signer) Expiry(ttl time.Duration) int64 {
	return s.now().Add(ttl).Unix()
}

// Validate reports whether signature matches the key and expiry and the
// expiry has not passed yet.
func (s *Signer) Validate(objectKey, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	if s.now().Unix() > exp {
		return false
	}
	expected := s.Sign(objectKey, exp)
	return hmac.Equal([]byte(expected), []byte(signature))
}
