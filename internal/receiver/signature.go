package receiver

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

const (
	SignatureHeader = "X-Hub-Signature"
	SignaturePrefix = "sha1="
)

// Sign returns the X-Hub-Signature value for body: "sha1=" + hex(HMAC-SHA1(secret, body)).
func Sign(secret string, body []byte) string {
	h := hmac.New(sha1.New, []byte(secret))
	h.Write(body)
	return SignaturePrefix + hex.EncodeToString(h.Sum(nil))
}

// WellFormed reports whether sig can be a signature at all. It is checked before any
// secret lookup or hashing.
func WellFormed(sig string) bool {
	return strings.HasPrefix(sig, SignaturePrefix) && len(sig) > len(SignaturePrefix)
}

// Verify compares sig against the expected signature in constant time.
func Verify(secret string, body []byte, sig string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(sig))
}
