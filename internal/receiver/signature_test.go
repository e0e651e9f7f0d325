package receiver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func flipBit(b []byte, i int) []byte {
	out := append([]byte(nil), b...)
	out[i/8] ^= 1 << (i % 8)
	return out
}

func TestSignKnownVector(t *testing.T) {
	assert.Equal(t, "sha1=fbdb1d1b18aa6c08324b7d64b71fb76370690e1d", Sign("", nil))
	assert.Equal(t, "sha1=de7c9b85b8b78aa6bc8a7a36f7be86fec1ef3cc1",
		Sign("key", []byte("The quick brown fox jumps over the lazy dog")))
}

func TestVerifyAcceptsOwnSignature(t *testing.T) {
	bodies := [][]byte{nil, []byte(`{}`), []byte(`{"ref":"main"}`), []byte("payload=%7B%7D"), make([]byte, 4096)}
	secrets := []string{"", "abc", "a much longer shared secret with spaces", "ünïcödé"}
	for _, b := range bodies {
		for _, s := range secrets {
			assert.True(t, Verify(s, b, Sign(s, b)))
		}
	}
}

func TestVerifyRejectsSingleBitMutations(t *testing.T) {
	body := []byte(`{"ref":"main","after":"0000000000000000000000000000000000000000"}`)
	secret := "abc"
	sig := Sign(secret, body)

	for i := 0; i < len(body)*8; i++ {
		assert.False(t, Verify(secret, flipBit(body, i), sig), "body bit %d", i)
	}
	for i := 0; i < len(secret)*8; i++ {
		assert.False(t, Verify(string(flipBit([]byte(secret), i)), body, sig), "secret bit %d", i)
	}
	for i := len(SignaturePrefix) * 8; i < len(sig)*8; i++ {
		assert.False(t, Verify(secret, body, string(flipBit([]byte(sig), i))), "digest bit %d", i)
	}
}

func TestVerifyRejectsTruncatedOrPaddedDigest(t *testing.T) {
	body := []byte(`{}`)
	sig := Sign("abc", body)

	assert.False(t, Verify("abc", body, sig[:len(sig)-1]))
	assert.False(t, Verify("abc", body, sig+"0"))
	assert.False(t, Verify("abc", body, ""))
}

func TestWellFormed(t *testing.T) {
	assert.True(t, WellFormed("sha1=00"))
	assert.False(t, WellFormed(""))
	assert.False(t, WellFormed("sha1="))
	assert.False(t, WellFormed("SHA1=00"))
	assert.False(t, WellFormed("sha256=00"))
}
