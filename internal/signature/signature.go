// Package signature provides HMAC-SHA256 signing of outbound webhook payloads
// and signing-secret generation.
package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/gowebpki/jcs"
)

// SecretPrefix marks Hookline signing secrets. The prefix plus 32 random
// bytes hex-encoded gives a fixed 70-character secret.
const SecretPrefix = "whsec_"

// GenerateSecret creates a cryptographically random signing secret.
func GenerateSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("signature: failed to read random secret: " + err.Error())
	}
	return SecretPrefix + hex.EncodeToString(b)
}

// Canonicalize returns the RFC 8785 (JCS) form of a JSON document. Signing the
// canonical bytes keeps the digest stable regardless of field order.
func Canonicalize(payload []byte) ([]byte, error) {
	return jcs.Transform(payload)
}

// Sign computes the hex HMAC-SHA256 digest of payload under secret, formatted
// for the X-Hookline-Signature header as "sha256=<hex>".
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the valid signature of payload under secret.
// Receivers use the same check on their side; this is exercised by tests and
// the seed tooling.
func Verify(payload []byte, secret, sig string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(sig))
}
