package signature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	s1 := GenerateSecret()
	s2 := GenerateSecret()

	assert.True(t, strings.HasPrefix(s1, SecretPrefix))
	assert.Len(t, s1, len(SecretPrefix)+64)
	assert.NotEqual(t, s1, s2)
}

func TestSignDeterministic(t *testing.T) {
	payload := []byte(`{"a":1,"b":"x"}`)
	secret := "whsec_test"

	sig := Sign(payload, secret)
	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.Equal(t, sig, Sign(payload, secret))

	// changes with either input
	assert.NotEqual(t, sig, Sign([]byte(`{"a":2,"b":"x"}`), secret))
	assert.NotEqual(t, sig, Sign(payload, "whsec_other"))
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"event":"order.created"}`)
	secret := GenerateSecret()

	sig := Sign(payload, secret)
	assert.True(t, Verify(payload, secret, sig))

	// tampered payload
	assert.False(t, Verify([]byte(`{"event":"order.deleted"}`), secret, sig))
	// wrong secret
	assert.False(t, Verify(payload, "whsec_wrong", sig))
	// malformed signature
	assert.False(t, Verify(payload, secret, "sha256=deadbeef"))
}

func TestCanonicalizeStableAcrossKeyOrder(t *testing.T) {
	a, err := Canonicalize([]byte(`{"b":2,"a":1}`))
	require.NoError(t, err)
	b, err := Canonicalize([]byte(`{"a":1,"b":2}`))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, Sign(a, "whsec_test"), Sign(b, "whsec_test"))
}
