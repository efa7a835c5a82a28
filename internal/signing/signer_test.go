package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidentry/evidentry/internal/domain"
)

func TestParseRing(t *testing.T) {
	ring, err := ParseRing("k1=alpha, k2=beta", "k1")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, ring.KeyIDs())

	active, ok := ring.Active()
	require.True(t, ok)
	assert.Equal(t, "k1", active.ID)
	assert.Equal(t, []byte("alpha"), active.Secret)
}

func TestParseRingDefaultsActiveToLastKeyID(t *testing.T) {
	ring, err := ParseRing("k1=alpha,k2=beta", "")
	require.NoError(t, err)

	active, ok := ring.Active()
	require.True(t, ok)
	assert.Equal(t, "k2", active.ID)
}

func TestParseRingEmptySpecDisablesSigning(t *testing.T) {
	ring, err := ParseRing("", "")
	require.NoError(t, err)

	_, ok := ring.Active()
	assert.False(t, ok)
}

func TestParseRingRejectsBadConfig(t *testing.T) {
	_, err := ParseRing("k1=alpha", "k9")
	assert.Error(t, err)

	_, err = ParseRing("justakid", "")
	assert.Error(t, err)

	_, err = ParseRing("k1=alpha,k1=beta", "k1")
	assert.Error(t, err)

	_, err = ParseRing("", "k1")
	assert.Error(t, err)
}

func TestSignAndVerify(t *testing.T) {
	ring, err := ParseRing("k1=alpha,k2=beta", "k2")
	require.NoError(t, err)

	digest := "2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae"
	active, ok := ring.Active()
	require.True(t, ok)
	sig := Sign(active, digest)
	require.NotEmpty(t, sig)

	valid, err := Verify(ring, "k2", digest, sig)
	require.NoError(t, err)
	assert.True(t, valid)

	// Wrong key id yields a mismatch, not an error.
	valid, err = Verify(ring, "k1", digest, sig)
	require.NoError(t, err)
	assert.False(t, valid)

	// Tampered digest fails.
	valid, err = Verify(ring, "k2", digest[:len(digest)-1]+"f", sig)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestVerifyUnknownKeyID(t *testing.T) {
	ring, err := ParseRing("k1=alpha", "k1")
	require.NoError(t, err)

	_, err = Verify(ring, "gone", "deadbeef", "sig")
	assert.ErrorIs(t, err, domain.ErrSigningKeyNotFound)
}

func TestSignIsDeterministicPerKey(t *testing.T) {
	k1 := &Key{ID: "k1", Secret: []byte("alpha")}
	k2 := &Key{ID: "k2", Secret: []byte("beta")}

	assert.Equal(t, Sign(k1, "digest"), Sign(k1, "digest"))
	assert.NotEqual(t, Sign(k1, "digest"), Sign(k2, "digest"))
	assert.NotEqual(t, Sign(k1, "digest"), Sign(k1, "other"))
}
