package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestArgonRoundTrip(t *testing.T) {
	encoded, err := Hash("s3cret-pass")
	require.NoError(t, err)

	assert.True(t, Verify("s3cret-pass", encoded))
	assert.False(t, Verify("other", encoded))
	assert.False(t, NeedsRehash(encoded))
}

func TestLegacyBcrypt(t *testing.T) {
	raw, err := bcrypt.GenerateFromPassword([]byte("rahasia-123"), bcrypt.MinCost)
	require.NoError(t, err)

	// Laravel writes the $2y$ tag.
	php := "$2y$" + string(raw)[4:]

	assert.True(t, Verify("rahasia-123", php))
	assert.True(t, Verify("rahasia-123", string(raw)))
	assert.False(t, Verify("salah", php))
	assert.True(t, NeedsRehash(php))
}

func TestMalformedHashes(t *testing.T) {
	for _, encoded := range []string{
		"",
		"$bcrypt$nope",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=1,p=4$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=1,p=4$!!$a2V5",
	} {
		assert.False(t, Verify("anything", encoded), encoded)
		assert.True(t, NeedsRehash(encoded), encoded)
	}
}

func TestWeakArgonNeedsRehash(t *testing.T) {
	weak := encodeArgon(argonParams{memory: 1024, time: 1, threads: 1}, []byte("0123456789abcdef"), []byte("key-bytes"))
	assert.True(t, NeedsRehash(weak))
}
