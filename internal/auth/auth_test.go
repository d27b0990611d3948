package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPINAuthorizer(t *testing.T) {
	hash, err := HashPIN("4821")
	require.NoError(t, err)

	a, err := NewPINAuthorizer(hash)
	require.NoError(t, err)

	assert.True(t, a.AuthorizeDestructiveAction("4821"))
	assert.False(t, a.AuthorizeDestructiveAction("0000"))
	assert.False(t, a.AuthorizeDestructiveAction(""))
}

func TestHashPINRejectsShortPIN(t *testing.T) {
	_, err := HashPIN("12")
	assert.Error(t, err)
}

func TestFromHashFallsBackToDenyAll(t *testing.T) {
	_, ok := FromHash("").(*PINAuthorizer)
	assert.False(t, ok)
	_, ok = FromHash("not-a-bcrypt-hash").(*PINAuthorizer)
	assert.False(t, ok)
	assert.False(t, FromHash("").AuthorizeDestructiveAction("anything"))

	hash, err := HashPIN("4821")
	require.NoError(t, err)
	_, ok = FromHash(hash).(*PINAuthorizer)
	assert.True(t, ok)
}
