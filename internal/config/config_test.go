package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash := HashPassword("alice", "hunter2", "")
	require.True(t, CheckPassword("alice", "hunter2", hash))
	require.False(t, CheckPassword("alice", "wrong", hash))
	require.False(t, CheckPassword("bob", "hunter2", hash))
}

func TestHashPasswordFixedNonce(t *testing.T) {
	got := HashPassword("alice", "hunter2", "deadbeef")
	require.Equal(t, "deadbeef", got[:8])
	require.True(t, CheckPassword("alice", "hunter2", got))
}

func TestCheckPasswordMalformedHash(t *testing.T) {
	require.False(t, CheckPassword("alice", "hunter2", "not-a-valid-hash"))
}

func TestValidUID(t *testing.T) {
	require.True(t, ValidUID("alice_92"))
	require.False(t, ValidUID(""))
	require.False(t, ValidUID("alice/92"))
	require.False(t, ValidUID("alice.bob"))
}

func TestListUsers(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "user", "alice"), 0700))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "user", "bob"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(base, "user", "not-valid"), []byte("x"), 0600))

	uids, err := ListUsers(base)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alice", "bob"}, uids)
}

func TestListUsersMissingDir(t *testing.T) {
	uids, err := ListUsers(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, uids)
}

func TestGenerateKey(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "user", "alice"), 0700))

	k, err := GenerateKey(base, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, k.SecretPEM)
	require.NotEmpty(t, k.PublicPEM)
	require.NotNil(t, k.Private())
	require.NotNil(t, k.Public())

	loaded, err := LoadKey(base, "alice")
	require.NoError(t, err)
	require.Equal(t, k.PublicPEM, loaded.PublicPEM)
}
