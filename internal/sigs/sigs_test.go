package sigs

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequireDigest(t *testing.T) {
	body := []byte(`{"hello":"world"}`)

	require.NoError(t, RequireDigest(nil, ""))

	err := RequireDigest(body, "")
	require.ErrorIs(t, err, ErrMissingDigest)

	req, _ := http.NewRequest(http.MethodPost, "https://example.com/inbox", nil)
	_ = Sign(req, body, "https://example.com/alice#main-key", testKey(t))
	digest := req.Header.Get("Digest")

	require.NoError(t, RequireDigest(body, digest))

	err = RequireDigest(append(body, 'x'), digest)
	require.ErrorIs(t, err, ErrDigestMismatch)
}

func TestActorFromKeyID(t *testing.T) {
	require.Equal(t, "https://example.com/alice", ActorFromKeyID("https://example.com/alice#main-key"))
	require.Equal(t, "https://example.com/alice", ActorFromKeyID("https://example.com/alice"))
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv := testKey(t)
	body := []byte(`{"type":"Follow"}`)

	req, err := http.NewRequest(http.MethodPost, "https://example.com/bob/inbox", nil)
	require.NoError(t, err)

	keyID := "https://example.com/alice#main-key"
	require.NoError(t, Sign(req, body, keyID, priv))

	resolve := func(id string) (*rsa.PublicKey, error) {
		require.Equal(t, keyID, id)
		return &priv.PublicKey, nil
	}

	gotKeyID, err := Verify(req, body, resolve)
	require.NoError(t, err)
	require.Equal(t, keyID, gotKeyID)
}

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return priv
}
