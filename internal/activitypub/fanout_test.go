package activitypub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecipientListUnionsToAndCC(t *testing.T) {
	u := testUser(t, t.TempDir(), "alice")

	msg := map[string]interface{}{
		"to": "https://remote/bob",
		"cc": []interface{}{"https://remote/carol", "https://remote/bob"},
	}
	recipients, err := u.RecipientList(msg, false)
	require.NoError(t, err)
	require.Equal(t, []string{"https://remote/bob", "https://remote/carol"}, recipients)
}

func TestRecipientListExpandsPublicToFollowers(t *testing.T) {
	u := testUser(t, t.TempDir(), "alice")
	require.NoError(t, u.Followers.Add("https://remote/dave"))
	require.NoError(t, u.Followers.Add("https://remote/erin"))

	msg := map[string]interface{}{"to": "https://www.w3.org/ns/activitystreams#Public"}
	recipients, err := u.RecipientList(msg, true)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"https://remote/dave", "https://remote/erin"}, recipients)
}

func TestRecipientListNoExpansionKeepsPublic(t *testing.T) {
	u := testUser(t, t.TempDir(), "alice")

	msg := map[string]interface{}{"to": "https://www.w3.org/ns/activitystreams#Public"}
	recipients, err := u.RecipientList(msg, false)
	require.NoError(t, err)
	require.Equal(t, []string{"https://www.w3.org/ns/activitystreams#Public"}, recipients)
}
