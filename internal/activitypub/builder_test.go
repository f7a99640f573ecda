package activitypub

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klppl/fedif/internal/config"
	"github.com/klppl/fedif/internal/mailer"
)

func testUser(t *testing.T, basedir, uid string) *User {
	t.Helper()
	srv := &config.Server{BaseDir: basedir, Host: "example.com", Prefix: ""}
	inst := NewInstance(srv, mailer.Discard{})

	key, err := config.GenerateKey(basedir, uid)
	require.NoError(t, err)

	return inst.bindUser(uid, &config.User{UID: uid, Name: "Alice"}, key)
}

func TestBuilderFollowSelf(t *testing.T) {
	u := testUser(t, t.TempDir(), "alice")
	b := NewBuilder(u)

	_, err := b.Follow(u.ActorURL())
	require.Error(t, err)
}

func TestBuilderFollowAddressesTarget(t *testing.T) {
	u := testUser(t, t.TempDir(), "alice")
	b := NewBuilder(u)

	msg, err := b.Follow("https://remote.example/bob")
	require.NoError(t, err)
	require.Equal(t, "Follow", msg["type"])
	require.Equal(t, []interface{}{"https://remote.example/bob"}, msg["to"])
	require.Equal(t, "https://remote.example/bob", msg["object"])
}

func TestBuilderAcceptAddressesFollower(t *testing.T) {
	u := testUser(t, t.TempDir(), "alice")
	b := NewBuilder(u)

	follow := map[string]interface{}{
		"type":   "Follow",
		"actor":  "https://remote.example/bob",
		"object": u.ActorURL(),
	}
	accept := b.Accept(follow)
	require.Equal(t, "Accept", accept["type"])
	require.Equal(t, []interface{}{"https://remote.example/bob"}, accept["to"])
}

func TestBuilderNoteDefaultsToPublic(t *testing.T) {
	u := testUser(t, t.TempDir(), "alice")
	b := NewBuilder(u)

	note := b.Note(NoteOptions{Content: "hello world"}, nil)
	require.Equal(t, "Note", note["type"])
	require.Equal(t, []interface{}{"https://www.w3.org/ns/activitystreams#Public"}, note["to"])
}

func TestBuilderNoteMentionsAddCC(t *testing.T) {
	u := testUser(t, t.TempDir(), "alice")
	b := NewBuilder(u)

	hrefs := map[string]string{"bob@remote.example": "https://remote.example/bob"}
	note := b.Note(NoteOptions{Content: "hi @bob@remote.example"}, hrefs)

	cc, ok := note["cc"].([]interface{})
	require.True(t, ok)
	require.Contains(t, cc, "https://remote.example/bob")

	tags, ok := note["tag"].([]interface{})
	require.True(t, ok)
	require.Len(t, tags, 1)
}

func TestBuilderCreateCopiesAddressing(t *testing.T) {
	u := testUser(t, t.TempDir(), "alice")
	b := NewBuilder(u)

	note := b.Note(NoteOptions{Content: "hello"}, nil)
	create := b.Create(note)

	require.Equal(t, "Create", create["type"])
	require.Equal(t, note["to"], create["to"])
}
