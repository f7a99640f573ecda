package apmodel

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringOrArrayUnmarshal(t *testing.T) {
	var s StringOrArray
	require.NoError(t, json.Unmarshal([]byte(`"https://a"`), &s))
	require.Equal(t, StringOrArray{"https://a"}, s)

	require.NoError(t, json.Unmarshal([]byte(`["https://a","https://b"]`), &s))
	require.Equal(t, StringOrArray{"https://a", "https://b"}, s)

	require.NoError(t, json.Unmarshal([]byte(`""`), &s))
	require.Nil(t, s)

	require.Error(t, json.Unmarshal([]byte(`42`), &s))
}

func TestWithContext(t *testing.T) {
	m := WithContext(Actor{ID: "https://example.com/alice", Type: "Person"})
	require.Equal(t, "https://example.com/alice", m["id"])
	require.Equal(t, DefaultContext, m["@context"])
}

func TestToActor(t *testing.T) {
	require.Nil(t, ToActor(nil))

	a := ToActor(map[string]interface{}{
		"id":                "https://example.com/alice",
		"type":              "Person",
		"preferredUsername": "alice",
	})
	require.Equal(t, "https://example.com/alice", a.ID)
	require.Equal(t, "alice", a.PreferredUsername)
}

func TestGetString(t *testing.T) {
	require.Equal(t, "x", GetString(map[string]interface{}{"k": "x"}, "k"))
	require.Equal(t, "", GetString(map[string]interface{}{"k": 1}, "k"))
	require.Equal(t, "", GetString(nil, "k"))
}
