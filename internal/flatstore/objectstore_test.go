package flatstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectStorePutGet(t *testing.T) {
	s := NewObjectStore(t.TempDir())

	id := "https://example.com/note/1"
	obj := map[string]interface{}{
		"id":   id,
		"type": "Note",
		"content": "hello",
	}

	status, err := s.Put(id, obj, false)
	require.NoError(t, err)
	require.Equal(t, StatusCreated, status)

	got, status, err := s.Get(id, "Note")
	require.NoError(t, err)
	require.Equal(t, 200, status)
	require.Equal(t, "hello", got["content"])

	_, status, err = s.Get(id, "Activity")
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, status)
}

func TestObjectStorePutNoOverwrite(t *testing.T) {
	s := NewObjectStore(t.TempDir())
	id := "https://example.com/note/2"

	status, err := s.Put(id, map[string]interface{}{"id": id, "type": "Note", "v": 1.0}, false)
	require.NoError(t, err)
	require.Equal(t, StatusCreated, status)

	status, err = s.Put(id, map[string]interface{}{"id": id, "type": "Note", "v": 2.0}, false)
	require.NoError(t, err)
	require.Equal(t, StatusNoContent, status)

	got, _, err := s.Get(id, "")
	require.NoError(t, err)
	require.Equal(t, 1.0, got["v"])
}

func TestObjectStoreDelete(t *testing.T) {
	s := NewObjectStore(t.TempDir())
	id := "https://example.com/note/3"

	_, err := s.Put(id, map[string]interface{}{"id": id, "type": "Note"}, false)
	require.NoError(t, err)

	require.NoError(t, s.Delete(id))

	_, status, err := s.Get(id, "")
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, status)
}

func TestObjectStoreChildrenIndex(t *testing.T) {
	s := NewObjectStore(t.TempDir())
	parentID := "https://example.com/note/parent"
	childID := "https://example.com/note/child"

	_, err := s.Put(parentID, map[string]interface{}{"id": parentID, "type": "Note"}, false)
	require.NoError(t, err)
	_, err = s.Put(childID, map[string]interface{}{"id": childID, "type": "Note", "inReplyTo": parentID}, false)
	require.NoError(t, err)

	children, err := s.childrenIndex(MD5(parentID)).List(0, 0)
	require.NoError(t, err)
	require.Contains(t, children, MD5(childID))
}
