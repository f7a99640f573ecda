package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnqueueDequeueOutput(t *testing.T) {
	q := New(t.TempDir(), 10)

	require.NoError(t, q.EnqueueOutput(json.RawMessage(`{"type":"Follow"}`), "https://remote/alice", "https://remote/alice/inbox", "https://local/bob", 0))

	names, err := q.List()
	require.NoError(t, err)
	require.Len(t, names, 1)

	item, err := q.Dequeue(names[0])
	require.NoError(t, err)
	require.Equal(t, KindOutput, item.Type)
	require.Equal(t, "https://remote/alice/inbox", item.Inbox)

	names, err = q.List()
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestEnqueueOutputSelfDeliveryGuard(t *testing.T) {
	q := New(t.TempDir(), 10)

	require.NoError(t, q.EnqueueOutput(json.RawMessage(`{}`), "https://local/bob", "https://local/bob/inbox", "https://local/bob", 0))

	names, err := q.List()
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestEnqueueRetriesDelayVisibility(t *testing.T) {
	q := New(t.TempDir(), 60)

	require.NoError(t, q.EnqueueOutput(json.RawMessage(`{}`), "a", "b", "", 1))

	names, err := q.List()
	require.NoError(t, err)
	require.Empty(t, names, "an item retried an hour out should not be visible yet")
}

func TestListEmptyDir(t *testing.T) {
	q := New(t.TempDir(), 10)
	names, err := q.List()
	require.NoError(t, err)
	require.Empty(t, names)
}
