package activitypub

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/klppl/fedif/internal/actors"
	"github.com/klppl/fedif/internal/apmodel"
	"github.com/klppl/fedif/internal/sigs"
)

// ErrDrop signals a permanent rejection: the caller must not retry.
var ErrDrop = errors.New("activitypub: dropped, do not retry")

// ErrRequeue signals a transient failure: the caller should re-enqueue
// with an incremented retry counter.
var ErrRequeue = errors.New("activitypub: transient failure, requeue")

// FSM is the inbound activity dispatcher described in spec.md §4.9,
// grounded on original_source/activitypub.c's process_message and the
// teacher's handler.go type-switch dispatch style.
type FSM struct {
	user *User
}

// NewFSM returns an FSM bound to u.
func NewFSM(u *User) *FSM { return &FSM{user: u} }

// Process runs the mandatory ordering from spec.md §4.9 against one
// dequeued input item: resolve the sender actor, verify the signature,
// then dispatch on type/utype.
func (f *FSM) Process(rawActivity json.RawMessage, reqSnapshot sigs.Snapshot) error {
	var act apmodel.IncomingActivity
	if err := json.Unmarshal(rawActivity, &act); err != nil {
		return fmt.Errorf("activitypub: malformed activity: %w", err)
	}
	if act.Actor == "" || act.Type == "" {
		return fmt.Errorf("%w: missing actor or type", ErrDrop)
	}

	// 1. Resolve/refresh the sender actor.
	_, err := f.user.Resolver.Get(act.Actor, f.user.KeyID(), f.user.Key.Private())
	if err != nil {
		if errors.Is(err, actors.ErrGone) || errors.Is(err, actors.ErrNotFound) {
			slog.Info("activitypub: dropping message, actor is gone", "actor", act.Actor)
			return fmt.Errorf("%w: actor %s unreachable", ErrDrop, act.Actor)
		}
		return fmt.Errorf("%w: fetch actor %s: %v", ErrRequeue, act.Actor, err)
	}

	// 2. Verify the HTTP signature against the sender's key.
	req := sigs.Reconstruct(reqSnapshot)
	_, err = sigs.Verify(req, nil, func(keyID string) (*rsa.PublicKey, error) {
		return f.user.Resolver.PublicKey(keyID, f.user.KeyID(), f.user.Key.Private())
	})
	if err != nil {
		slog.Info("activitypub: bad signature, dropping", "actor", act.Actor, "error", err)
		return fmt.Errorf("%w: %v", ErrDrop, err)
	}

	// 3. Dispatch.
	var object map[string]interface{}
	utype := "(null)"
	if len(act.Object) > 0 {
		_ = json.Unmarshal(act.Object, &object)
		if object != nil {
			utype = apmodel.GetString(object, "type")
		}
	}

	var objectID string
	if object != nil {
		objectID = apmodel.GetString(object, "id")
	} else {
		_ = json.Unmarshal(act.Object, &objectID)
	}

	switch act.Type {
	case "Follow":
		return f.onFollow(act, object)
	case "Undo":
		return f.onUndo(act, utype, object, objectID)
	case "Create":
		return f.onCreate(act, utype, object)
	case "Accept":
		return f.onAccept(act, utype, object)
	case "Like":
		return f.onLike(act, objectID)
	case "Announce":
		return f.onAnnounce(act, objectID)
	case "Update":
		return f.onUpdate(act, utype, object)
	case "Delete":
		return f.onDelete(act, objectID)
	default:
		slog.Debug("activitypub: ignoring unhandled activity type", "type", act.Type)
		return nil
	}
}
