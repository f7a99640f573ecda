package activitypub

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/klppl/fedif/internal/apmodel"
	"github.com/klppl/fedif/internal/flatstore"
)

// onFollow: add sender to followers; store the Follow object in the
// private timeline; post an Accept back; notify.
func (f *FSM) onFollow(act apmodel.IncomingActivity, _ map[string]interface{}) error {
	u := f.user
	var object interface{}
	_ = json.Unmarshal(act.Object, &object)
	msg := map[string]interface{}{
		"id":        act.ID,
		"type":      act.Type,
		"actor":     act.Actor,
		"object":    object,
		"published": act.Published,
	}

	if err := u.Followers.Add(act.Actor); err != nil {
		return fmt.Errorf("%w: store follower: %v", ErrRequeue, err)
	}

	if _, err := u.Objects.Put(act.ID, msg, false); err != nil {
		return fmt.Errorf("%w: store follow object: %v", ErrRequeue, err)
	}
	if err := u.Cache.Add(act.ID, flatstore.CachePrivate); err != nil {
		return fmt.Errorf("%w: project follow to timeline: %v", ErrRequeue, err)
	}

	builder := NewBuilder(u)
	accept := builder.Accept(msg)
	if err := u.Post(accept); err != nil {
		slog.Warn("activitypub: failed to enqueue Accept", "error", err)
	}

	slog.Info("activitypub: new follower", "actor", act.Actor, "uid", u.UID)
	f.notify(EventNewFollower, act.Actor, "", "")
	return nil
}

// onUndo: only "Undo Follow" is handled (remove follower); anything else
// is ignored per spec.md §4.9's table.
func (f *FSM) onUndo(act apmodel.IncomingActivity, utype string, _ map[string]interface{}, _ string) error {
	if utype != "Follow" {
		slog.Debug("activitypub: ignoring Undo for object type", "utype", utype)
		return nil
	}
	if err := f.user.Followers.Remove(act.Actor); err != nil {
		return fmt.Errorf("%w: remove follower: %v", ErrRequeue, err)
	}
	slog.Info("activitypub: no longer followed by", "actor", act.Actor)
	f.notify(EventUnfollow, act.Actor, "", "")
	return nil
}

// onCreate: only Create(Note) is handled. Muted senders are dropped
// silently (SPEC_FULL.md §C.1). Ancestors are fetched transitively
// (spec.md §4.10) before the note itself is stored and timeline-projected.
func (f *FSM) onCreate(act apmodel.IncomingActivity, utype string, object map[string]interface{}) error {
	if utype != "Note" {
		slog.Debug("activitypub: ignoring Create for object type", "utype", utype)
		return nil
	}

	u := f.user
	muted, err := u.Muted.Contains(act.Actor)
	if err != nil {
		return fmt.Errorf("%w: check mute list: %v", ErrRequeue, err)
	}
	if muted {
		slog.Debug("activitypub: ignoring Note from muted actor", "actor", act.Actor)
		return nil
	}

	id := apmodel.GetString(object, "id")
	inReplyTo := apmodel.GetString(object, "inReplyTo")

	if inReplyTo != "" {
		if err := f.fetchAncestors(inReplyTo, 0); err != nil {
			slog.Warn("activitypub: ancestor fetch incomplete", "inReplyTo", inReplyTo, "error", err)
		}
	}

	isNew, err := f.timelineAdd(id, object)
	if err != nil {
		return fmt.Errorf("%w: store note: %v", ErrRequeue, err)
	}
	if isNew {
		slog.Info("activitypub: new note", "actor", act.Actor, "id", id)
		if f.addressesUs(object) {
			f.notify(EventReply, act.Actor, id, "")
		}
	}
	return nil
}

// onAccept: only Accept(Follow) is handled. The sender is already in
// "following" from when our Follow was sent (cmdFollow adds it), so a
// matching Accept is only logged as confirmed; an Accept from an actor not
// in "following" is ignored.
func (f *FSM) onAccept(act apmodel.IncomingActivity, utype string, _ map[string]interface{}) error {
	if utype != "Follow" {
		slog.Debug("activitypub: ignoring Accept for object type", "utype", utype)
		return nil
	}
	u := f.user
	pending, err := u.Following.Contains(act.Actor)
	if err != nil {
		return fmt.Errorf("%w: check following list: %v", ErrRequeue, err)
	}
	if !pending {
		// Spurious accept: we never asked to follow this actor — not an
		// error, just noise from a remote server.
		slog.Debug("activitypub: spurious follow accept", "actor", act.Actor)
		return nil
	}
	slog.Info("activitypub: confirmed follow", "actor", act.Actor)
	return nil
}

// onLike: admire the target and notify if it's ours.
func (f *FSM) onLike(act apmodel.IncomingActivity, objectID string) error {
	if objectID == "" {
		return fmt.Errorf("%w: Like with no object id", ErrDrop)
	}
	if err := f.user.Objects.Admire(objectID, act.Actor, "like"); err != nil {
		return fmt.Errorf("%w: admire: %v", ErrRequeue, err)
	}
	slog.Info("activitypub: new like", "actor", act.Actor, "object", objectID)
	if f.isOurs(objectID) {
		f.notify(EventLike, act.Actor, objectID, "")
	}
	return nil
}

// onAnnounce: fetch the target; if its author isn't muted, admire and
// timeline-project; notify if the target is ours.
func (f *FSM) onAnnounce(act apmodel.IncomingActivity, objectID string) error {
	if objectID == "" {
		return fmt.Errorf("%w: Announce with no object id", ErrDrop)
	}
	if err := f.fetchAncestors(objectID, 0); err != nil {
		slog.Warn("activitypub: failed to fetch announced object", "object", objectID, "error", err)
		return fmt.Errorf("%w: fetch announced object: %v", ErrRequeue, err)
	}

	obj, status, err := f.user.Objects.Get(objectID, "")
	if err != nil || status != 200 {
		return fmt.Errorf("%w: announced object unavailable", ErrRequeue)
	}

	who := apmodel.GetString(obj, "attributedTo")
	if who != "" {
		muted, err := f.user.Muted.Contains(who)
		if err == nil && muted {
			slog.Debug("activitypub: ignoring Announce of muted actor's object", "actor", who)
			return nil
		}
	}

	if err := f.user.Objects.Admire(objectID, act.Actor, "announce"); err != nil {
		return fmt.Errorf("%w: admire: %v", ErrRequeue, err)
	}
	if _, err := f.timelineAdd(objectID, obj); err != nil {
		return fmt.Errorf("%w: project announced object: %v", ErrRequeue, err)
	}
	slog.Info("activitypub: new announce", "actor", act.Actor, "object", objectID)
	if f.isOurs(objectID) {
		f.notify(EventAnnounce, act.Actor, objectID, "")
	}
	return nil
}

// onUpdate: only Update(Person) is handled — overwrite the cached actor.
func (f *FSM) onUpdate(act apmodel.IncomingActivity, utype string, object map[string]interface{}) error {
	if utype != "Person" {
		slog.Debug("activitypub: ignoring Update for object type", "utype", utype)
		return nil
	}
	if _, err := f.user.Objects.Put(act.Actor, object, true); err != nil {
		return fmt.Errorf("%w: update actor: %v", ErrRequeue, err)
	}
	slog.Info("activitypub: updated actor", "actor", act.Actor)
	return nil
}

// onDelete: remove the target object via UserCache + ObjectStore.
func (f *FSM) onDelete(act apmodel.IncomingActivity, objectID string) error {
	if objectID == "" {
		return fmt.Errorf("%w: Delete with no object id", ErrDrop)
	}
	if err := f.user.Cache.Del(objectID, flatstore.CachePrivate); err != nil {
		slog.Debug("activitypub: delete target not in private cache", "object", objectID)
	}
	if err := f.user.Cache.Del(objectID, flatstore.CachePublic); err != nil {
		slog.Debug("activitypub: delete target not in public cache", "object", objectID)
	}
	if err := f.user.Objects.DeleteIfUnreferenced(objectID); err != nil {
		return fmt.Errorf("%w: delete object: %v", ErrRequeue, err)
	}
	slog.Info("activitypub: deleted object", "actor", act.Actor, "object", objectID)
	return nil
}

// isOurs reports whether objectID is attributed to this user.
func (f *FSM) isOurs(objectID string) bool {
	obj, status, err := f.user.Objects.Get(objectID, "")
	if err != nil || status != 200 {
		return false
	}
	return apmodel.GetString(obj, "attributedTo") == f.user.ActorURL()
}

// addressesUs reports whether object's to/cc includes this user directly.
func (f *FSM) addressesUs(object map[string]interface{}) bool {
	self := f.user.ActorURL()
	check := func(v interface{}) bool {
		switch t := v.(type) {
		case string:
			return t == self
		case []interface{}:
			for _, x := range t {
				if s, ok := x.(string); ok && s == self {
					return true
				}
			}
		}
		return false
	}
	return check(object["to"]) || check(object["cc"])
}
