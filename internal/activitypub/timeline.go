package activitypub

import (
	"github.com/klppl/fedif/internal/apmodel"
	"github.com/klppl/fedif/internal/flatstore"
)

// TimelineAdd stores object under id and projects it into the private
// cache (spec.md §4.3's projection rule), skipping projection for ids the
// user has hidden (SPEC_FULL.md §D.3: hiding affects display only, not
// ingestion). If the object is authored by this user and Public-addressed,
// it additionally enters the public cache (the outbox). Shared by the
// inbound FSM (an inbound Create) and any outbound path that stores its
// own Create(Note) (cmd/fedif's note command) — both must apply the same
// private-then-conditionally-public rule.
func (u *User) TimelineAdd(id string, object map[string]interface{}) (isNew bool, err error) {
	status, err := u.Objects.Put(id, object, false)
	if err != nil {
		return false, err
	}
	isNew = status == flatstore.StatusCreated

	hidden, err := u.Hidden.Contains(id)
	if err != nil {
		return isNew, err
	}
	if hidden {
		return isNew, nil
	}

	if err := u.Cache.Add(id, flatstore.CachePrivate); err != nil {
		return isNew, err
	}

	if apmodel.GetString(object, "attributedTo") == u.ActorURL() && isPublic(object) {
		if err := u.Cache.Add(id, flatstore.CachePublic); err != nil {
			return isNew, err
		}
	}

	return isNew, nil
}

// timelineAdd is the FSM's call-site alias for TimelineAdd, kept so
// fsm_handlers.go reads the same way it always has.
func (f *FSM) timelineAdd(id string, object map[string]interface{}) (isNew bool, err error) {
	return f.user.TimelineAdd(id, object)
}

func isPublic(object map[string]interface{}) bool {
	check := func(v interface{}) bool {
		switch t := v.(type) {
		case string:
			return t == apmodel.PublicURI
		case []interface{}:
			for _, x := range t {
				if s, ok := x.(string); ok && s == apmodel.PublicURI {
					return true
				}
			}
		}
		return false
	}
	return check(object["to"]) || check(object["cc"])
}
