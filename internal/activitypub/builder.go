package activitypub

import (
	"fmt"
	"time"

	"github.com/klppl/fedif/internal/apmodel"
	"github.com/klppl/fedif/internal/format"
)

// tid returns a microsecond-resolution identifier suitable for both queue
// filenames and ephemeral activity ids, matching spec.md's glossary entry
// for tid.
func tid() string {
	return fmt.Sprintf("%020.6f", float64(time.Now().UnixNano())/1e9)
}

// rfc3339Z formats a time the way spec.md §4.8 requires:
// "YYYY-MM-DDTHH:MM:SSZ" UTC.
func rfc3339Z(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// Builder constructs activity envelopes for one local user, grounded on
// original_source/activitypub.c's msg_* family.
type Builder struct {
	user *User
}

// NewBuilder returns a Builder bound to u.
func NewBuilder(u *User) *Builder { return &Builder{user: u} }

// ephemeralID mints "{actor}/d/{tid}/{type}" for activities that aren't
// wrapping a stored object (Follow, Accept, Undo, Like, Announce, Update).
func (b *Builder) ephemeralID(activityType string) string {
	return fmt.Sprintf("%s/d/%s/%s", b.user.ActorURL(), tid(), activityType)
}

// objectBoundID mints "{object.id}/{type}" for activities that wrap a
// specific stored object (Create, Delete).
func objectBoundID(objectID, activityType string) string {
	return objectID + "/" + activityType
}

// Accept builds an Accept wrapping the inbound Follow activity follow,
// addressed to that Follow's actor (the follower) so Post can deliver it
// without further recipient resolution. The recipient is taken from
// follow["actor"] rather than passed separately.
func (b *Builder) Accept(follow map[string]interface{}) map[string]interface{} {
	to, _ := follow["actor"].(string)
	a := apmodel.Activity{
		ID:        b.ephemeralID("Accept"),
		Type:      "Accept",
		Actor:     b.user.ActorURL(),
		Object:    follow,
		To:        []string{to},
		Published: rfc3339Z(time.Now()),
	}
	return apmodel.WithContext(a)
}

// Follow builds a Follow of targetActor, addressed directly at it.
// targetActor is expected to already be a resolved canonical actor id —
// cmdFollow resolves "@user@host" handles via WebFinger before calling
// this, matching original_source/activitypub.c's msg_follow. Follow
// itself just refuses a self-follow, which msg_follow doesn't do but is
// cheap to guard against here.
func (b *Builder) Follow(targetActor string) (map[string]interface{}, error) {
	if targetActor == b.user.ActorURL() {
		return nil, fmt.Errorf("activitypub: refusing to follow self")
	}
	a := apmodel.Activity{
		ID:        b.ephemeralID("Follow"),
		Type:      "Follow",
		Actor:     b.user.ActorURL(),
		Object:    targetActor,
		To:        []string{targetActor},
		Published: rfc3339Z(time.Now()),
	}
	return apmodel.WithContext(a), nil
}

// Undo wraps an activity this user previously sent (a Follow, typically)
// in an Undo, addressed back to the same recipient the original went to,
// so it can be echoed to that actor.
func (b *Builder) Undo(original map[string]interface{}) map[string]interface{} {
	a := apmodel.Activity{
		ID:        b.ephemeralID("Undo"),
		Type:      "Undo",
		Actor:     b.user.ActorURL(),
		Object:    original,
		To:        original["to"],
		Published: rfc3339Z(time.Now()),
	}
	return apmodel.WithContext(a)
}

// Like builds a Like of objectID, addressed to the object's author.
func (b *Builder) Like(objectID, objectAuthor string) map[string]interface{} {
	a := apmodel.Activity{
		ID:        b.ephemeralID("Like"),
		Type:      "Like",
		Actor:     b.user.ActorURL(),
		Object:    objectID,
		To:        []string{objectAuthor},
		Published: rfc3339Z(time.Now()),
	}
	return apmodel.WithContext(a)
}

// Announce builds an Announce (boost) of objectID.
func (b *Builder) Announce(objectID string) map[string]interface{} {
	a := apmodel.Activity{
		ID:        b.ephemeralID("Announce"),
		Type:      "Announce",
		Actor:     b.user.ActorURL(),
		Object:    objectID,
		To:        []string{apmodel.PublicURI},
		Published: rfc3339Z(time.Now()),
	}
	return apmodel.WithContext(a)
}

// Delete wraps id in a Tombstone and an outer Delete activity.
func (b *Builder) Delete(id string) map[string]interface{} {
	a := apmodel.Activity{
		ID:    objectBoundID(id, "Delete"),
		Type:  "Delete",
		Actor: b.user.ActorURL(),
		Object: apmodel.Tombstone{
			ID:   id,
			Type: "Tombstone",
		},
		Published: rfc3339Z(time.Now()),
	}
	return apmodel.WithContext(a)
}

// Update wraps the user's current Person document in an Update activity,
// announcing a profile change.
func (b *Builder) Update(person map[string]interface{}) map[string]interface{} {
	a := apmodel.Activity{
		ID:        b.ephemeralID("Update"),
		Type:      "Update",
		Actor:     b.user.ActorURL(),
		Object:    person,
		Published: rfc3339Z(time.Now()),
	}
	return apmodel.WithContext(a)
}

// Person builds this user's actor document.
func (b *Builder) Person() map[string]interface{} {
	actorURL := b.user.ActorURL()
	a := apmodel.Actor{
		ID:                actorURL,
		Type:              "Person",
		Name:              b.user.Cfg.Name,
		PreferredUsername: b.user.UID,
		Summary:           b.user.Cfg.Bio,
		Inbox:             actorURL + "/inbox",
		Outbox:            actorURL + "/outbox",
		Followers:         actorURL + "/followers",
		Following:         actorURL + "/following",
		Published:         b.user.Cfg.Published,
		PublicKey: &apmodel.PublicKey{
			ID:           b.user.KeyID(),
			Owner:        actorURL,
			PublicKeyPem: b.user.Key.PublicPEM,
		},
	}
	if b.user.Cfg.Avatar != "" {
		a.Icon = &apmodel.Image{Type: "Image", URL: b.user.Cfg.Avatar}
	}
	return apmodel.WithContext(a)
}

// NoteOptions carries the per-call inputs Note needs beyond the raw text,
// matching the parameters spec.md §4.8 lists for Note construction.
type NoteOptions struct {
	Content     string
	InReplyTo   string // empty for a top-level post
	Attachments []interface{}

	// Populated by the caller when InReplyTo resolves to a known message,
	// used to decide addressing and context propagation (spec.md §4.8).
	ParentAuthor  string
	ParentContext string
	ParentPublic  bool
}

// Note builds a Note per spec.md §4.8's construction rules: render the
// content with not_really_markdown, extract @user@host mentions (as
// Mention tags added to cc, resolved via WebFinger by the caller before
// this is invoked) and #tags (preserved verbatim, listed as Hashtag tags),
// propagate reply context, and default empty "to" to [Public].
func (b *Builder) Note(opts NoteOptions, mentionHrefs map[string]string) map[string]interface{} {
	rendered := format.NotReallyMarkdown(opts.Content)

	// Notes are stored objects, served by HTTPD's /{uid}/p/{tid} route.
	id := b.user.ActorURL() + "/p/" + tid()
	n := apmodel.Note{
		ID:           id,
		Type:         "Note",
		AttributedTo: b.user.ActorURL(),
		Content:      rendered,
		Published:    rfc3339Z(time.Now()),
		InReplyTo:    opts.InReplyTo,
		Attachment:   opts.Attachments,
	}

	var to, cc []string

	if opts.InReplyTo != "" && opts.ParentAuthor != "" {
		to = append(to, opts.ParentAuthor)
		n.Context_ = opts.ParentContext
		if opts.ParentPublic {
			to = append(to, apmodel.PublicURI)
		}
	} else {
		n.Context_ = id + "#ctxt"
	}

	for _, m := range format.Mentions(opts.Content) {
		href, ok := mentionHrefs[m.Handle]
		if !ok || href == "" {
			continue
		}
		n.Tag = append(n.Tag, map[string]interface{}{
			"type": "Mention",
			"href": href,
			"name": "@" + m.Handle,
		})
		cc = appendUnique(cc, href)
	}
	for _, h := range format.Hashtags(opts.Content) {
		n.Tag = append(n.Tag, map[string]interface{}{
			"type": "Hashtag",
			"href": b.user.Server.BaseURL("/tag/" + h),
			"name": "#" + h,
		})
	}

	if len(to) == 0 {
		to = []string{apmodel.PublicURI}
	}
	n.To = to
	n.CC = cc

	return apmodel.WithContext(n)
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// Create wraps note (as produced by Note) in a Create activity, copying
// attributedTo/to/cc per spec.md §4.8.
func (b *Builder) Create(note map[string]interface{}) map[string]interface{} {
	id, _ := note["id"].(string)
	a := apmodel.Activity{
		ID:        objectBoundID(id, "Create"),
		Type:      "Create",
		Actor:     b.user.ActorURL(),
		Object:    note,
		Published: rfc3339Z(time.Now()),
	}
	a.To = note["to"]
	a.CC = note["cc"]
	return apmodel.WithContext(a)
}
