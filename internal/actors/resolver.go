// Package actors implements ActorResolver (spec.md §4.7): WebFinger
// handle resolution and actor-object fetch with a 36-hour staleness TTL,
// grounded on the teacher's FetchObject/FetchActor/WebFingerResolve in
// internal/ap/client.go, but persisted through flatstore.ObjectStore
// rather than an in-memory sync.Map cache — the spec's staleness check is
// mtime-based, not a process-lifetime cache (spec.md invariant 7).
package actors

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/klppl/fedif/internal/apmodel"
	"github.com/klppl/fedif/internal/flatstore"
	"github.com/klppl/fedif/internal/httpclient"
)

// staleAfter is the 36-hour staleness window from spec.md invariant 7.
const staleAfter = 36 * time.Hour

// ErrGone is returned when the remote actor answers 410, matching the
// teacher's ErrGone and the permanent-remote error kind from spec.md §7.
var ErrGone = errors.New("actors: actor is gone (410)")

// ErrNotFound covers 404s.
var ErrNotFound = errors.New("actors: actor not found (404)")

// Resolver fetches and caches remote actors, backed by an ObjectStore so
// the cache survives restarts and is shared across every user on the
// instance (spec.md §3: Object is keyed by md5(id) regardless of which
// user first saw it).
type Resolver struct {
	store  *flatstore.ObjectStore
	client *httpclient.Client
}

// New returns a Resolver backed by store.
func New(store *flatstore.ObjectStore) *Resolver {
	return &Resolver{store: store, client: httpclient.New()}
}

// Stale reports whether a previously-cached actor's record is older than
// the 36h TTL. Used by callers that need the "advisory stale status" from
// spec.md §4.7 without re-fetching.
func (r *Resolver) Stale(actorURL string) (bool, error) {
	mtime, err := r.store.Mtime(actorURL)
	if err != nil {
		return false, err
	}
	return time.Since(mtime) > staleAfter, nil
}

// Get resolves actor, the way spec.md §4.7 describes: try ObjectStore
// first; if present and fresh, return it; if present but stale, touch its
// mtime (restarting the 36h window) and return the cached copy anyway —
// a stale copy is not re-fetched here; if absent, fetch it with a signed GET, validate
// content-type, and store it. keyID/priv are this instance's own signing
// identity, used to sign the outbound fetch — snac2 signs even actor GETs.
func (r *Resolver) Get(actorURL, keyID string, priv *rsa.PrivateKey) (*apmodel.Actor, error) {
	obj, status, err := r.store.Get(actorURL, "")
	if err != nil {
		return nil, fmt.Errorf("actors: lookup cache for %s: %w", actorURL, err)
	}
	if status == 200 {
		stale, err := r.Stale(actorURL)
		if err != nil {
			return nil, err
		}
		if stale {
			slog.Debug("actor cache entry is stale, marking for refresh", "actor", actorURL)
			_ = r.store.Touch(actorURL)
		}
		return apmodel.ToActor(obj), nil
	}

	return r.fetch(actorURL, keyID, priv)
}

func (r *Resolver) fetch(actorURL, keyID string, priv *rsa.PrivateKey) (*apmodel.Actor, error) {
	accept := `application/activity+json, application/ld+json; profile="https://www.w3.org/ns/activitystreams"`
	resp, err := r.client.Get(actorURL, accept, keyID, priv)
	if err != nil {
		return nil, fmt.Errorf("actors: fetch %s: %w", actorURL, err)
	}

	switch resp.Status {
	case 410:
		return nil, ErrGone
	case 404:
		return nil, ErrNotFound
	}
	if !httpclient.ValidStatus(resp.Status) {
		return nil, fmt.Errorf("actors: fetch %s: HTTP %d", actorURL, resp.Status)
	}

	ct := resp.Headers.Get("Content-Type")
	if !isAPMediaType(ct) {
		return nil, fmt.Errorf("actors: %s returned unexpected content-type %q", actorURL, ct)
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(resp.Body, &obj); err != nil {
		return nil, fmt.Errorf("actors: decode %s: %w", actorURL, err)
	}
	if !apmodel.IsActorType(obj) {
		return nil, fmt.Errorf("actors: %s is not an actor document", actorURL)
	}

	if _, err := r.store.Put(actorURL, obj, true); err != nil {
		return nil, fmt.Errorf("actors: cache %s: %w", actorURL, err)
	}

	return apmodel.ToActor(obj), nil
}

// PublicKey resolves keyID (an actor URL with "#fragment") to the actor's
// RSA public key, used by sigs.Verify via a closure constructed in the
// caller (internal/activitypub's InboundFSM).
func (r *Resolver) PublicKey(keyID, ourKeyID string, ourPriv *rsa.PrivateKey) (*rsa.PublicKey, error) {
	actorURL := keyID
	if i := strings.Index(keyID, "#"); i >= 0 {
		actorURL = keyID[:i]
	}
	actor, err := r.Get(actorURL, ourKeyID, ourPriv)
	if err != nil {
		return nil, err
	}
	if actor.PublicKey == nil || actor.PublicKey.PublicKeyPem == "" {
		return nil, fmt.Errorf("actors: %s has no public key", actorURL)
	}
	return parseRSAPublicKeyPEM(actor.PublicKey.PublicKeyPem)
}

func isAPMediaType(ct string) bool {
	lower := strings.ToLower(ct)
	if strings.HasPrefix(lower, "application/activity+json") {
		return true
	}
	return strings.HasPrefix(lower, "application/ld+json") &&
		strings.Contains(lower, "https://www.w3.org/ns/activitystreams")
}
