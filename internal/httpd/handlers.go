package httpd

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/klppl/fedif/internal/activitypub"
	"github.com/klppl/fedif/internal/apmodel"
	"github.com/klppl/fedif/internal/flatstore"
	"github.com/klppl/fedif/internal/sigs"
)

// maxOutboxEntries is the "20 most recent own public notes" spec.md §4.12
// mandates for the outbox endpoint.
const maxOutboxEntries = 20

func writeJSON(w http.ResponseWriter, status int, contentType string, v interface{}) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) openUser(w http.ResponseWriter, r *http.Request) (*activitypub.User, bool) {
	uid := chi.URLParam(r, "uid")
	u, err := s.inst.OpenUser(uid)
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	return u, true
}

// handleActor serves GET /{uid}: the user's Person document. spec.md §6's
// wire surface calls for application/ld+json on the actor document itself,
// as opposed to activity+json on every other actor-bound resource.
func (s *Server) handleActor(w http.ResponseWriter, r *http.Request) {
	u, ok := s.openUser(w, r)
	if !ok {
		return
	}
	person := activitypub.NewBuilder(u).Person()
	writeJSON(w, http.StatusOK, ldJSONType, person)
}

// handleOutbox serves GET /{uid}/outbox: the 20 most recent public notes,
// newest first (spec.md §4.12).
func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	u, ok := s.openUser(w, r)
	if !ok {
		return
	}

	md5s, err := u.Cache.List(flatstore.CachePublic, maxOutboxEntries)
	if err != nil {
		slog.Error("httpd: list public cache failed", "uid", u.UID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	items := make([]interface{}, 0, len(md5s))
	for _, md5hex := range md5s {
		obj, err := u.Cache.Get(md5hex, flatstore.CachePublic)
		if err != nil || obj == nil {
			continue
		}
		items = append(items, obj)
	}

	col := apmodel.OrderedCollection{
		Context:      apmodel.DefaultContext,
		ID:           u.ActorURL() + "/outbox",
		Type:         "OrderedCollection",
		TotalItems:   len(items),
		OrderedItems: items,
	}
	writeJSON(w, http.StatusOK, activityJSONType, col)
}

// handleFollowers and handleFollowing serve empty collection stubs — this
// single-user-per-account engine doesn't expose follower/following
// enumeration publicly (spec.md §4.12's explicit stub note).
func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request) {
	s.emptyCollection(w, r, "followers")
}

func (s *Server) handleFollowing(w http.ResponseWriter, r *http.Request) {
	s.emptyCollection(w, r, "following")
}

func (s *Server) emptyCollection(w http.ResponseWriter, r *http.Request, which string) {
	u, ok := s.openUser(w, r)
	if !ok {
		return
	}
	col := apmodel.OrderedCollection{
		Context:      apmodel.DefaultContext,
		ID:           u.ActorURL() + "/" + which,
		Type:         "OrderedCollection",
		TotalItems:   0,
		OrderedItems: []interface{}{},
	}
	writeJSON(w, http.StatusOK, activityJSONType, col)
}

// handleNote serves GET /{uid}/p/{tid}: a single stored note by its tid
// suffix, matching spec.md §4.12's permalink route.
func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	u, ok := s.openUser(w, r)
	if !ok {
		return
	}
	tid := chi.URLParam(r, "tid")
	id := u.ActorURL() + "/p/" + tid

	obj, status, err := u.Objects.Get(id, "Note")
	if err != nil {
		slog.Error("httpd: load note failed", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if status != 200 || obj == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, activityJSONType, obj)
}

// acceptedInboxContentTypes are the bare media types spec.md §4.12 accepts
// on the inbox route (params like ";profile=..." are stripped before this
// comparison); anything else is rejected before it ever reaches the queue.
var acceptedInboxContentTypes = []string{"application/activity+json", "application/ld+json"}

// handleInbox serves POST /{uid}/inbox: verify content-type and digest,
// reject malformed JSON outright, snapshot the request for later signature
// replay, and enqueue as an input item (spec.md §4.12 — signature
// verification itself happens asynchronously at dequeue time, per spec.md
// §4.9's mandated ordering; §7's error taxonomy requires malformed JSON to
// be rejected with 400 rather than enqueued).
func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	u, ok := s.openUser(w, r)
	if !ok {
		return
	}

	if !validInboxContentType(r.Header.Get("Content-Type")) {
		http.Error(w, "unsupported content type", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if !json.Valid(body) {
		slog.Info("httpd: rejecting inbox post", "uid", u.UID, "error", "malformed JSON")
		http.Error(w, "malformed JSON", http.StatusBadRequest)
		return
	}

	if err := sigs.RequireDigest(body, r.Header.Get("Digest")); err != nil {
		slog.Info("httpd: rejecting inbox post", "uid", u.UID, "error", err)
		http.Error(w, "bad digest", http.StatusBadRequest)
		return
	}

	snap := sigs.Snapshot{Method: r.Method, Path: r.URL.RequestURI(), Header: r.Header.Clone()}
	reqJSON, err := json.Marshal(snap)
	if err != nil {
		slog.Error("httpd: snapshot request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := u.Queue.EnqueueInput(body, reqJSON, 0); err != nil {
		slog.Error("httpd: enqueue input failed", "uid", u.UID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// handleWebFinger answers GET /.well-known/webfinger?resource=acct:uid@host
// for local accounts, matching spec.md §4.12 / original_source/webfinger.c.
func (s *Server) handleWebFinger(w http.ResponseWriter, r *http.Request) {
	resource := r.URL.Query().Get("resource")
	uid, ok := parseLocalAcct(resource, s.inst.Server.Host)
	if !ok {
		http.NotFound(w, r)
		return
	}

	u, err := s.inst.OpenUser(uid)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	jrd := apmodel.WebFingerResponse{
		Subject: "acct:" + uid + "@" + s.inst.Server.Host,
		Aliases: []string{u.ActorURL()},
		Links: []apmodel.WebFingerLink{
			{Rel: "self", Type: activityJSONType, Href: u.ActorURL()},
		},
	}
	writeJSON(w, http.StatusOK, "application/jrd+json", jrd)
}

// validInboxContentType reports whether header names an AP-flavored JSON
// media type, ignoring any "; profile=..."/charset parameters the way real
// federated servers send them.
func validInboxContentType(header string) bool {
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	for _, t := range acceptedInboxContentTypes {
		if mediaType == t {
			return true
		}
	}
	return false
}

// parseLocalAcct extracts uid from "acct:uid@host", requiring host to match.
func parseLocalAcct(resource, host string) (uid string, ok bool) {
	const prefix = "acct:"
	if len(resource) <= len(prefix) || resource[:len(prefix)] != prefix {
		return "", false
	}
	rest := resource[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '@' {
			if rest[i+1:] != host {
				return "", false
			}
			return rest[:i], true
		}
	}
	return "", false
}
