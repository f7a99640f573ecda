// Package apmodel holds the ActivityPub/ActivityStreams JSON shapes shared
// across the federation engine. Per SPEC_FULL.md's design notes, the
// dynamically-typed JSON value is kept as a plain map[string]interface{}
// for round-trip fidelity, with these typed structs used only where a
// component needs named field access — the same two-tier approach the
// teacher's internal/ap/types.go and mapToActor/mapToNote take.
package apmodel

import (
	"encoding/json"
	"fmt"
)

// StringOrArray deserialises an AP field that may be either a JSON string
// or a JSON array of strings.
type StringOrArray []string

func (s *StringOrArray) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*s = arr
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if str == "" {
			*s = nil
			return nil
		}
		*s = []string{str}
		return nil
	}
	return fmt.Errorf("apmodel: cannot unmarshal %s into string or []string", data)
}

const (
	// PublicURI is the magic addressee meaning "everyone".
	PublicURI = "https://www.w3.org/ns/activitystreams#Public"
	// ActivityStreamsNS is the AS2 JSON-LD context.
	ActivityStreamsNS = "https://www.w3.org/ns/activitystreams"
	SecurityNS        = "https://w3id.org/security/v1"
)

// DefaultContext is the @context emitted on every object this engine
// builds, matching the teacher's DefaultContext shape pared down to the
// vocabulary this spec actually uses.
var DefaultContext = []interface{}{
	ActivityStreamsNS,
	SecurityNS,
	map[string]interface{}{
		"Hashtag":   "as:Hashtag",
		"sensitive": "as:sensitive",
	},
}

// Actor is an ActivityPub actor document (Person, in this single-class
// system per spec.md §1/§3).
type Actor struct {
	Context           interface{} `json:"@context,omitempty"`
	ID                string      `json:"id"`
	Type              string      `json:"type"`
	Name              string      `json:"name,omitempty"`
	PreferredUsername string      `json:"preferredUsername"`
	Summary           string      `json:"summary,omitempty"`
	Inbox             string      `json:"inbox"`
	Outbox            string      `json:"outbox,omitempty"`
	Followers         string      `json:"followers,omitempty"`
	Following         string      `json:"following,omitempty"`
	PublicKey         *PublicKey  `json:"publicKey,omitempty"`
	Icon              *Image      `json:"icon,omitempty"`
	URL               string      `json:"url,omitempty"`
	Endpoints         *Endpoints  `json:"endpoints,omitempty"`
	Published         string      `json:"published,omitempty"`
}

type PublicKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

type Image struct {
	Type      string `json:"type"`
	MediaType string `json:"mediaType,omitempty"`
	URL       string `json:"url"`
}

type Endpoints struct {
	SharedInbox string `json:"sharedInbox,omitempty"`
}

// Note is an ActivityPub Note.
type Note struct {
	Context      interface{}   `json:"@context,omitempty"`
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	AttributedTo string        `json:"attributedTo"`
	Content      string        `json:"content"`
	Published    string        `json:"published,omitempty"`
	To           []string      `json:"to,omitempty"`
	CC           []string      `json:"cc,omitempty"`
	Tag          []interface{} `json:"tag,omitempty"`
	Attachment   []interface{} `json:"attachment,omitempty"`
	URL          string        `json:"url,omitempty"`
	InReplyTo    string        `json:"inReplyTo,omitempty"`
	Context_     string        `json:"context,omitempty"`
	Sensitive    bool          `json:"sensitive,omitempty"`
	Summary      string        `json:"summary,omitempty"`
}

// Tombstone is what Delete wraps its object in.
type Tombstone struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Activity is a generic outbound activity envelope.
type Activity struct {
	Context   interface{} `json:"@context,omitempty"`
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Actor     string      `json:"actor"`
	Object    interface{} `json:"object"`
	To        interface{} `json:"to,omitempty"`
	CC        interface{} `json:"cc,omitempty"`
	Published string      `json:"published,omitempty"`
}

// IncomingActivity is used to parse an inbound activity where Object may be
// a bare string id or an embedded object.
type IncomingActivity struct {
	Context   interface{}     `json:"@context,omitempty"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     string          `json:"actor"`
	Object    json.RawMessage `json:"object"`
	To        StringOrArray   `json:"to,omitempty"`
	CC        StringOrArray   `json:"cc,omitempty"`
	Published string          `json:"published,omitempty"`
}

// OrderedCollection is a paginated AP collection; this engine only ever
// emits the single-page form (spec.md §4.12: outbox returns "the 20 most
// recent own public notes", followers/following are empty stubs).
type OrderedCollection struct {
	Context      interface{} `json:"@context"`
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	TotalItems   int         `json:"totalItems"`
	OrderedItems interface{} `json:"orderedItems"`
}

type WebFingerResponse struct {
	Subject string          `json:"subject"`
	Aliases []string        `json:"aliases,omitempty"`
	Links   []WebFingerLink `json:"links"`
}

type WebFingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href,omitempty"`
}

// WithContext wraps v's JSON with the default @context, the way the
// teacher's WithContext/ActivityToMap helpers do for outbound payloads.
func WithContext(v interface{}) map[string]interface{} {
	data, _ := json.Marshal(v)
	m := make(map[string]interface{})
	_ = json.Unmarshal(data, &m)
	m["@context"] = DefaultContext
	return m
}

// GetString is the teacher's getString helper, used when projecting a raw
// map into typed fields on demand.
func GetString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ToActor projects a generic decoded object into an Actor, mirroring
// mapToActor in the teacher's internal/ap/client.go.
func ToActor(m map[string]interface{}) *Actor {
	if m == nil {
		return nil
	}
	a := &Actor{
		ID:                GetString(m, "id"),
		Type:              GetString(m, "type"),
		Name:              GetString(m, "name"),
		PreferredUsername: GetString(m, "preferredUsername"),
		Summary:           GetString(m, "summary"),
		Inbox:             GetString(m, "inbox"),
		Outbox:            GetString(m, "outbox"),
		Followers:         GetString(m, "followers"),
		Following:         GetString(m, "following"),
		URL:               GetString(m, "url"),
		Published:         GetString(m, "published"),
	}
	if pk, ok := m["publicKey"].(map[string]interface{}); ok {
		a.PublicKey = &PublicKey{
			ID:           GetString(pk, "id"),
			Owner:        GetString(pk, "owner"),
			PublicKeyPem: GetString(pk, "publicKeyPem"),
		}
	}
	if ep, ok := m["endpoints"].(map[string]interface{}); ok {
		a.Endpoints = &Endpoints{SharedInbox: GetString(ep, "sharedInbox")}
	}
	if icon, ok := m["icon"].(map[string]interface{}); ok {
		a.Icon = &Image{Type: GetString(icon, "type"), URL: GetString(icon, "url")}
	}
	return a
}

// IsActorType reports whether a decoded object's "type" names an actor.
func IsActorType(obj map[string]interface{}) bool {
	switch GetString(obj, "type") {
	case "Person", "Service", "Application", "Group", "Organization":
		return true
	}
	return false
}
