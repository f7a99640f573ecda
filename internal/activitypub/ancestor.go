package activitypub

import (
	"encoding/json"
	"fmt"

	"github.com/klppl/fedif/internal/apmodel"
	"github.com/klppl/fedif/internal/httpclient"
)

// maxAncestorDepth bounds the recursive inReplyTo walk so an adversarial
// reply chain can't force unbounded work — the cap spec.md §9's design
// notes call for ("bound the depth (e.g., 32)").
const maxAncestorDepth = 32

// fetchAncestors implements spec.md §4.10: on seeing id, fetch it (signed,
// with the AP accept header) if not already stored, then recurse into its
// inReplyTo. Termination: missing inReplyTo, already-present object,
// request failure, or maxAncestorDepth reached.
func (f *FSM) fetchAncestors(id string, depth int) error {
	if depth >= maxAncestorDepth {
		return fmt.Errorf("activitypub: ancestor chain exceeds depth %d at %s", maxAncestorDepth, id)
	}

	u := f.user
	if _, status, err := u.Objects.Get(id, ""); err == nil && status == 200 {
		return nil
	}

	client := httpclient.New()
	accept := `application/activity+json, application/ld+json; profile="https://www.w3.org/ns/activitystreams"`
	resp, err := client.Get(id, accept, u.KeyID(), u.Key.Private())
	if err != nil {
		return fmt.Errorf("activitypub: fetch ancestor %s: %w", id, err)
	}
	if !httpclient.ValidStatus(resp.Status) {
		return fmt.Errorf("activitypub: fetch ancestor %s: HTTP %d", id, resp.Status)
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(resp.Body, &obj); err != nil {
		return fmt.Errorf("activitypub: decode ancestor %s: %w", id, err)
	}

	if _, err := u.Objects.Put(id, obj, false); err != nil {
		return fmt.Errorf("activitypub: store ancestor %s: %w", id, err)
	}

	if parent := apmodel.GetString(obj, "inReplyTo"); parent != "" {
		return f.fetchAncestors(parent, depth+1)
	}
	return nil
}
