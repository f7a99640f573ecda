package actors

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/klppl/fedif/internal/apmodel"
	"github.com/klppl/fedif/internal/httpclient"
)

// WebFinger resolves handle to an actor URL, accepting either an
// "https://…" actor URL or an "@user@host"/"user@host" handle, matching
// spec.md §4.7 and original_source/webfinger.c.
func (r *Resolver) WebFinger(handle string) (actorURL string, err error) {
	handle = strings.TrimPrefix(handle, "@")

	var host, resource string
	if strings.HasPrefix(handle, "http://") || strings.HasPrefix(handle, "https://") {
		u := handle
		if i := strings.Index(u, "://"); i >= 0 {
			rest := u[i+3:]
			if slash := strings.IndexByte(rest, '/'); slash >= 0 {
				host = rest[:slash]
			} else {
				host = rest
			}
		}
		resource = handle
	} else {
		parts := strings.SplitN(handle, "@", 2)
		if len(parts) != 2 {
			return "", fmt.Errorf("actors: invalid handle %q: expected user@host", handle)
		}
		host = parts[1]
		resource = "acct:" + handle
	}

	wfURL := fmt.Sprintf("https://%s/.well-known/webfinger?resource=%s", host, resource)

	resp, err := r.client.Get(wfURL, "application/jrd+json, application/json", "", nil)
	if err != nil {
		return "", fmt.Errorf("actors: webfinger %s: %w", handle, err)
	}
	if !httpclient.ValidStatus(resp.Status) {
		return "", fmt.Errorf("actors: webfinger %s returned HTTP %d", handle, resp.Status)
	}

	var wf apmodel.WebFingerResponse
	if err := json.Unmarshal(resp.Body, &wf); err != nil {
		return "", fmt.Errorf("actors: webfinger %s: decode: %w", handle, err)
	}

	for _, link := range wf.Links {
		if link.Rel == "self" && isAPMediaType(link.Type) {
			return link.Href, nil
		}
	}
	return "", fmt.Errorf("actors: no ActivityPub actor link for %s", handle)
}
