package activitypub

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/klppl/fedif/internal/apmodel"
)

// RecipientList unions to/cc, dedupes, and — when expandPublic is true —
// substitutes apmodel.PublicURI with the full followers list, matching
// spec.md §4.11's recipient_list(msg, expand_public).
func (u *User) RecipientList(msg map[string]interface{}, expandPublic bool) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	add := func(v interface{}) {
		switch t := v.(type) {
		case string:
			if t != "" && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		case []interface{}:
			for _, item := range t {
				if s, ok := item.(string); ok && s != "" && !seen[s] {
					seen[s] = true
					out = append(out, s)
				}
			}
		}
	}

	add(msg["to"])
	add(msg["cc"])

	if !expandPublic {
		return out, nil
	}

	filtered := out[:0]
	hadPublic := false
	for _, r := range out {
		if r == apmodel.PublicURI {
			hadPublic = true
			continue
		}
		filtered = append(filtered, r)
	}
	out = filtered

	if hadPublic {
		followers, err := u.Followers.List()
		if err != nil {
			return nil, fmt.Errorf("activitypub: list followers: %w", err)
		}
		for _, f := range followers {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}

	return out, nil
}

// Post enqueues msg for delivery to every recipient, resolving each
// recipient's inbox (preferring endpoints.sharedInbox) and applying the
// self-delivery guard (spec.md §4.11).
func (u *User) Post(msg map[string]interface{}) error {
	recipients, err := u.RecipientList(msg, true)
	if err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("activitypub: marshal outbound message: %w", err)
	}

	selfActor := u.ActorURL()
	for _, recipient := range recipients {
		if recipient == selfActor || recipient == apmodel.PublicURI {
			continue
		}

		inbox, err := u.resolveInbox(recipient)
		if err != nil {
			slog.Warn("activitypub: could not resolve inbox, dropping recipient", "recipient", recipient, "error", err)
			continue
		}

		if err := u.Queue.EnqueueOutput(body, recipient, inbox, selfActor, 0); err != nil {
			slog.Error("activitypub: enqueue output failed", "recipient", recipient, "error", err)
		}
	}
	return nil
}

// resolveInbox prefers endpoints.sharedInbox over inbox, per spec.md §4.11.
func (u *User) resolveInbox(actorURL string) (string, error) {
	actor, err := u.Resolver.Get(actorURL, u.KeyID(), u.Key.Private())
	if err != nil {
		return "", err
	}
	if actor.Endpoints != nil && actor.Endpoints.SharedInbox != "" {
		return actor.Endpoints.SharedInbox, nil
	}
	if actor.Inbox == "" {
		return "", fmt.Errorf("activitypub: actor %s has no inbox", actorURL)
	}
	return actor.Inbox, nil
}
