package main

import (
	"fmt"

	"github.com/klppl/fedif/internal/activitypub"
)

// cmdFollow implements "follow basedir uid actor": resolves actor via
// WebFinger, whether it's an "@user@host" handle or an actor URL, builds
// a Follow against the resolved canonical actor id, records it in the
// following list, stores the activity (so a later Undo can echo it), and
// enqueues delivery — matching original_source/main.c's follow branch
// (msg_follow + following_add + enqueue_output).
func cmdFollow(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("follow: basedir, uid, and actor are required")
	}
	inst, err := openInstance(args[0])
	if err != nil {
		return err
	}
	u, err := inst.OpenUser(args[1])
	if err != nil {
		return fmt.Errorf("follow: open user %q: %w", args[1], err)
	}

	target, err := u.Resolver.WebFinger(args[2])
	if err != nil {
		return fmt.Errorf("follow: resolve %q: %w", args[2], err)
	}

	builder := activitypub.NewBuilder(u)
	msg, err := builder.Follow(target)
	if err != nil {
		return fmt.Errorf("follow: %w", err)
	}

	if err := u.Following.Add(target); err != nil {
		return fmt.Errorf("follow: record following: %w", err)
	}
	if id, _ := msg["id"].(string); id != "" {
		if _, err := u.Objects.Put(id, msg, false); err != nil {
			return fmt.Errorf("follow: store follow activity: %w", err)
		}
	}
	if err := u.Post(msg); err != nil {
		return fmt.Errorf("follow: enqueue delivery: %w", err)
	}

	fmt.Printf("now following %s\n", target)
	return nil
}
