package activitypub

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/klppl/fedif/internal/httpclient"
	"github.com/klppl/fedif/internal/queue"
	"github.com/klppl/fedif/internal/sigs"
)

// ProcessQueue drains every mature item in u's queue, matching
// original_source/activitypub.c's process_queue: output items are
// delivered over HTTP, input items are run through the FSM, email items
// are handed to the Mailer. Failures are retried up to
// server.QueueRetryMax, then dropped with a log line (spec.md §4.6, §7).
func (u *User) ProcessQueue() {
	names, err := u.Queue.List()
	if err != nil {
		slog.Error("activitypub: list queue failed", "uid", u.UID, "error", err)
		return
	}

	fsm := NewFSM(u)
	client := httpclient.New()
	maxRetries := u.Server.QueueRetryMax

	for _, name := range names {
		item, err := u.Queue.Dequeue(name)
		if err != nil {
			slog.Error("activitypub: dequeue failed", "uid", u.UID, "file", name, "error", err)
			continue
		}

		switch item.Type {
		case queue.KindOutput:
			u.processOutput(client, item, maxRetries)
		case queue.KindInput:
			u.processInput(fsm, item, maxRetries)
		case queue.KindEmail:
			u.processEmail(item, maxRetries)
		default:
			slog.Warn("activitypub: unknown queue item type", "type", item.Type)
		}
	}
}

func (u *User) processOutput(client *httpclient.Client, item *queue.Item, maxRetries int) {
	resp, err := client.Post(item.Inbox, item.Object, u.KeyID(), u.Key.Private())
	if err == nil && httpclient.ValidStatus(resp.Status) {
		slog.Debug("activitypub: delivered", "actor", item.Actor, "status", resp.Status)
		return
	}

	if item.Retries >= maxRetries {
		slog.Warn("activitypub: giving up on delivery", "actor", item.Actor, "retries", item.Retries)
		return
	}
	if rerr := u.Queue.EnqueueOutput(item.Object, item.Actor, item.Inbox, u.ActorURL(), item.Retries+1); rerr != nil {
		slog.Error("activitypub: requeue output failed", "error", rerr)
	}
}

func (u *User) processInput(fsm *FSM, item *queue.Item, maxRetries int) {
	var snap sigs.Snapshot
	if len(item.Req) > 0 {
		_ = json.Unmarshal(item.Req, &snap)
	}

	err := fsm.Process(item.Object, snap)
	if err == nil {
		return
	}
	if errors.Is(err, ErrDrop) {
		slog.Info("activitypub: dropping input item", "error", err)
		return
	}

	if item.Retries >= maxRetries {
		slog.Warn("activitypub: giving up on input item", "retries", item.Retries, "error", err)
		return
	}
	if rerr := u.Queue.EnqueueInput(item.Object, item.Req, item.Retries+1); rerr != nil {
		slog.Error("activitypub: requeue input failed", "error", rerr)
	}
}

func (u *User) processEmail(item *queue.Item, maxRetries int) {
	if err := u.Mailer.Send(item.Message); err == nil {
		slog.Debug("activitypub: email sent", "uid", u.UID)
		return
	} else if item.Retries >= maxRetries {
		slog.Warn("activitypub: giving up on email", "retries", item.Retries, "error", err)
	} else {
		if rerr := u.Queue.EnqueueEmail(item.Message, item.Retries+1); rerr != nil {
			slog.Error("activitypub: requeue email failed", "error", rerr)
		}
	}
}
