package activitypub

import (
	"fmt"
	"log/slog"
	"time"
)

// Event names the kinds of inbound activity that produce an email
// notification, matching original_source/activitypub.c's notify(): new
// follower, new reply, Like, Announce, and Undo-Follow are "interesting";
// everything else is silent (spec.md §4.9's notification trigger).
type Event int

const (
	EventNewFollower Event = iota
	EventUnfollow
	EventReply
	EventLike
	EventAnnounce
)

// notify composes and enqueues an email notification if this user has a
// configured address. objectID is used in the message body of the events
// that concern an object and may be empty otherwise; extra is not used.
func (f *FSM) notify(ev Event, actor, objectID, extra string) {
	u := f.user
	if u.Cfg.Email == "" {
		return
	}

	subject, body := notificationText(ev, actor, objectID, u.Server.ActorURL(u.UID))
	msg := fmt.Sprintf(
		"From: %s <noreply@%s>\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\n\r\n%s\r\n",
		u.Cfg.Name, u.Server.Host, u.Cfg.Email, subject, time.Now().UTC().Format(time.RFC1123Z), body,
	)

	if err := u.Queue.EnqueueEmail(msg, 0); err != nil {
		slog.Error("activitypub: failed to enqueue notification email", "uid", u.UID, "error", err)
	}
}

func notificationText(ev Event, actor, objectID, selfActor string) (subject, body string) {
	switch ev {
	case EventNewFollower:
		return "new follower", fmt.Sprintf("%s started following you.", actor)
	case EventUnfollow:
		return "follower left", fmt.Sprintf("%s is no longer following you.", actor)
	case EventReply:
		return "new reply", fmt.Sprintf("%s replied to you: %s", actor, objectID)
	case EventLike:
		return "new like", fmt.Sprintf("%s liked %s", actor, objectID)
	case EventAnnounce:
		return "new announce", fmt.Sprintf("%s announced %s", actor, objectID)
	default:
		return "notification", fmt.Sprintf("activity from %s", actor)
	}
}
