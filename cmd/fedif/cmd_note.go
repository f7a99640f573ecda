package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/klppl/fedif/internal/activitypub"
	"github.com/klppl/fedif/internal/apmodel"
	"github.com/klppl/fedif/internal/format"
)

// cmdNote implements "note basedir uid 'text' [in_reply_to]": sends a note
// to followers, matching original_source/main.c's note branch. Passing "-"
// for text opens $EDITOR on a scratch file, matching the original's
// system("$EDITOR /tmp/snac-edit.txt") dance.
func cmdNote(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("note: basedir, uid, and text are required")
	}
	inst, err := openInstance(args[0])
	if err != nil {
		return err
	}
	u, err := inst.OpenUser(args[1])
	if err != nil {
		return fmt.Errorf("note: open user %q: %w", args[1], err)
	}

	text := args[2]
	if text == "-" {
		content, err := editContent()
		if err != nil {
			return err
		}
		if content == "" {
			return fmt.Errorf("note: nothing to send")
		}
		text = content
	}

	var inReplyTo string
	if len(args) > 3 {
		inReplyTo = args[3]
	}

	opts := activitypub.NoteOptions{
		Content:   text,
		InReplyTo: inReplyTo,
	}
	if inReplyTo != "" {
		if parent, status, err := u.Objects.Get(inReplyTo, "Note"); err == nil && status == 200 && parent != nil {
			if author, _ := parent["attributedTo"].(string); author != "" {
				opts.ParentAuthor = author
			}
			if ctx, ok := parent["context"].(string); ok {
				opts.ParentContext = ctx
			}
			opts.ParentPublic = recipientsIncludePublic(parent)
		}
	}

	mentionHrefs := map[string]string{}
	for _, m := range format.Mentions(text) {
		if actorURL, err := u.Resolver.WebFinger(m.Handle); err == nil && actorURL != "" {
			mentionHrefs[m.Handle] = actorURL
		}
	}

	builder := activitypub.NewBuilder(u)
	note := builder.Note(opts, mentionHrefs)
	create := builder.Create(note)

	noteID, _ := note["id"].(string)
	if _, err := u.TimelineAdd(noteID, note); err != nil {
		return fmt.Errorf("note: store note: %w", err)
	}

	if err := u.Post(create); err != nil {
		return fmt.Errorf("note: enqueue delivery: %w", err)
	}

	fmt.Printf("sent note %s\n", noteID)
	return nil
}

func recipientsIncludePublic(obj map[string]interface{}) bool {
	check := func(v interface{}) bool {
		switch t := v.(type) {
		case string:
			return t == apmodel.PublicURI
		case []interface{}:
			for _, item := range t {
				if s, ok := item.(string); ok && s == apmodel.PublicURI {
					return true
				}
			}
		}
		return false
	}
	return check(obj["to"]) || check(obj["cc"])
}

// editContent shells out to $EDITOR against a scratch file, the Go
// equivalent of the original's system("$EDITOR /tmp/snac-edit.txt").
func editContent() (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	path := "/tmp/fedif-edit.txt"
	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("note: run $EDITOR: %w", err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil
	}
	return string(data), nil
}
