// Package mailer supplies the side-effect sink for notification emails.
// SMTP notification is explicitly out of scope as an external collaborator
// (spec.md §1); this package only specifies the interface and a minimal
// default implementation, grounded on original_source/activitypub.c's
// process_queue email branch (popen("/usr/sbin/sendmail -t", "w")).
package mailer

import (
	"fmt"
	"os/exec"
)

// Mailer sends a pre-formatted RFC822 message. Implementations are
// injected so tests can swap in a fake that records messages instead of
// shelling out.
type Mailer interface {
	Send(message string) error
}

// Sendmail shells out to the system sendmail binary, the direct
// equivalent of the source's popen("/usr/sbin/sendmail -t", "w").
type Sendmail struct {
	Path string // defaults to "/usr/sbin/sendmail" if empty
}

// Send writes message to sendmail's stdin with the "-t" flag (recipients
// taken from the message's own headers).
func (s Sendmail) Send(message string) error {
	path := s.Path
	if path == "" {
		path = "/usr/sbin/sendmail"
	}
	cmd := exec.Command(path, "-t")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("mailer: stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("mailer: start %s: %w", path, err)
	}
	if _, err := fmt.Fprintln(stdin, message); err != nil {
		stdin.Close()
		return fmt.Errorf("mailer: write message: %w", err)
	}
	if err := stdin.Close(); err != nil {
		return fmt.Errorf("mailer: close stdin: %w", err)
	}
	return cmd.Wait()
}

// Discard is a no-op Mailer for deployments or tests that don't want email
// notifications delivered at all.
type Discard struct{}

func (Discard) Send(string) error { return nil }
