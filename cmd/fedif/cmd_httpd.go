package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/klppl/fedif/internal/activitypub"
	"github.com/klppl/fedif/internal/config"
	"github.com/klppl/fedif/internal/httpd"
	"github.com/klppl/fedif/internal/mailer"
	"github.com/klppl/fedif/internal/purge"
)

// openInstance loads server.json from basedir and builds the shared
// Instance every command past "init"/"adduser" operates through.
func openInstance(basedir string) (*activitypub.Instance, error) {
	srv, err := config.LoadServer(basedir)
	if err != nil {
		return nil, err
	}
	return activitypub.NewInstance(srv, mailer.Sendmail{}), nil
}

// cmdHTTPD implements "httpd basedir": runs the HTTP server and its
// background queue/purge loops until SIGINT/SIGTERM (spec.md §5's
// cooperative cancellation).
func cmdHTTPD(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("httpd: basedir is required")
	}
	inst, err := openInstance(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return httpd.New(inst).Run(ctx)
}

// cmdPurge implements "purge basedir": runs the retention sweep once.
func cmdPurge(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("purge: basedir is required")
	}
	inst, err := openInstance(args[0])
	if err != nil {
		return err
	}
	return purge.All(inst.Server, inst.Objects)
}
