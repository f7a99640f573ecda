// Command fedif is a single-host, multi-user ActivityPub federation
// server: one binary providing both the CLI (init/adduser/httpd/purge/...)
// and the HTTPD daemon itself, matching original_source/main.c's dispatch
// shape and the teacher's cmd/klistr/main.go wiring order.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Best-effort: most deployments configure entirely through server.json
	// and user.json, but LOG_LEVEL and similar overrides are convenient to
	// drop in a .env next to the binary, the way the teacher's cmd/klistr
	// bootstraps. A missing file is not an error.
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "init":
		err = cmdInit(args)
	case "adduser":
		err = cmdAddUser(args)
	case "httpd":
		err = cmdHTTPD(args)
	case "purge":
		err = cmdPurge(args)
	case "webfinger":
		err = cmdWebFinger(args)
	case "queue":
		err = cmdQueue(args)
	case "follow":
		err = cmdFollow(args)
	case "request":
		err = cmdRequest(args)
	case "actor":
		err = cmdActor(args)
	case "note":
		err = cmdNote(args)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("fedif - a single-host, multi-user ActivityPub federation server")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println()
	fmt.Println("  init [basedir]                 Initializes a server directory")
	fmt.Println("  adduser basedir [uid]          Adds a new user")
	fmt.Println("  httpd basedir                  Starts the HTTPD daemon")
	fmt.Println("  purge basedir                  Purges old data")
	fmt.Println("  webfinger basedir user         Queries about a @user@host or actor URL")
	fmt.Println("  queue basedir uid              Processes a user's queue once")
	fmt.Println("  follow basedir uid actor       Follows an actor")
	fmt.Println("  request basedir uid url        Requests an object")
	fmt.Println("  actor basedir uid url          Requests an actor")
	fmt.Println(`  note basedir uid "text" [in_reply_to]   Posts a note`)
}
