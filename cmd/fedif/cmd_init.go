package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/klppl/fedif/internal/config"
)

// readLine prompts and reads one line of stdin, trimmed. Used by both init
// and adduser for their interactive prompts, matching
// original_source/utils.c's xs_readline-driven prompts.
func readLine(prompt string) string {
	fmt.Println(prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}

// cmdInit implements "init [basedir]": creates basedir, prompts for the
// handful of server.json fields that have no sane default (host, prefix),
// and writes out a fresh server.json. Refuses to run against an existing
// directory.
func cmdInit(args []string) error {
	basedir := ""
	if len(args) > 0 {
		basedir = args[0]
	} else {
		basedir = readLine("Base directory:")
	}
	if basedir == "" {
		return fmt.Errorf("init: base directory is required")
	}
	basedir = strings.TrimSuffix(basedir, "/")

	if _, err := os.Stat(basedir); err == nil {
		return fmt.Errorf("init: directory %q must not already exist", basedir)
	}

	srv := &config.Server{
		BaseDir:            basedir,
		Address:            "0.0.0.0",
		Port:               8001,
		Layout:             config.Layout,
		DbgLevel:           1,
		QueueRetryMinutes:  2,
		QueueRetryMax:      10,
		MaxTimelineEntries: 256,
		TimelinePurgeDays:  90,
		LocalPurgeDays:     0,
	}

	if addr := readLine(fmt.Sprintf("Network address [%s]:", srv.Address)); addr != "" {
		srv.Address = addr
	}
	if portStr := readLine(fmt.Sprintf("Network port [%d]:", srv.Port)); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("init: invalid port %q: %w", portStr, err)
		}
		srv.Port = port
	}
	host := readLine("Host name:")
	if host == "" {
		return fmt.Errorf("init: host name is required")
	}
	srv.Host = host
	if prefix := readLine("URL prefix:"); prefix != "" {
		srv.Prefix = strings.TrimSuffix(prefix, "/")
	}

	if err := os.MkdirAll(basedir+"/user", 0755); err != nil {
		return fmt.Errorf("init: create %s/user: %w", basedir, err)
	}
	if err := srv.Save(); err != nil {
		return fmt.Errorf("init: save server.json: %w", err)
	}

	fmt.Printf("Server initialized at %s\n", basedir)
	return nil
}

// cmdAddUser implements "adduser basedir [uid]": creates the user's
// directory tree, an RSA keypair, and a user.json with a random initial
// password, printed once (there is no recovery path — the password is
// stored hashed).
func cmdAddUser(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("adduser: basedir is required")
	}
	basedir := args[0]

	uid := ""
	if len(args) > 1 {
		uid = args[1]
	} else {
		uid = readLine("User id:")
	}
	if !config.ValidUID(uid) {
		return fmt.Errorf("adduser: %q is not a valid uid (alphanumeric and underscore only)", uid)
	}

	if _, err := config.LoadUser(basedir, uid); err == nil {
		return fmt.Errorf("adduser: user %q already exists", uid)
	}

	password := randomPassword()
	user := &config.User{
		UID:    uid,
		Name:   uid,
		Passwd: config.HashPassword(uid, password, ""),
	}

	dir := config.UserDir(basedir, uid)
	for _, sub := range []string{"", "queue"} {
		if err := os.MkdirAll(dir+"/"+sub, 0755); err != nil {
			return fmt.Errorf("adduser: create %s/%s: %w", dir, sub, err)
		}
	}

	if err := writeUser(basedir, uid, user); err != nil {
		return err
	}
	if _, err := config.GenerateKey(basedir, uid); err != nil {
		return fmt.Errorf("adduser: generate key: %w", err)
	}

	fmt.Printf("User %q created. Initial password: %s\n", uid, password)
	return nil
}

// writeUser saves a freshly-created user.json directly: User.Save needs a
// User loaded by LoadUser to know its own path, which a brand new account
// doesn't have yet.
func writeUser(basedir, uid string, u *config.User) error {
	dir := config.UserDir(basedir, uid)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("adduser: mkdir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(u, "", "    ")
	if err != nil {
		return fmt.Errorf("adduser: marshal user.json: %w", err)
	}
	if err := os.WriteFile(dir+"/user.json", data, 0600); err != nil {
		return fmt.Errorf("adduser: write user.json: %w", err)
	}
	return nil
}

func randomPassword() string {
	var buf [12]byte
	f, err := os.Open("/dev/urandom")
	if err == nil {
		defer f.Close()
		_, _ = f.Read(buf[:])
	}
	return fmt.Sprintf("%x", buf)
}
