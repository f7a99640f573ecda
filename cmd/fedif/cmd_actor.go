package main

import (
	"encoding/json"
	"fmt"

	"github.com/klppl/fedif/internal/httpclient"
)

// cmdActor implements "actor basedir uid url": fetches an actor document
// by URL and prints it, matching original_source/main.c's actor branch
// (actor_request).
func cmdActor(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("actor: basedir, uid, and url are required")
	}
	inst, err := openInstance(args[0])
	if err != nil {
		return err
	}
	u, err := inst.OpenUser(args[1])
	if err != nil {
		return fmt.Errorf("actor: open user %q: %w", args[1], err)
	}
	url := args[2]

	client := httpclient.New()
	resp, err := client.Get(url, "application/activity+json", u.KeyID(), u.Key.Private())
	if err != nil {
		fmt.Println("status: error")
		return err
	}

	fmt.Printf("status: %d\n", resp.Status)
	if !httpclient.ValidStatus(resp.Status) {
		return nil
	}
	var actor map[string]interface{}
	if err := json.Unmarshal(resp.Body, &actor); err != nil {
		return fmt.Errorf("actor: parse response: %w", err)
	}
	pretty, _ := json.MarshalIndent(actor, "", "    ")
	fmt.Println(string(pretty))
	return nil
}
