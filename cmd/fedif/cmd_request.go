package main

import (
	"encoding/json"
	"fmt"

	"github.com/klppl/fedif/internal/httpclient"
)

// cmdRequest implements "request basedir uid url": performs a signed GET
// for an arbitrary object URL and prints the status and pretty-printed
// body, matching original_source/main.c's request branch
// (activitypub_request).
func cmdRequest(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("request: basedir, uid, and url are required")
	}
	inst, err := openInstance(args[0])
	if err != nil {
		return err
	}
	u, err := inst.OpenUser(args[1])
	if err != nil {
		return fmt.Errorf("request: open user %q: %w", args[1], err)
	}
	url := args[2]

	client := httpclient.New()
	accept := `application/activity+json, application/ld+json; profile="https://www.w3.org/ns/activitystreams"`
	resp, err := client.Get(url, accept, u.KeyID(), u.Key.Private())
	if err != nil {
		fmt.Println("status: error")
		return err
	}

	fmt.Printf("status: %d\n", resp.Status)
	if httpclient.ValidStatus(resp.Status) {
		var obj map[string]interface{}
		if err := json.Unmarshal(resp.Body, &obj); err == nil {
			pretty, _ := json.MarshalIndent(obj, "", "    ")
			fmt.Println(string(pretty))
		}
	}
	return nil
}
