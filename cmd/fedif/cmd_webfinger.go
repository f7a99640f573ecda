package main

import "fmt"

// cmdWebFinger implements "webfinger basedir user": resolves a handle or
// actor URL and prints what was found, matching original_source/main.c's
// webfinger branch.
func cmdWebFinger(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("webfinger: basedir and user are required")
	}
	inst, err := openInstance(args[0])
	if err != nil {
		return err
	}

	actorURL, err := inst.Resolver.WebFinger(args[1])
	if err != nil {
		fmt.Printf("status: error\n")
		return err
	}
	fmt.Printf("status: 200\n")
	fmt.Printf("actor: %s\n", actorURL)
	return nil
}
