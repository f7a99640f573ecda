package main

import "fmt"

// cmdQueue implements "queue basedir uid": runs one pass of the named
// user's queue synchronously, matching original_source/main.c's queue
// branch (process_queue).
func cmdQueue(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("queue: basedir and uid are required")
	}
	inst, err := openInstance(args[0])
	if err != nil {
		return err
	}
	u, err := inst.OpenUser(args[1])
	if err != nil {
		return fmt.Errorf("queue: open user %q: %w", args[1], err)
	}
	u.ProcessQueue()
	return nil
}
