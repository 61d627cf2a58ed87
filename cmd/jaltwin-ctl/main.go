// Command jaltwin-ctl drives a running twin over Redis: it sends commands,
// reads the published state and watches the event channels.
package main

import (
	"fmt"
	"os"
)

const ctlVersion = "1.0.0"

func usage() {
	fmt.Fprintf(os.Stderr, `usage: jaltwin-ctl <subcommand> [flags]

subcommands:
  send <command>   send one command and print the reply
  commands         list command names
  state            print the last published snapshot
  watch            follow snapshots, alerts and heartbeats
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "send":
		err = runSend(os.Args[2:])
	case "commands":
		runCommands()
	case "state":
		err = runState(os.Args[2:])
	case "watch":
		err = runWatch(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// redisAddr is the default for every -redis flag.
func redisAddr() string {
	if addr := os.Getenv("REDIS_URL"); addr != "" {
		return addr
	}
	return "localhost:6379"
}
