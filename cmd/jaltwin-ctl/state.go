package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/protocol"
	"github.com/strawberryjas/gramjaljeevan/internal/redisbridge"
)

// decodeState reads the snapshot stored under the twin's state key.
func decodeState(raw string) (*model.State, error) {
	msg, err := protocol.Parse([]byte(raw))
	if err != nil {
		return nil, err
	}
	if msg.Envelope.Type != protocol.TypeSnapshot {
		return nil, fmt.Errorf("state key holds %s, not a snapshot", msg.Envelope.Type)
	}
	return protocol.ParseSnapshot(msg)
}

func runState(args []string) error {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	addr := fs.String("redis", redisAddr(), "Redis address")
	instance := fs.String("instance", "village-001", "twin instance")
	jsonOut := fs.Bool("json", false, "print the raw snapshot message")
	noColor := fs.Bool("no-color", false, "disable ANSI colors")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{Addr: *addr})
	defer rdb.Close()

	key := redisbridge.StateKey(*instance)
	raw, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("no snapshot published for %s yet", *instance)
	}
	if err != nil {
		return fmt.Errorf("GET %s: %w", key, err)
	}
	if *jsonOut {
		fmt.Println(raw)
		return nil
	}
	s, err := decodeState(raw)
	if err != nil {
		return err
	}
	out := FormatState(s)
	if *noColor {
		out = stripANSI(out)
	}
	fmt.Print(out)
	return nil
}
