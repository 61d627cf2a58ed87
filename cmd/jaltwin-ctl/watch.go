package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strawberryjas/gramjaljeevan/internal/protocol"
	"github.com/strawberryjas/gramjaljeevan/internal/redisbridge"
)

// aliveInstance extracts the instance from a "service:<instance>:alive" key.
func aliveInstance(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) >= 3 && parts[0] == "service" && parts[len(parts)-1] == "alive" {
		return strings.Join(parts[1:len(parts)-1], ":")
	}
	return key
}

// watchFilter decides which messages the watch stream prints.
type watchFilter struct {
	instance  string
	snapshots bool
}

func (f watchFilter) keep(msg *protocol.Message) bool {
	if f.instance != "" && msg.Envelope.Source.Instance != f.instance {
		return false
	}
	if !f.snapshots && msg.Envelope.Type == protocol.TypeSnapshot {
		return false
	}
	return true
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	addr := fs.String("redis", redisAddr(), "Redis address")
	instance := fs.String("instance", "", "only show this twin instance")
	snapshots := fs.Bool("snapshots", false, "also print every snapshot")
	jsonOut := fs.Bool("json", false, "raw JSON output")
	noColor := fs.Bool("no-color", false, "disable ANSI colors")
	presenceEvery := fs.Duration("presence", 10*time.Second, "presence poll interval (0 disables)")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: *addr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cannot connect to Redis at %s: %w", *addr, err)
	}

	emit := func(line string) {
		if *noColor {
			line = stripANSI(line)
		}
		fmt.Println(line)
	}

	filter := watchFilter{instance: *instance, snapshots: *snapshots}
	tracker := NewTracker(3 * time.Minute)

	if *presenceEvery > 0 {
		go func() {
			ticker := time.NewTicker(*presenceEvery)
			defer ticker.Stop()
			for {
				pollPresence(ctx, rdb, tracker, emit)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}

	sub := rdb.PSubscribe(ctx, "events:*")
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nshutting down...")
			return nil
		case redisMsg, ok := <-ch:
			if !ok {
				return nil
			}
			msg, err := protocol.Parse([]byte(redisMsg.Payload))
			if err != nil {
				log.Printf("parse error on %s: %v", redisMsg.Channel, err)
				continue
			}
			if redisMsg.Channel == redisbridge.HeartbeatChannel {
				tracker.Seen(msg.Envelope.Source.Instance)
			}
			if !filter.keep(msg) {
				continue
			}
			if *jsonOut {
				data, err := json.Marshal(msg)
				if err != nil {
					log.Printf("json marshal error: %v", err)
					continue
				}
				fmt.Println(string(data))
				continue
			}
			emit(FormatEvent(msg))
		}
	}
}

// pollPresence prints one line per alive key.
func pollPresence(ctx context.Context, rdb *redis.Client, tracker *Tracker, emit func(string)) {
	iter := rdb.Scan(ctx, 0, redisbridge.AliveKey("*"), 100).Iterator()
	seen := make(map[string]bool)
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := rdb.TTL(ctx, key).Result()
		if err != nil {
			log.Printf("presence TTL error for %s: %v", key, err)
			continue
		}
		inst := aliveInstance(key)
		seen[inst] = true
		p, last := tracker.Presence(inst, ttl)
		emit(FormatPresence(inst, ttl, p, last, time.Now()))
	}
	if err := iter.Err(); err != nil && ctx.Err() == nil {
		log.Printf("presence scan error: %v", err)
	}
	for _, inst := range tracker.Instances() {
		if !seen[inst] {
			p, last := tracker.Presence(inst, 0)
			emit(FormatPresence(inst, 0, p, last, time.Now()))
		}
	}
}
