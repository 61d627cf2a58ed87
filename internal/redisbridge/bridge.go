package redisbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strawberryjas/gramjaljeevan/internal/command"
	"github.com/strawberryjas/gramjaljeevan/internal/protocol"
	"github.com/strawberryjas/gramjaljeevan/internal/relay"
)

// Bridge executes twin.command.request messages from the instance's
// command stream and writes each reply to the request's reply_to stream.
type Bridge struct {
	rdb    *redis.Client
	twin   command.Twin
	source protocol.Source
	block  time.Duration

	handled atomic.Int64
	failed  atomic.Int64
}

// New creates a bridge for source.Instance.
func New(rdb *redis.Client, twin command.Twin, source protocol.Source) *Bridge {
	return &Bridge{
		rdb:    rdb,
		twin:   twin,
		source: source,
		block:  time.Second,
	}
}

// Handled is the number of requests answered.
func (b *Bridge) Handled() int64 { return b.handled.Load() }

// Failed is the number of requests answered with success=false.
func (b *Bridge) Failed() int64 { return b.failed.Load() }

// Serve reads the command stream until ctx is cancelled. Only commands
// added after Serve starts are executed. The read cursor is pinned to a
// concrete entry id up front so nothing added between two reads is lost.
func (b *Bridge) Serve(ctx context.Context) {
	stream := protocol.CommandStream(b.source.Instance)
	var lastID string
	log.Printf("bridge: listening on %s", stream)

	for {
		if ctx.Err() != nil {
			return
		}

		if lastID == "" {
			id, err := startCursor(b.rdb.XInfoStream(ctx, stream).Result())
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("bridge: stream info error: %v", err)
				}
				if !backoff(ctx) {
					return
				}
				continue
			}
			lastID = id
		}

		results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, lastID},
			Block:   b.block,
			Count:   10,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Printf("bridge: stream read error: %v", err)
			if !backoff(ctx) {
				return
			}
			continue
		}

		for _, s := range results {
			for _, xmsg := range s.Messages {
				lastID = xmsg.ID
				raw, ok := xmsg.Values["message"].(string)
				if !ok {
					log.Printf("bridge: entry %s has no message field", xmsg.ID)
					continue
				}
				b.handle(ctx, raw)
			}
		}
	}
}

// startCursor turns the XINFO STREAM reply into the id to read after: the
// newest entry, or the start of a stream that does not exist yet.
func startCursor(info *redis.XInfoStream, err error) (string, error) {
	switch {
	case err != nil && strings.Contains(err.Error(), "no such key"):
		return "0-0", nil
	case err != nil:
		return "", err
	}
	return info.LastGeneratedID, nil
}

// backoff waits before retrying a failed Redis call. It reports false once
// ctx is done.
func backoff(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(2 * time.Second):
		return true
	}
}

func (b *Bridge) handle(ctx context.Context, raw string) {
	req, err := protocol.Parse([]byte(raw))
	if err != nil {
		log.Printf("bridge: dropped request: %v", err)
		return
	}
	if req.Envelope.CorrelationID == "" || req.Envelope.ReplyTo == "" {
		log.Printf("bridge: dropped request %s: no correlation_id or reply_to", req.Envelope.ID)
		return
	}
	resp, err := b.Respond(req)
	if err != nil {
		log.Printf("bridge: response build error: %v", err)
		return
	}
	if err := replyTo(ctx, b.rdb, req.Envelope.ReplyTo, resp); err != nil && ctx.Err() == nil {
		log.Printf("bridge: reply error: %v", err)
	}
}

// Respond executes req and builds its reply. Invalid requests get a failed
// reply rather than an error.
func (b *Bridge) Respond(req *protocol.Message) (*protocol.Message, error) {
	start := time.Now()
	var name string
	var res relay.Result
	switch {
	case req.Envelope.Type != protocol.TypeCommandRequest:
		res = relay.Fail("unexpected message type %q", req.Envelope.Type)
	default:
		if err := protocol.Validate(req); err != nil {
			res = relay.Fail("%v", err)
			break
		}
		payload, err := protocol.ParseCommandRequest(req)
		if err != nil {
			res = relay.Fail("%v", err)
			break
		}
		name = payload.Command
		res = command.Execute(b.twin, *payload)
	}

	b.handled.Add(1)
	if !res.Success {
		b.failed.Add(1)
		log.Printf("bridge: %q from %s failed: %s", name, req.Envelope.Source.Instance, res.Reason)
	}

	return protocol.BuildCommandResponse(b.source, req, protocol.CommandResponsePayload{
		Command:    name,
		Success:    res.Success,
		Reason:     res.Reason,
		CommandID:  res.CommandID,
		Status:     string(res.Status),
		DurationMs: int(time.Since(start).Milliseconds()),
	})
}

// replyTo writes resp to stream and refreshes the stream's expiry.
func replyTo(ctx context.Context, rdb *redis.Client, stream string, resp *protocol.Message) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	pipe := rdb.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: replyMaxLen,
		Approx: true,
		Values: map[string]interface{}{"message": string(data)},
	})
	pipe.Expire(ctx, stream, ReplyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("XADD %s: %w", stream, err)
	}
	return nil
}
