package redisbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strawberryjas/gramjaljeevan/internal/protocol"
)

// Client sends commands to twin instances and collects their replies from
// its own response stream.
type Client struct {
	rdb     *redis.Client
	source  protocol.Source
	pending *Dispatcher
}

// NewClient creates a client. Replies arrive on
// protocol.ResponseStream(source.Instance).
func NewClient(rdb *redis.Client, source protocol.Source) *Client {
	return &Client{rdb: rdb, source: source, pending: NewDispatcher()}
}

// Listen reads the response stream and dispatches replies until ctx is
// cancelled. It must be running while Send waits.
func (c *Client) Listen(ctx context.Context) {
	stream := protocol.ResponseStream(c.source.Instance)
	lastID := "0-0"

	for {
		if ctx.Err() != nil {
			return
		}
		results, err := c.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, lastID},
			Block:   time.Second,
			Count:   10,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Printf("client: stream read error: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		for _, s := range results {
			for _, xmsg := range s.Messages {
				lastID = xmsg.ID
				raw, ok := xmsg.Values["message"].(string)
				if !ok {
					continue
				}
				msg, err := protocol.Parse([]byte(raw))
				if err != nil {
					continue
				}
				c.pending.Dispatch(msg)
			}
		}
	}
}

// Send issues req to instance and waits up to timeout for the reply.
func (c *Client) Send(ctx context.Context, instance string, req protocol.CommandRequestPayload, timeout time.Duration) (*protocol.CommandResponsePayload, error) {
	msg, err := protocol.BuildCommandRequest(c.source, req)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	id := msg.Envelope.CorrelationID
	ch := c.pending.Register(id)

	stream := protocol.CommandStream(instance)
	if err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"message": string(data)},
	}).Err(); err != nil {
		c.pending.Deregister(id)
		return nil, fmt.Errorf("XADD %s: %w", stream, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("request %s abandoned", id)
		}
		return protocol.ParseCommandResponse(resp)
	case <-timer.C:
		c.pending.Deregister(id)
		return nil, fmt.Errorf("timeout waiting for response (correlation_id=%s)", id)
	case <-ctx.Done():
		c.pending.Deregister(id)
		return nil, ctx.Err()
	}
}
