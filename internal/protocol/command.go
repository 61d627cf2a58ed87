package protocol

import (
	"fmt"

	"github.com/google/uuid"
)

// ResponseStream is the stream a client instance reads its replies from.
func ResponseStream(instance string) string {
	return "responses:" + instance
}

// CommandStream is the stream a twin instance reads commands from.
func CommandStream(instance string) string {
	return "commands:" + instance
}

// BuildCommandRequest creates a twin.command.request message. It generates
// a correlation_id and sets reply_to to "responses:{source.Instance}".
func BuildCommandRequest(source Source, req CommandRequestPayload) (*Message, error) {
	if req.Command == "" {
		return nil, fmt.Errorf("build command request: empty command")
	}
	msg, err := NewMessage(source, TypeCommandRequest, req)
	if err != nil {
		return nil, fmt.Errorf("marshal command request payload: %w", err)
	}
	msg.Envelope.CorrelationID = uuid.New().String()
	msg.Envelope.ReplyTo = ResponseStream(source.Instance)
	return msg, nil
}

// BuildCommandResponse answers request with resp, copying its id into
// correlation_id.
func BuildCommandResponse(source Source, request *Message, resp CommandResponsePayload) (*Message, error) {
	msg, err := NewMessage(source, TypeCommandResponse, resp)
	if err != nil {
		return nil, fmt.Errorf("marshal command response payload: %w", err)
	}
	msg.Envelope.CorrelationID = request.Envelope.CorrelationID
	return msg, nil
}
