package protocol

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/google/uuid"
)

// Names are lower-case so they can be embedded in Redis keys unchanged.
var (
	namePattern     = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)
	instancePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
	semverPattern   = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	streamPattern   = regexp.MustCompile(`^[a-z0-9][a-z0-9_:/-]*$`)
)

// envelopeRule lists what each message type must carry beyond the common
// fields.
type envelopeRule struct {
	correlation bool
	replyTo     bool
}

var typeRules = map[string]envelopeRule{
	TypeCommandRequest:  {correlation: true, replyTo: true},
	TypeCommandResponse: {correlation: true},
}

// isUUIDv4 accepts only the canonical 36-character form.
func isUUIDv4(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	return err == nil && id.Version() == 4 && id.Variant() == uuid.RFC4122
}

// Validate checks msg against the envelope rules and returns the first
// violation.
func Validate(msg *Message) error {
	env := msg.Envelope
	checks := []func() error{
		func() error {
			if !isUUIDv4(env.ID) {
				return fmt.Errorf("invalid id: want a UUIDv4, got %q", env.ID)
			}
			return nil
		},
		func() error {
			if env.Timestamp < 0 {
				return fmt.Errorf("invalid timestamp %d", env.Timestamp)
			}
			return nil
		},
		func() error { return env.Source.validate() },
		func() error {
			if env.SchemaVersion != SchemaVersion {
				return fmt.Errorf("unsupported schema_version %q (want %q)", env.SchemaVersion, SchemaVersion)
			}
			return nil
		},
		func() error {
			if !slices.Contains(ValidMessageTypes, env.Type) {
				return fmt.Errorf("invalid type %q", env.Type)
			}
			return nil
		},
		func() error { return env.validateRouting(typeRules[env.Type]) },
		func() error {
			if len(msg.Payload) == 0 {
				return fmt.Errorf("missing payload for %s", env.Type)
			}
			return nil
		},
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (env Envelope) validateRouting(rule envelopeRule) error {
	switch {
	case env.CorrelationID == "" && rule.correlation:
		return fmt.Errorf("missing correlation_id on %s", env.Type)
	case env.CorrelationID != "" && !isUUIDv4(env.CorrelationID):
		return fmt.Errorf("invalid correlation_id %q: want a UUIDv4", env.CorrelationID)
	case env.ReplyTo == "" && rule.replyTo:
		return fmt.Errorf("missing reply_to on %s", env.Type)
	case env.ReplyTo != "" && !streamPattern.MatchString(env.ReplyTo):
		return fmt.Errorf("invalid reply_to %q: not a stream name", env.ReplyTo)
	}
	return nil
}

func (src Source) validate() error {
	switch {
	case !namePattern.MatchString(src.Service):
		return fmt.Errorf("invalid source.service %q", src.Service)
	case !instancePattern.MatchString(src.Instance):
		return fmt.Errorf("invalid source.instance %q", src.Instance)
	case !semverPattern.MatchString(src.Version):
		return fmt.Errorf("invalid source.version %q: want MAJOR.MINOR.PATCH", src.Version)
	}
	return nil
}
