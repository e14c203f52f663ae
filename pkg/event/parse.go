package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrValidation is matched by every error Parse returns
var ErrValidation = errors.New("payload validation failed")

// ValidationError reports why a webhook payload was rejected.
// Field is the JSON path of the first offending field ("(root)" for the document).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload at %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func envelopeSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(EnvelopeSchema))
	})
	return schema, schemaErr
}

// Parse validates a raw webhook body and decodes it into an Envelope.
// The whole envelope fails together: one malformed event rejects the delivery.
func Parse(data []byte) (*Envelope, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	var raw struct {
		Destination string            `json:"destination"`
		Events      []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Field: "(root)", Reason: err.Error()}
	}

	env := &Envelope{
		Destination: raw.Destination,
		Events:      make([]Event, 0, len(raw.Events)),
	}
	for i, rawEvent := range raw.Events {
		ev, err := decodeEvent(rawEvent)
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("events.%d", i), Reason: err.Error()}
		}
		env.Events = append(env.Events, ev)
	}

	return env, nil
}

// ParseMap decodes a payload that the caller already unmarshalled into a map
func ParseMap(payload map[string]interface{}) (*Envelope, error) {
	if payload == nil {
		return nil, &ValidationError{Field: "(root)", Reason: "payload is empty"}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &ValidationError{Field: "(root)", Reason: err.Error()}
	}
	return Parse(data)
}

func validate(data []byte) error {
	s, err := envelopeSchema()
	if err != nil {
		return fmt.Errorf("failed to compile envelope schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return &ValidationError{Field: "(root)", Reason: "malformed JSON: " + err.Error()}
	}
	if result.Valid() {
		return nil
	}

	errs := result.Errors()
	field := errs[0].Field()
	reasons := make([]string, 0, len(errs))
	picked := false
	for _, e := range errs {
		if combinatorErrors[e.Type()] {
			continue
		}
		if !picked {
			field = e.Field()
			picked = true
		}
		reasons = append(reasons, e.String())
	}
	if len(reasons) == 0 {
		reasons = append(reasons, errs[0].String())
	}
	return &ValidationError{
		Field:  field,
		Reason: strings.Join(reasons, "; "),
	}
}

// combinatorErrors only say that a sub-schema failed; the error naming the
// offending field is reported alongside them.
var combinatorErrors = map[string]bool{
	"number_all_of":  true,
	"number_any_of":  true,
	"number_one_of":  true,
	"condition_then": true,
	"condition_else": true,
}

func decodeEvent(raw json.RawMessage) (Event, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	if !head.Type.Known() {
		unknown := &UnknownEvent{Raw: cloneRaw(raw)}
		// Fields of an unrecognized kind are not validated, so a decode
		// failure here only leaves Base partially filled.
		_ = json.Unmarshal(raw, &unknown.Base)
		unknown.Type = head.Type
		return unknown, nil
	}

	if head.Type == KindMessage {
		var body struct {
			Base
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, err
		}
		msg, err := decodeMessage(body.Message)
		if err != nil {
			return nil, fmt.Errorf("message: %w", err)
		}
		return &MessageEvent{Base: body.Base, Message: msg}, nil
	}

	var ev Event
	switch head.Type {
	case KindPostback:
		ev = &PostbackEvent{}
	case KindFollow:
		ev = &FollowEvent{}
	case KindUnfollow:
		ev = &UnfollowEvent{}
	case KindJoin:
		ev = &JoinEvent{}
	case KindLeave:
		ev = &LeaveEvent{}
	case KindMemberJoined:
		ev = &MemberJoinedEvent{}
	case KindMemberLeft:
		ev = &MemberLeftEvent{}
	case KindUnsend:
		ev = &UnsendEvent{}
	case KindBeacon:
		ev = &BeaconEvent{}
	case KindAccountLink:
		ev = &AccountLinkEvent{}
	case KindVideoPlayComplete:
		ev = &VideoPlayCompleteEvent{}
	}

	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
