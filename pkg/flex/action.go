package flex

import (
	"encoding/json"
	"fmt"
)

// Action is what happens when a user taps a component
type Action interface {
	ActionType() string
}

// URIAction opens a URI
type URIAction struct {
	Label string `json:"label,omitempty" validate:"omitempty,max=40"`
	URI   string `json:"uri" validate:"required,uri,max=1000"`
}

// ActionType implements Action
func (URIAction) ActionType() string { return "uri" }

// MarshalJSON adds the type discriminator
func (a URIAction) MarshalJSON() ([]byte, error) {
	type alias URIAction
	return withType(a.ActionType(), alias(a))
}

// MessageAction makes the user send Text
type MessageAction struct {
	Label string `json:"label,omitempty" validate:"omitempty,max=40"`
	Text  string `json:"text" validate:"required,max=300"`
}

// ActionType implements Action
func (MessageAction) ActionType() string { return "message" }

// MarshalJSON adds the type discriminator
func (a MessageAction) MarshalJSON() ([]byte, error) {
	type alias MessageAction
	return withType(a.ActionType(), alias(a))
}

// PostbackAction delivers Data to the webhook in a postback event
type PostbackAction struct {
	Label       string `json:"label,omitempty" validate:"omitempty,max=40"`
	Data        string `json:"data" validate:"required,max=300"`
	DisplayText string `json:"displayText,omitempty" validate:"omitempty,max=300"`
}

// ActionType implements Action
func (PostbackAction) ActionType() string { return "postback" }

// MarshalJSON adds the type discriminator
func (a PostbackAction) MarshalJSON() ([]byte, error) {
	type alias PostbackAction
	return withType(a.ActionType(), alias(a))
}

func decodeAction(raw json.RawMessage) (Action, error) {
	if isNull(raw) {
		return nil, nil
	}

	kind, err := peekType(raw)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "uri":
		var a URIAction
		err = json.Unmarshal(raw, &a)
		return a, wrapAction(kind, err)
	case "message":
		var a MessageAction
		err = json.Unmarshal(raw, &a)
		return a, wrapAction(kind, err)
	case "postback":
		var a PostbackAction
		err = json.Unmarshal(raw, &a)
		return a, wrapAction(kind, err)
	default:
		return nil, fmt.Errorf("unsupported action type %q", kind)
	}
}

func wrapAction(kind string, err error) error {
	if err != nil {
		return fmt.Errorf("invalid %s action: %w", kind, err)
	}
	return nil
}
