package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxMessages is the number of messages one request may carry
const MaxMessages = 5

// Message is an outgoing message object
type Message interface {
	MessageType() string
}

// TextMessage is a plain text message
type TextMessage struct {
	Text       string `json:"text" validate:"required,max=5000"`
	QuoteToken string `json:"quoteToken,omitempty"`
}

// MessageType implements Message
func (TextMessage) MessageType() string { return "text" }

// MarshalJSON adds the type discriminator
func (m TextMessage) MarshalJSON() ([]byte, error) {
	type alias TextMessage
	return marshalTyped(m.MessageType(), alias(m))
}

// StickerMessage sends a sticker from a LINE sticker package
type StickerMessage struct {
	PackageID string `json:"packageId" validate:"required"`
	StickerID string `json:"stickerId" validate:"required"`
}

// MessageType implements Message
func (StickerMessage) MessageType() string { return "sticker" }

// MarshalJSON adds the type discriminator
func (m StickerMessage) MarshalJSON() ([]byte, error) {
	type alias StickerMessage
	return marshalTyped(m.MessageType(), alias(m))
}

// ImageMessage sends an image hosted at an HTTPS URL
type ImageMessage struct {
	OriginalContentURL string `json:"originalContentUrl" validate:"required,url,startswith=https://,max=2000"`
	PreviewImageURL    string `json:"previewImageUrl" validate:"required,url,startswith=https://,max=2000"`
}

// MessageType implements Message
func (ImageMessage) MessageType() string { return "image" }

// MarshalJSON adds the type discriminator
func (m ImageMessage) MarshalJSON() ([]byte, error) {
	type alias ImageMessage
	return marshalTyped(m.MessageType(), alias(m))
}

// LocationMessage sends a map pin
type LocationMessage struct {
	Title     string  `json:"title" validate:"required,max=100"`
	Address   string  `json:"address" validate:"required,max=100"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
}

// MessageType implements Message
func (LocationMessage) MessageType() string { return "location" }

// MarshalJSON adds the type discriminator
func (m LocationMessage) MarshalJSON() ([]byte, error) {
	type alias LocationMessage
	return marshalTyped(m.MessageType(), alias(m))
}

// marshalTyped encodes v with a leading "type" field. v must be a struct
// alias without its own MarshalJSON.
func marshalTyped(messageType string, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("unexpected encoding for %s message", messageType)
	}

	out := make([]byte, 0, len(body)+len(messageType)+12)
	out = append(out, `{"type":`...)
	out = append(out, strconv.Quote(messageType)...)
	if len(body) > 2 {
		out = append(out, ',')
	}
	return append(out, body[1:]...), nil
}

// selfValidator is implemented by message types that carry their own rules,
// such as flex messages.
type selfValidator interface {
	Validate() error
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateMessages checks the count and every message of one request
func validateMessages(v *validator.Validate, messages []Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("%w: at least one message is required", ErrInvalidMessage)
	}
	if len(messages) > MaxMessages {
		return fmt.Errorf("%w: %d messages exceed the limit of %d", ErrInvalidMessage, len(messages), MaxMessages)
	}

	for i, msg := range messages {
		if msg == nil {
			return fmt.Errorf("%w: message %d is nil", ErrInvalidMessage, i)
		}
		if sv, ok := msg.(selfValidator); ok {
			if err := sv.Validate(); err != nil {
				return fmt.Errorf("%w: message %d (%s): %w", ErrInvalidMessage, i, msg.MessageType(), err)
			}
			continue
		}
		if err := v.Struct(msg); err != nil {
			return fmt.Errorf("%w: message %d (%s): %s", ErrInvalidMessage, i, msg.MessageType(), describe(err))
		}
	}

	return nil
}

// describe turns validator output into "field: rule" pairs
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fe.Field()+": "+rule)
	}
	return strings.Join(parts, ", ")
}
