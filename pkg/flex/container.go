package flex

import (
	"encoding/json"
	"fmt"
)

// MaxCarouselBubbles is the number of bubbles a carousel may hold
const MaxCarouselBubbles = 12

// Container is the top level content of a flex message
type Container interface {
	ContainerType() string
}

// Bubble is a single card made of up to four blocks
type Bubble struct {
	Size      string    `json:"size,omitempty" validate:"omitempty,oneof=nano micro deca hecto kilo mega giga"`
	Direction string    `json:"direction,omitempty" validate:"omitempty,oneof=ltr rtl"`
	Header    *Box      `json:"header,omitempty"`
	Hero      Component `json:"hero,omitempty"`
	Body      *Box      `json:"body,omitempty"`
	Footer    *Box      `json:"footer,omitempty"`
	Action    Action    `json:"action,omitempty"`
}

// NewBubble creates an empty bubble
func NewBubble() *Bubble {
	return &Bubble{}
}

// WithHeader sets the header block
func (b *Bubble) WithHeader(box *Box) *Bubble {
	b.Header = box
	return b
}

// WithHero sets the hero block, usually an image
func (b *Bubble) WithHero(c Component) *Bubble {
	b.Hero = c
	return b
}

// WithBody sets the body block
func (b *Bubble) WithBody(box *Box) *Bubble {
	b.Body = box
	return b
}

// WithFooter sets the footer block
func (b *Bubble) WithFooter(box *Box) *Bubble {
	b.Footer = box
	return b
}

// ContainerType implements Container
func (*Bubble) ContainerType() string { return "bubble" }

// MarshalJSON adds the type discriminator
func (b *Bubble) MarshalJSON() ([]byte, error) {
	type alias Bubble
	return withType(b.ContainerType(), alias(*b))
}

// UnmarshalJSON decodes the typed hero and action
func (b *Bubble) UnmarshalJSON(data []byte) error {
	type alias Bubble
	aux := struct {
		*alias
		Hero   json.RawMessage `json:"hero,omitempty"`
		Action json.RawMessage `json:"action,omitempty"`
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	hero, err := decodeComponent(aux.Hero)
	if err != nil {
		return fmt.Errorf("hero: %w", err)
	}
	b.Hero = hero

	action, err := decodeAction(aux.Action)
	b.Action = action
	return err
}

// Carousel shows bubbles side by side
type Carousel struct {
	Contents []*Bubble `json:"contents" validate:"required,min=1,max=12,dive,required"`
}

// NewCarousel creates a carousel of bubbles
func NewCarousel(bubbles ...*Bubble) *Carousel {
	return &Carousel{Contents: bubbles}
}

// ContainerType implements Container
func (*Carousel) ContainerType() string { return "carousel" }

// MarshalJSON adds the type discriminator
func (c *Carousel) MarshalJSON() ([]byte, error) {
	type alias Carousel
	return withType(c.ContainerType(), alias(*c))
}

// Message is a flex message ready to be sent with the messaging client
type Message struct {
	AltText  string    `json:"altText" validate:"required,max=1500"`
	Contents Container `json:"contents" validate:"required"`
}

// NewMessage wraps a container in a flex message
func NewMessage(altText string, contents Container) *Message {
	return &Message{AltText: altText, Contents: contents}
}

// MessageType reports the outgoing message type
func (*Message) MessageType() string { return "flex" }

// Validate checks the message against the flex layout rules
func (m *Message) Validate() error {
	return ValidateValue(m)
}

// MarshalJSON adds the type discriminator
func (m *Message) MarshalJSON() ([]byte, error) {
	type alias Message
	return withType(m.MessageType(), alias(*m))
}

// UnmarshalJSON decodes the typed container
func (m *Message) UnmarshalJSON(data []byte) error {
	type alias Message
	aux := struct {
		*alias
		Contents json.RawMessage `json:"contents"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	contents, err := decodeContainer(aux.Contents)
	m.Contents = contents
	return err
}

func decodeContainer(raw json.RawMessage) (Container, error) {
	if isNull(raw) {
		return nil, nil
	}

	kind, err := peekType(raw)
	if err != nil {
		return nil, err
	}

	var c Container
	switch kind {
	case "bubble":
		c = &Bubble{}
	case "carousel":
		c = &Carousel{}
	default:
		return nil, fmt.Errorf("unsupported container type %q", kind)
	}

	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", kind, err)
	}
	return c, nil
}
