package flex

import (
	"encoding/json"
	"fmt"
)

// BoxLayout orders the contents of a box
type BoxLayout string

const (
	LayoutHorizontal BoxLayout = "horizontal"
	LayoutVertical   BoxLayout = "vertical"
	LayoutBaseline   BoxLayout = "baseline"
)

// Component is an element placed inside a box or a bubble block
type Component interface {
	ComponentType() string
}

// Box lays out other components
type Box struct {
	Layout          BoxLayout   `json:"layout" validate:"required,oneof=horizontal vertical baseline"`
	Contents        []Component `json:"contents" validate:"dive,required"`
	Flex            *int        `json:"flex,omitempty" validate:"omitempty,min=0"`
	Spacing         string      `json:"spacing,omitempty"`
	Margin          string      `json:"margin,omitempty"`
	PaddingAll      string      `json:"paddingAll,omitempty"`
	BackgroundColor string      `json:"backgroundColor,omitempty" validate:"omitempty,hexcolor"`
	CornerRadius    string      `json:"cornerRadius,omitempty"`
	Action          Action      `json:"action,omitempty"`
}

// NewBox creates a box with the given layout and contents
func NewBox(layout BoxLayout, contents ...Component) *Box {
	if contents == nil {
		contents = []Component{}
	}
	return &Box{Layout: layout, Contents: contents}
}

// Add appends components and returns the box
func (b *Box) Add(contents ...Component) *Box {
	b.Contents = append(b.Contents, contents...)
	return b
}

// ComponentType implements Component
func (*Box) ComponentType() string { return "box" }

// MarshalJSON adds the type discriminator
func (b *Box) MarshalJSON() ([]byte, error) {
	type alias Box
	a := alias(*b)
	if a.Contents == nil {
		a.Contents = []Component{}
	}
	return withType(b.ComponentType(), a)
}

// UnmarshalJSON decodes typed contents and action
func (b *Box) UnmarshalJSON(data []byte) error {
	type alias Box
	aux := struct {
		*alias
		Contents []json.RawMessage `json:"contents"`
		Action   json.RawMessage   `json:"action,omitempty"`
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	b.Contents = make([]Component, 0, len(aux.Contents))
	for i, raw := range aux.Contents {
		c, err := decodeComponent(raw)
		if err != nil {
			return fmt.Errorf("contents[%d]: %w", i, err)
		}
		b.Contents = append(b.Contents, c)
	}

	action, err := decodeAction(aux.Action)
	b.Action = action
	return err
}

// Text displays a string
type Text struct {
	Text   string `json:"text" validate:"required,max=2000"`
	Size   string `json:"size,omitempty"`
	Weight string `json:"weight,omitempty" validate:"omitempty,oneof=regular bold"`
	Color  string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Wrap   bool   `json:"wrap,omitempty"`
	Align  string `json:"align,omitempty" validate:"omitempty,oneof=start end center"`
	Flex   *int   `json:"flex,omitempty" validate:"omitempty,min=0"`
	Margin string `json:"margin,omitempty"`
	Action Action `json:"action,omitempty"`
}

// NewText creates a text component
func NewText(text string) *Text {
	return &Text{Text: text}
}

// ComponentType implements Component
func (*Text) ComponentType() string { return "text" }

// MarshalJSON adds the type discriminator
func (t *Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return withType(t.ComponentType(), alias(*t))
}

// UnmarshalJSON decodes the typed action
func (t *Text) UnmarshalJSON(data []byte) error {
	type alias Text
	aux := struct {
		*alias
		Action json.RawMessage `json:"action,omitempty"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	action, err := decodeAction(aux.Action)
	t.Action = action
	return err
}

// Button triggers an action
type Button struct {
	Action Action `json:"action" validate:"required"`
	Style  string `json:"style,omitempty" validate:"omitempty,oneof=primary secondary link"`
	Color  string `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Height string `json:"height,omitempty" validate:"omitempty,oneof=sm md"`
	Flex   *int   `json:"flex,omitempty" validate:"omitempty,min=0"`
	Margin string `json:"margin,omitempty"`
}

// NewButton creates a button for action
func NewButton(action Action) *Button {
	return &Button{Action: action}
}

// ComponentType implements Component
func (*Button) ComponentType() string { return "button" }

// MarshalJSON adds the type discriminator
func (b *Button) MarshalJSON() ([]byte, error) {
	type alias Button
	return withType(b.ComponentType(), alias(*b))
}

// UnmarshalJSON decodes the typed action
func (b *Button) UnmarshalJSON(data []byte) error {
	type alias Button
	aux := struct {
		*alias
		Action json.RawMessage `json:"action"`
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	action, err := decodeAction(aux.Action)
	b.Action = action
	return err
}

// Image displays a picture from an HTTPS URL
type Image struct {
	URL         string `json:"url" validate:"required,url,startswith=https://,max=2000"`
	Size        string `json:"size,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	AspectMode  string `json:"aspectMode,omitempty" validate:"omitempty,oneof=cover fit"`
	Flex        *int   `json:"flex,omitempty" validate:"omitempty,min=0"`
	Margin      string `json:"margin,omitempty"`
	Action      Action `json:"action,omitempty"`
}

// NewImage creates an image component
func NewImage(url string) *Image {
	return &Image{URL: url}
}

// ComponentType implements Component
func (*Image) ComponentType() string { return "image" }

// MarshalJSON adds the type discriminator
func (i *Image) MarshalJSON() ([]byte, error) {
	type alias Image
	return withType(i.ComponentType(), alias(*i))
}

// UnmarshalJSON decodes the typed action
func (i *Image) UnmarshalJSON(data []byte) error {
	type alias Image
	aux := struct {
		*alias
		Action json.RawMessage `json:"action,omitempty"`
	}{alias: (*alias)(i)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	action, err := decodeAction(aux.Action)
	i.Action = action
	return err
}

// Separator draws a line between components
type Separator struct {
	Margin string `json:"margin,omitempty"`
	Color  string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

// NewSeparator creates a separator
func NewSeparator() *Separator {
	return &Separator{}
}

// ComponentType implements Component
func (*Separator) ComponentType() string { return "separator" }

// MarshalJSON adds the type discriminator
func (s *Separator) MarshalJSON() ([]byte, error) {
	type alias Separator
	return withType(s.ComponentType(), alias(*s))
}

// Spacer adds fixed space
type Spacer struct {
	Size string `json:"size,omitempty" validate:"omitempty,oneof=xs sm md lg xl xxl"`
}

// NewSpacer creates a spacer
func NewSpacer(size string) *Spacer {
	return &Spacer{Size: size}
}

// ComponentType implements Component
func (*Spacer) ComponentType() string { return "spacer" }

// MarshalJSON adds the type discriminator
func (s *Spacer) MarshalJSON() ([]byte, error) {
	type alias Spacer
	return withType(s.ComponentType(), alias(*s))
}

func decodeComponent(raw json.RawMessage) (Component, error) {
	if isNull(raw) {
		return nil, nil
	}

	kind, err := peekType(raw)
	if err != nil {
		return nil, err
	}

	var c Component
	switch kind {
	case "box":
		c = &Box{}
	case "text":
		c = &Text{}
	case "button":
		c = &Button{}
	case "image":
		c = &Image{}
	case "separator":
		c = &Separator{}
	case "spacer":
		c = &Spacer{}
	default:
		return nil, fmt.Errorf("unsupported component type %q", kind)
	}

	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", kind, err)
	}
	return c, nil
}
