package event

import (
	"encoding/json"
)

// MessageType is the content type of a received message
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageFile     MessageType = "file"
	MessageLocation MessageType = "location"
	MessageSticker  MessageType = "sticker"
)

// Message is the content of a MessageEvent
type Message interface {
	MessageID() string
	MessageType() MessageType
}

// MessageBase holds the fields shared by every message type
type MessageBase struct {
	ID         string      `json:"id"`
	Type       MessageType `json:"type"`
	QuoteToken string      `json:"quoteToken,omitempty"`
}

// MessageID returns the message identifier
func (m *MessageBase) MessageID() string { return m.ID }

// MessageType returns the content type
func (m *MessageBase) MessageType() MessageType { return m.Type }

// ContentProvider tells where the binary content of a media message lives
type ContentProvider struct {
	Type               string `json:"type"`
	OriginalContentURL string `json:"originalContentUrl,omitempty"`
	PreviewImageURL    string `json:"previewImageUrl,omitempty"`
}

// Emoji is a LINE emoji embedded in a text message
type Emoji struct {
	Index     int    `json:"index"`
	Length    int    `json:"length"`
	ProductID string `json:"productId"`
	EmojiID   string `json:"emojiId"`
}

// Mentionee is one mention inside a text message
type Mentionee struct {
	Index  int    `json:"index"`
	Length int    `json:"length"`
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
}

// Mention lists the mentions of a text message
type Mention struct {
	Mentionees []Mentionee `json:"mentionees"`
}

// TextMessage is a text message, with emojis and mentions when present
type TextMessage struct {
	MessageBase
	Text            string   `json:"text"`
	Emojis          []Emoji  `json:"emojis,omitempty"`
	Mention         *Mention `json:"mention,omitempty"`
	QuotedMessageID string   `json:"quotedMessageId,omitempty"`
}

// ImageSet groups images sent together
type ImageSet struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	Total int    `json:"total"`
}

// ImageMessage is an image; its content is fetched separately
type ImageMessage struct {
	MessageBase
	ContentProvider ContentProvider `json:"contentProvider"`
	ImageSet        *ImageSet       `json:"imageSet,omitempty"`
}

// VideoMessage is a video with its duration in milliseconds
type VideoMessage struct {
	MessageBase
	Duration        int64           `json:"duration"`
	ContentProvider ContentProvider `json:"contentProvider"`
}

// AudioMessage is an audio clip with its duration in milliseconds
type AudioMessage struct {
	MessageBase
	Duration        int64           `json:"duration"`
	ContentProvider ContentProvider `json:"contentProvider"`
}

// FileMessage is a file shared in a chat
type FileMessage struct {
	MessageBase
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// LocationMessage is a shared location
type LocationMessage struct {
	MessageBase
	Title     string  `json:"title,omitempty"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// StickerMessage is a sticker
type StickerMessage struct {
	MessageBase
	PackageID           string   `json:"packageId"`
	StickerID           string   `json:"stickerId"`
	StickerResourceType string   `json:"stickerResourceType,omitempty"`
	Keywords            []string `json:"keywords,omitempty"`
	Text                string   `json:"text,omitempty"`
}

// UnknownMessage carries a message whose type is not recognized
type UnknownMessage struct {
	MessageBase
	Raw json.RawMessage `json:"-"`
}

// MarshalJSON returns the message exactly as it was delivered
func (m *UnknownMessage) MarshalJSON() ([]byte, error) {
	if len(m.Raw) == 0 {
		return json.Marshal(m.MessageBase)
	}
	return m.Raw, nil
}

func decodeMessage(raw json.RawMessage) (Message, error) {
	var head MessageBase
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	var msg Message
	switch head.Type {
	case MessageText:
		msg = &TextMessage{}
	case MessageImage:
		msg = &ImageMessage{}
	case MessageVideo:
		msg = &VideoMessage{}
	case MessageAudio:
		msg = &AudioMessage{}
	case MessageFile:
		msg = &FileMessage{}
	case MessageLocation:
		msg = &LocationMessage{}
	case MessageSticker:
		msg = &StickerMessage{}
	default:
		return &UnknownMessage{MessageBase: head, Raw: cloneRaw(raw)}, nil
	}

	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
