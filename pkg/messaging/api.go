package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
)

// MaxMulticastRecipients is the number of user IDs one multicast accepts
const MaxMulticastRecipients = 500

// SentMessage identifies one delivered message
type SentMessage struct {
	ID         string `json:"id"`
	QuoteToken string `json:"quoteToken,omitempty"`
}

// SentMessages is the body returned by reply and push
type SentMessages struct {
	SentMessages []SentMessage `json:"sentMessages"`
}

// Profile is a user profile
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
	Language      string `json:"language,omitempty"`
}

// Content is the binary payload of an image, video, audio or file message
type Content struct {
	ContentType string
	Data        []byte
}

type replyRequest struct {
	ReplyToken           string    `json:"replyToken"`
	Messages             []Message `json:"messages"`
	NotificationDisabled bool      `json:"notificationDisabled,omitempty"`
}

type pushRequest struct {
	To       string    `json:"to"`
	Messages []Message `json:"messages"`
}

type multicastRequest struct {
	To       []string  `json:"to"`
	Messages []Message `json:"messages"`
}

type broadcastRequest struct {
	Messages []Message `json:"messages"`
}

// ReplyMessage answers an event with its reply token. Reply tokens are
// single use and expire shortly after the event was delivered.
func (c *Client) ReplyMessage(ctx context.Context, replyToken string, messages ...Message) (*SentMessages, error) {
	if replyToken == "" {
		return nil, fmt.Errorf("%w: reply token is required", ErrInvalidMessage)
	}
	if err := validateMessages(c.validate, messages); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, call{
		endpoint: "reply",
		method:   http.MethodPost,
		url:      c.options.APIBaseURL + "/v2/bot/message/reply",
		body:     replyRequest{ReplyToken: replyToken, Messages: messages},
	})
	if err != nil {
		return nil, err
	}
	return decodeSent(resp)
}

// PushMessage sends messages to a user, group or room at any time
func (c *Client) PushMessage(ctx context.Context, to string, messages ...Message) (*SentMessages, error) {
	if to == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	if err := validateMessages(c.validate, messages); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, call{
		endpoint: "push",
		method:   http.MethodPost,
		url:      c.options.APIBaseURL + "/v2/bot/message/push",
		body:     pushRequest{To: to, Messages: messages},
		retryKey: uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	return decodeSent(resp)
}

// Multicast sends the same messages to up to 500 users
func (c *Client) Multicast(ctx context.Context, to []string, messages ...Message) error {
	if len(to) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidMessage)
	}
	if len(to) > MaxMulticastRecipients {
		return fmt.Errorf("%w: %d recipients exceed the limit of %d", ErrInvalidMessage, len(to), MaxMulticastRecipients)
	}
	if err := validateMessages(c.validate, messages); err != nil {
		return err
	}

	_, err := c.do(ctx, call{
		endpoint: "multicast",
		method:   http.MethodPost,
		url:      c.options.APIBaseURL + "/v2/bot/message/multicast",
		body:     multicastRequest{To: to, Messages: messages},
		retryKey: uuid.NewString(),
	})
	return err
}

// Broadcast sends messages to every friend of the channel
func (c *Client) Broadcast(ctx context.Context, messages ...Message) error {
	if err := validateMessages(c.validate, messages); err != nil {
		return err
	}

	_, err := c.do(ctx, call{
		endpoint: "broadcast",
		method:   http.MethodPost,
		url:      c.options.APIBaseURL + "/v2/bot/message/broadcast",
		body:     broadcastRequest{Messages: messages},
		retryKey: uuid.NewString(),
	})
	return err
}

// GetProfile returns the profile of a user who added the channel as a friend
func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	resp, err := c.do(ctx, call{
		endpoint: "profile",
		method:   http.MethodGet,
		url:      c.options.APIBaseURL + "/v2/bot/profile/" + url.PathEscape(userID),
	})
	if err != nil {
		return nil, err
	}

	var profile Profile
	if err := json.Unmarshal(resp.body, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &profile, nil
}

// GetMessageContent downloads the content a user sent in a message
func (c *Client) GetMessageContent(ctx context.Context, messageID string) (*Content, error) {
	if messageID == "" {
		return nil, fmt.Errorf("message id is required")
	}

	resp, err := c.do(ctx, call{
		endpoint: "content",
		method:   http.MethodGet,
		url:      c.options.DataAPIBaseURL + "/v2/bot/message/" + url.PathEscape(messageID) + "/content",
	})
	if err != nil {
		return nil, err
	}

	return &Content{ContentType: resp.contentType, Data: resp.body}, nil
}

func decodeSent(resp *response) (*SentMessages, error) {
	var sent SentMessages
	if len(resp.body) == 0 {
		return &sent, nil
	}
	if err := json.Unmarshal(resp.body, &sent); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &sent, nil
}
