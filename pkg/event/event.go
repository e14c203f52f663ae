package event

import (
	"encoding/json"
)

// Kind is the webhook event type discriminator
type Kind string

const (
	KindMessage           Kind = "message"
	KindPostback          Kind = "postback"
	KindFollow            Kind = "follow"
	KindUnfollow          Kind = "unfollow"
	KindJoin              Kind = "join"
	KindLeave             Kind = "leave"
	KindMemberJoined      Kind = "memberJoined"
	KindMemberLeft        Kind = "memberLeft"
	KindUnsend            Kind = "unsend"
	KindBeacon            Kind = "beacon"
	KindAccountLink       Kind = "accountLink"
	KindVideoPlayComplete Kind = "videoPlayComplete"
)

// Kinds lists every recognized event kind in declaration order
var Kinds = []Kind{
	KindMessage,
	KindPostback,
	KindFollow,
	KindUnfollow,
	KindJoin,
	KindLeave,
	KindMemberJoined,
	KindMemberLeft,
	KindUnsend,
	KindBeacon,
	KindAccountLink,
	KindVideoPlayComplete,
}

// Known reports whether k is one of the recognized kinds
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// SourceType identifies where an event originated
type SourceType string

const (
	SourceUser  SourceType = "user"
	SourceGroup SourceType = "group"
	SourceRoom  SourceType = "room"
)

// Source is the user, group chat or multi-person room that produced an event
type Source struct {
	Type    SourceType `json:"type"`
	UserID  string     `json:"userId,omitempty"`
	GroupID string     `json:"groupId,omitempty"`
	RoomID  string     `json:"roomId,omitempty"`
}

// ConversationID returns the identifier a reply or push should target:
// the group or room when present, otherwise the user.
func (s Source) ConversationID() string {
	switch s.Type {
	case SourceGroup:
		return s.GroupID
	case SourceRoom:
		return s.RoomID
	default:
		return s.UserID
	}
}

// Mode is the channel state when the event was sent
type Mode string

const (
	ModeActive  Mode = "active"
	ModeStandby Mode = "standby"
)

// DeliveryContext describes how the event was delivered
type DeliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

// Base holds the fields shared by every event kind.
// Timestamp is in epoch milliseconds.
type Base struct {
	Type            Kind            `json:"type"`
	Timestamp       int64           `json:"timestamp"`
	Source          Source          `json:"source"`
	Mode            Mode            `json:"mode"`
	WebhookEventID  string          `json:"webhookEventId"`
	DeliveryContext DeliveryContext `json:"deliveryContext"`
	ReplyToken      string          `json:"replyToken,omitempty"`
}

// Kind returns the event discriminator
func (b *Base) Kind() Kind { return b.Type }

// Common returns the shared event fields
func (b *Base) Common() *Base { return b }

func (b *Base) sealed() {}

// Event is one parsed webhook event. The set of implementations is closed:
// every recognized kind has its own struct, anything else is an *UnknownEvent.
type Event interface {
	Kind() Kind
	Common() *Base
	sealed()
}

// Envelope is one webhook delivery
type Envelope struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// MessageEvent is sent when a user sends a message
type MessageEvent struct {
	Base
	Message Message `json:"message"`
}

// Postback carries the data of a postback action
type Postback struct {
	Data   string            `json:"data"`
	Params map[string]string `json:"params,omitempty"`
}

// PostbackEvent is sent when a user triggers a postback action
type PostbackEvent struct {
	Base
	Postback Postback `json:"postback"`
}

// FollowDetail is present on follow events sent after an unblock
type FollowDetail struct {
	IsUnblocked bool `json:"isUnblocked"`
}

// FollowEvent is sent when a user adds the bot as a friend or unblocks it
type FollowEvent struct {
	Base
	Follow *FollowDetail `json:"follow,omitempty"`
}

// UnfollowEvent is sent when a user blocks the bot
type UnfollowEvent struct {
	Base
}

// JoinEvent is sent when the bot joins a group chat or room
type JoinEvent struct {
	Base
}

// LeaveEvent is sent when the bot is removed from a group chat or room
type LeaveEvent struct {
	Base
}

// Members lists the users that joined or left
type Members struct {
	Members []Source `json:"members"`
}

// MemberJoinedEvent is sent when users join a group chat or room the bot is in
type MemberJoinedEvent struct {
	Base
	Joined Members `json:"joined"`
}

// MemberLeftEvent is sent when users leave a group chat or room the bot is in
type MemberLeftEvent struct {
	Base
	Left Members `json:"left"`
}

// Unsend identifies the message a user unsent
type Unsend struct {
	MessageID string `json:"messageId"`
}

// UnsendEvent is sent when a user unsends a message
type UnsendEvent struct {
	Base
	Unsend Unsend `json:"unsend"`
}

// Beacon is the beacon detection detail
type Beacon struct {
	HWID string `json:"hwid"`
	Type string `json:"type"`
	DM   string `json:"dm,omitempty"`
}

// BeaconEvent is sent when a user enters the range of a beacon
type BeaconEvent struct {
	Base
	Beacon Beacon `json:"beacon"`
}

// Link is the result of an account link attempt
type Link struct {
	Result string `json:"result"`
	Nonce  string `json:"nonce"`
}

// AccountLinkEvent is sent when a user links their account
type AccountLinkEvent struct {
	Base
	Link Link `json:"link"`
}

// VideoPlayComplete identifies the video message that finished playing
type VideoPlayComplete struct {
	TrackingID string `json:"trackingId"`
}

// VideoPlayCompleteEvent is sent when a user finishes watching a tracked video
type VideoPlayCompleteEvent struct {
	Base
	VideoPlayComplete VideoPlayComplete `json:"videoPlayComplete"`
}

// UnknownEvent carries an event whose type is not recognized.
// Base is filled on a best-effort basis; Raw is the event as delivered.
type UnknownEvent struct {
	Base
	Raw json.RawMessage `json:"-"`
}

// MarshalJSON returns the event exactly as it was delivered
func (e *UnknownEvent) MarshalJSON() ([]byte, error) {
	if len(e.Raw) == 0 {
		return json.Marshal(e.Base)
	}
	return e.Raw, nil
}
