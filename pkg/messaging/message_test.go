package messaging

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageJSON(t *testing.T) {
	tests := []struct {
		name     string
		message  Message
		expected string
	}{
		{"text", TextMessage{Text: "hi"}, `{"type":"text","text":"hi"}`},
		{"text with quote", TextMessage{Text: "hi", QuoteToken: "q"}, `{"type":"text","text":"hi","quoteToken":"q"}`},
		{"sticker", StickerMessage{PackageID: "446", StickerID: "1988"}, `{"type":"sticker","packageId":"446","stickerId":"1988"}`},
		{"image", ImageMessage{OriginalContentURL: "https://e.x/o.jpg", PreviewImageURL: "https://e.x/p.jpg"}, `{"type":"image","originalContentUrl":"https://e.x/o.jpg","previewImageUrl":"https://e.x/p.jpg"}`},
		{"location", LocationMessage{Title: "Office", Address: "Tokyo", Latitude: 35.65910807942215, Longitude: 139.70372892916203}, `{"type":"location","title":"Office","address":"Tokyo","latitude":35.65910807942215,"longitude":139.70372892916203}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.message)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(data))
		})
	}
}

func TestMessageJSONInSlice(t *testing.T) {
	data, err := json.Marshal([]Message{TextMessage{Text: "a"}, &StickerMessage{PackageID: "1", StickerID: "2"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"text","text":"a"},{"type":"sticker","packageId":"1","stickerId":"2"}]`, string(data))
}

func TestValidateMessages(t *testing.T) {
	v := newValidator()

	assert.NoError(t, validateMessages(v, []Message{TextMessage{Text: "a"}}))
	assert.ErrorIs(t, validateMessages(v, nil), ErrInvalidMessage)
	assert.ErrorIs(t, validateMessages(v, []Message{nil}), ErrInvalidMessage)
	assert.ErrorIs(t, validateMessages(v, []Message{LocationMessage{Title: "t", Address: "a", Longitude: -181}}), ErrInvalidMessage)
}
