package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostCreatedRoundTrip(t *testing.T) {
	in := PostCreated{
		PostID:    "6650c0ffee",
		AuthorID:  "6650beef",
		Content:   "hello world",
		MediaIDs:  []string{"m1"},
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	body, err := Encode(in)
	require.NoError(t, err)

	out, err := DecodePostCreated(body)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, RoutePostCreated, out.RoutingKey())
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		decode func([]byte) error
	}{
		{"created without postId", `{"authorId":"a","createdAt":"2026-03-01T10:00:00Z"}`, func(b []byte) error { _, err := DecodePostCreated(b); return err }},
		{"created without createdAt", `{"postId":"p","authorId":"a"}`, func(b []byte) error { _, err := DecodePostCreated(b); return err }},
		{"deleted without authorId", `{"postId":"p","mediaIds":["m"]}`, func(b []byte) error { _, err := DecodePostDeleted(b); return err }},
		{"not json", `{"postId":`, func(b []byte) error { _, err := DecodePostDeleted(b); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.decode([]byte(tt.body)), ErrMalformed)
		})
	}
}

func TestEncodeValidates(t *testing.T) {
	_, err := Encode(PostDeleted{PostID: "p"})
	assert.ErrorIs(t, err, ErrMalformed)
}
