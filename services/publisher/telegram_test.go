package publisher

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramPublisherDeliversToAllChats(t *testing.T) {
	type delivery struct {
		path   string
		chatID string
		text   string
	}
	var deliveries []delivery

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		deliveries = append(deliveries, delivery{
			path:   r.URL.Path,
			chatID: r.PostFormValue("chat_id"),
			text:   r.PostFormValue("text"),
		})
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	pub := NewTelegramPublisher(srv.URL, "test-token", []string{"111", "222"})
	err := pub.Publish("boots", []byte("new listing: leather boots"))
	require.NoError(t, err)

	require.Len(t, deliveries, 2)
	assert.Equal(t, "/bottest-token/sendMessage", deliveries[0].path)
	assert.Equal(t, "111", deliveries[0].chatID)
	assert.Equal(t, "222", deliveries[1].chatID)
	assert.Equal(t, "new listing: leather boots", deliveries[0].text)
}

func TestTelegramPublisherPartialFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	pub := NewTelegramPublisher(srv.URL, "test-token", []string{"111", "222"})
	err := pub.Publish("boots", []byte("message"))

	// First chat failed, second was still attempted.
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestTelegramPublisherNoops(t *testing.T) {
	pub := NewTelegramPublisher("https://api.telegram.org", "token", nil)
	assert.NoError(t, pub.TrimStreams())
	assert.NoError(t, pub.Close())
}
