package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testSender(endpoint string) *SendGridSender {
	return &SendGridSender{
		apiKey:    "test-key",
		fromEmail: "noreply@stickerbin.test",
		fromName:  "stickerbin",
		endpoint:  endpoint,
		client:    &http.Client{Timeout: time.Second},
	}
}

func TestSendGridSenderSend(t *testing.T) {
	t.Parallel()

	var got sgMailPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := testSender(srv.URL)
	err := sender.Send(context.Background(), "user@example.com", "Reset your password", "code: 123456")
	require.NoError(t, err)

	require.Len(t, got.Personalizations, 1)
	require.Equal(t, "user@example.com", got.Personalizations[0].To[0].Email)
	require.Equal(t, "Reset your password", got.Subject)
	require.Equal(t, "code: 123456", got.Content[0].Value)
}

func TestSendGridSenderErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"message":"bad key"}]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	sender := testSender(srv.URL)
	err := sender.Send(context.Background(), "user@example.com", "subject", "body")
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
}
