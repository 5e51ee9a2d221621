package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSlackSend(t *testing.T) {
	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	slack := NewSlack(srv.URL, time.Second)
	require.NoError(t, slack.Send(t.Context(), "validator 0x12345678 is exited"))
	require.Equal(t, "validator 0x12345678 is exited", got.Text)
}

func TestSlackSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid_token"))
	}))
	defer srv.Close()

	slack := NewSlack(srv.URL, time.Second)
	err := slack.Send(t.Context(), "hello")
	require.ErrorContains(t, err, "403")
	require.ErrorContains(t, err, "invalid_token")
}

func TestSlackSendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	slack := NewSlack(url, time.Second)
	require.Error(t, slack.Send(t.Context(), "hello"))
}
