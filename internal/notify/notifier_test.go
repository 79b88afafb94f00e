package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PicksNotifier(t *testing.T) {
	n, err := New("", nil)
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	n, err = New("https://hooks.slack.com/services/T/B/X", nil)
	require.NoError(t, err)
	assert.IsType(t, &SlackWebhookNotifier{}, n)

	n, err = New("slack://token-a/token-b/token-c", nil)
	require.NoError(t, err)
	assert.IsType(t, &ShoutrrrNotifier{}, n)

	_, err = New("https://", nil)
	assert.Error(t, err)
}

func TestSlackWebhookNotifier_Send(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "wafwatch/"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewSlackWebhookNotifier(srv.URL)
	require.NoError(t, err)
	require.NoError(t, n.Send(context.Background(), NoDetections()))

	blocks := payload["blocks"].([]interface{})
	require.Len(t, blocks, 1)
	text := blocks[0].(map[string]interface{})["text"].(map[string]interface{})
	assert.Equal(t, NoDetectionsText, text["text"])
}

func TestSlackWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n, err := NewSlackWebhookNotifier(srv.URL)
	require.NoError(t, err)
	err = n.Send(context.Background(), NoDetections())
	assert.EqualError(t, err, "webhook returned status: 400")
}

func TestShoutrrrNotifier_SendsText(t *testing.T) {
	var gotURL, gotMsg string
	n := NewShoutrrrNotifier("generic://example.com")
	n.send = func(url, message string) error {
		gotURL, gotMsg = url, message
		return nil
	}

	require.NoError(t, n.Send(context.Background(), NoDetections()))
	assert.Equal(t, "generic://example.com", gotURL)
	assert.Equal(t, NoDetectionsText, gotMsg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Send(ctx, NoDetections()), context.Canceled)
}

type countingNotifier struct {
	sent int
	fail int
}

func (c *countingNotifier) Send(ctx context.Context, msg Message) error {
	c.sent++
	if c.sent == c.fail {
		return errors.New("rate limited")
	}
	return nil
}

func TestSendAll_ContinuesAfterFailure(t *testing.T) {
	log, hook := test.NewNullLogger()
	n := &countingNotifier{fail: 2}
	msgs := []Message{NoDetections(), NoDetections(), {}, NoDetections()}

	err := SendAll(context.Background(), n, msgs, log)
	assert.Error(t, err)
	assert.Equal(t, 3, n.sent)
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "notify", hook.LastEntry().Data["component"])
}

func TestLogNotifier(t *testing.T) {
	log, hook := test.NewNullLogger()
	require.NoError(t, NewLogNotifier(log).Send(context.Background(), NoDetections()))
	assert.Equal(t, NoDetectionsText, hook.LastEntry().Message)
}
