package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastNotifier(secret string, attempts int) *Notifier {
	n := NewNotifier(secret, attempts, time.Second, nil)
	n.Backoff = func(int) time.Duration { return time.Millisecond }
	return n
}

func TestNotifySignsPayload(t *testing.T) {
	var gotSig, gotType string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotType = r.Header.Get(HeaderEventType)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := fastNotifier("secret", 3)
	require.NoError(t, n.Notify(context.Background(), srv.URL, "run.finished", map[string]any{"runId": "r1"}))

	assert.Equal(t, "run.finished", gotType)
	assert.True(t, VerifyHMAC("secret", body, gotSig))
	assert.False(t, VerifyHMAC("other", body, gotSig))

	var p Payload
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, "run.finished", p.Type)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "r1", p.Data.(map[string]any)["runId"])
}

func TestNotifyUnsignedWithoutSecret(t *testing.T) {
	var gotSig atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig.Store(r.Header.Get(HeaderSignature))
	}))
	defer srv.Close()

	require.NoError(t, fastNotifier("", 1).Notify(context.Background(), srv.URL, "run.finished", nil))
	assert.Equal(t, "", gotSig.Load())
}

func TestNotifyRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, fastNotifier("", 5).Notify(context.Background(), srv.URL, "run.finished", nil))
	assert.Equal(t, int32(3), calls.Load())
}

func TestNotifyGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := fastNotifier("", 2).Notify(context.Background(), srv.URL, "run.finished", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Equal(t, int32(2), calls.Load())
}

func TestNotifyStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := fastNotifier("", 10)
	n.Backoff = func(int) time.Duration { return time.Hour }
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := n.Notify(ctx, srv.URL, "run.finished", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, time.Second, nextBackoff(-3))
	assert.Equal(t, 8*time.Second, nextBackoff(3))
	assert.Equal(t, 1024*time.Second, nextBackoff(50))
}
