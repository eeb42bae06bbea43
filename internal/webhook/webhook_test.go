package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tycoworks/tycostream/internal/ident"
	"github.com/tycoworks/tycostream/internal/types"
)

func TestHTTPSinkRetriesOnServerErrorThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewHTTPSink(Config{URL: srv.URL, MaxAttempts: 5, MaxElapsed: 2 * time.Second})
	err := sink.Post(context.Background(), Event{EventType: EventFire, TriggerName: "t1"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestHTTPSinkRetriesOn4xx(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewHTTPSink(Config{URL: srv.URL, MaxAttempts: 5, MaxElapsed: 2 * time.Second})
	err := sink.Post(context.Background(), Event{EventType: EventFire, TriggerName: "t1"})
	require.NoError(t, err, "spec §6: non-2xx responses retry up to the configured bound")
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestHTTPSinkExhaustsRetriesOnPersistent5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sink := NewHTTPSink(Config{URL: srv.URL, MaxAttempts: 2, MaxElapsed: 2 * time.Second})
	err := sink.Post(context.Background(), Event{EventType: EventFire, TriggerName: "t1"})
	require.Error(t, err)
}

func TestNewEventMapsRowToData(t *testing.T) {
	row := types.NewRow(map[ident.Ident]types.Value{
		ident.New("name"): types.StringValue("alice"),
	})
	e := NewEvent(EventFire, "t1", row)
	assert.Equal(t, EventFire, e.EventType)
	assert.Equal(t, "t1", e.TriggerName)
	assert.NotZero(t, e.Timestamp)
	assert.NotEmpty(t, e.Data)
}
