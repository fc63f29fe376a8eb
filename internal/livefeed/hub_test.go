package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startHub(t *testing.T, opts Options) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(nil, opts)
	go h.Run(ctx)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_DeliversPublishedEvents(t *testing.T) {
	t.Parallel()

	h, srv := startHub(t, Options{})
	conn := dial(t, srv)

	// Registration is asynchronous; publish until the client sees a frame.
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	got := make(chan Message, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var m Message
		if json.Unmarshal(data, &m) == nil {
			got <- m
		}
	}()

	for time.Now().Before(deadline) {
		h.Publish("alert.created", map[string]string{"id": "AL-1"})
		select {
		case m := <-got:
			if m.Type != "alert.created" {
				t.Errorf("Type = %q", m.Type)
			}
			payload, _ := m.Payload.(map[string]any)
			if payload["id"] != "AL-1" {
				t.Errorf("Payload = %v", m.Payload)
			}
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatal("no event received")
}

func TestHub_PublishWithoutClientsDoesNotBlock(t *testing.T) {
	t.Parallel()

	var drops atomic.Int64
	h := NewHub(nil, Options{OnDrop: func() { drops.Add(1) }})

	// Hub not running: the queue fills and further events are dropped.
	done := make(chan struct{})
	go func() {
		for i := 0; i < publishBuffer+10; i++ {
			h.Publish("tick", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked")
	}
	if got := drops.Load(); got != 10 {
		t.Errorf("drops = %d, want 10", got)
	}
}

func TestHub_RejectsCrossOriginByDefault(t *testing.T) {
	t.Parallel()

	_, srv := startHub(t, Options{})
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	hdr := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, hdr)
	if err == nil {
		t.Fatal("expected cross-origin dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("resp = %v, want 403", resp)
	}
}

func TestHub_UnmarshalablePayloadIsDropped(t *testing.T) {
	t.Parallel()

	h := NewHub(nil, Options{})
	h.Publish("bad", make(chan int))
	if len(h.broadcast) != 0 {
		t.Error("unmarshalable payload was queued")
	}
}
