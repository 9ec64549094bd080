package events

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// newEventServer serves each connection the given frames and then closes it.
func newEventServer(t *testing.T, frames ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStream_PublishesFrames(t *testing.T) {
	srv, _ := newEventServer(t,
		`{"event":"progress_tracker_update","payload":{"phase":"core","progress":10}}`,
		`not json`,
		`{"payload":{}}`,
		`{"event":"progress_tracker_update","payload":{"phase":"node","progress":20}}`,
	)

	b := NewBus()
	var (
		mu  sync.Mutex
		got []progress
	)
	dispose := Subscribe(b, ProgressTrackerUpdate, func(p progress) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})
	defer dispose()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewStream(wsURL(srv), b, time.Hour).Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 2
	})
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if got[0].Phase != "core" || got[1].Phase != "node" {
		t.Fatalf("got %+v", got)
	}
}

func TestStream_Redials(t *testing.T) {
	srv, conns := newEventServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewStream(wsURL(srv), NewBus(), 10*time.Millisecond).Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return conns.Load() >= 3 })
	cancel()
	<-done
}

func TestStream_StopsWhileDialFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewStream("ws://127.0.0.1:1/events", NewBus(), 10*time.Millisecond).Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
