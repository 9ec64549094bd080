// Package backendtest provides an in-process fake of the native backend's
// JSON-RPC and event endpoints for tests.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/Klingon-tech/klingnet-miner/internal/history"
)

// Server is a fake backend. Zero values answer with a disabled flag and
// empty history.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	flag    bool
	txs     []history.Transaction
	details map[string]history.Transaction
	calls   map[string]int
	frames  chan []byte
}

// New starts a fake backend closed at test cleanup.
func New(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		details: make(map[string]history.Transaction),
		calls:   make(map[string]int),
		frames:  make(chan []byte, 64),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.serveEvents)
	mux.HandleFunc("/", s.serveRPC)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// EventsURL is the websocket URL of the event stream.
func (s *Server) EventsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/events"
}

// SetFlag sets the answer of app_getFeatureFlag.
func (s *Server) SetFlag(on bool) {
	s.mu.Lock()
	s.flag = on
	s.mu.Unlock()
}

// SetTransactions sets the history returned by wallet_getTransactions.
func (s *Server) SetTransactions(txs ...history.Transaction) {
	s.mu.Lock()
	s.txs = txs
	s.mu.Unlock()
}

// SetDetails sets the record returned by wallet_getTransactionDetails.
func (s *Server) SetDetails(txs ...history.Transaction) {
	s.mu.Lock()
	for _, t := range txs {
		s.details[t.ID] = t
	}
	s.mu.Unlock()
}

// Calls returns how often method was called.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Push queues an event frame for the connected stream.
func (s *Server) Push(event string, payload any) {
	data, err := json.Marshal(map[string]any{"event": event, "payload": payload})
	if err != nil {
		panic(err)
	}
	s.frames <- data
}

var upgrader = websocket.Upgrader{}

func (s *Server) serveEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case f := <-s.frames:
			if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		}
	}
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
		ID     int64           `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls[req.Method]++
	var result any
	switch req.Method {
	case "app_getFeatureFlag":
		result = map[string]bool{"enabled": s.flag}
	case "wallet_getTransactions":
		var p struct {
			Offset int `json:"offset"`
			Limit  int `json:"limit"`
		}
		json.Unmarshal(req.Params, &p)
		result = map[string]any{"transactions": page(s.txs, p.Offset, p.Limit), "total": len(s.txs)}
	case "wallet_getTransactionDetails":
		var p struct {
			IDs []string `json:"ids"`
		}
		json.Unmarshal(req.Params, &p)
		out := []history.Transaction{}
		for _, id := range p.IDs {
			if t, ok := s.details[id]; ok {
				out = append(out, t)
			}
		}
		result = map[string]any{"transactions": out}
	}
	s.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if result == nil {
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	} else {
		resp["result"] = result
	}
	json.NewEncoder(w).Encode(resp)
}

func page(txs []history.Transaction, offset, limit int) []history.Transaction {
	out := []history.Transaction{}
	if offset < 0 || offset >= len(txs) {
		return out
	}
	end := len(txs)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append(out, txs[offset:end]...)
}
