package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-miner/internal/log"
)

// DefaultRedialDelay is the fixed delay between connection attempts.
const DefaultRedialDelay = 3 * time.Second

// Frame is one message on the backend event socket.
type Frame struct {
	Event   Name            `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Stream reads backend events from a websocket and publishes them on a bus.
type Stream struct {
	url    string
	bus    *Bus
	delay  time.Duration
	dialer *websocket.Dialer
	logger zerolog.Logger
}

// NewStream creates a stream for the websocket at url. A non-positive delay
// uses DefaultRedialDelay.
func NewStream(url string, bus *Bus, delay time.Duration) *Stream {
	if delay <= 0 {
		delay = DefaultRedialDelay
	}
	return &Stream{
		url:    url,
		bus:    bus,
		delay:  delay,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: klog.Events,
	}
}

// Run reads events until ctx is cancelled, redialing after failures.
func (s *Stream) Run(ctx context.Context) {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Err(err).Str("url", s.url).Dur("retry", s.delay).Msg("Event stream disconnected")

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.delay):
		}
	}
}

func (s *Stream) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	s.logger.Info().Str("url", s.url).Msg("Event stream connected")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Warn().Err(err).Msg("Malformed event frame")
			continue
		}
		if f.Event == "" {
			s.logger.Warn().Err(errors.New("missing event name")).Msg("Malformed event frame")
			continue
		}
		s.bus.Publish(f.Event, f.Payload)
	}
}
