// Package events routes backend events to typed handlers.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingnet-miner/internal/log"
	"github.com/Klingon-tech/klingnet-miner/internal/telemetry"
)

// Name identifies a backend event.
type Name string

// Backend events.
const (
	ProgressTrackerUpdate Name = "progress_tracker_update"
	MinerMetrics          Name = "miner_metrics"
	ConnectionStatus      Name = "connection_status"
	WalletTransactions    Name = "wallet_transactions"
)

type subscription struct {
	id       uuid.UUID
	disposed atomic.Bool
	deliver  func(json.RawMessage) error
}

// Bus is a registry of typed event handlers.
//
// Handlers run one at a time in publish order. A handler must not publish
// synchronously; disposing from inside a handler is allowed.
type Bus struct {
	mu       sync.RWMutex
	subs     map[Name][]*subscription
	dispatch sync.Mutex
	logger   zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[Name][]*subscription),
		logger: klog.Events,
	}
}

// Subscribe registers fn for events called name. Payloads are decoded into
// T before fn runs. The returned disposer removes the handler; calls after
// the first have no effect.
func Subscribe[T any](b *Bus, name Name, fn func(T)) func() {
	sub := &subscription{
		id: uuid.New(),
		deliver: func(raw json.RawMessage) error {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			fn(v)
			return nil
		},
	}

	b.mu.Lock()
	b.subs[name] = append(b.subs[name], sub)
	b.mu.Unlock()

	b.logger.Debug().Str("event", string(name)).Str("subscription", sub.id.String()).Msg("Subscribed")

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.disposed.Store(true)
			b.remove(name, sub)
			b.logger.Debug().Str("event", string(name)).Str("subscription", sub.id.String()).Msg("Unsubscribed")
		})
	}
}

func (b *Bus) remove(name Name, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[name]
	for i, s := range list {
		if s == sub {
			b.subs[name] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}

// Subscribers returns the number of handlers registered for name.
func (b *Bus) Subscribers(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

// Publish delivers a raw payload to every handler of name. A payload that
// does not decode for a handler is logged and skipped for that handler.
func (b *Bus) Publish(name Name, raw json.RawMessage) {
	b.dispatch.Lock()
	defer b.dispatch.Unlock()

	b.mu.RLock()
	subs := append([]*subscription(nil), b.subs[name]...)
	b.mu.RUnlock()

	var failed error
	for _, sub := range subs {
		if sub.disposed.Load() {
			continue
		}
		if err := b.deliver(sub, raw); err != nil {
			failed = err
			b.logger.Warn().
				Err(err).
				Str("event", string(name)).
				Str("subscription", sub.id.String()).
				Msg("Dropping event")
		}
	}
	telemetry.ObserveEvent(string(name), failed)
}

func (b *Bus) deliver(sub *subscription, raw json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.deliver(raw)
}

// Emit publishes an in-process value as the payload of name.
func Emit[T any](b *Bus, name Name, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	b.Publish(name, raw)
	return nil
}
