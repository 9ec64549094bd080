package main

import (
	"context"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/Klingon-tech/klingnet-miner/internal/hub"
	"github.com/Klingon-tech/klingnet-miner/internal/mining"
)

// wailsEmitter forwards hub events to the frontend.
type wailsEmitter struct {
	ctx context.Context
}

func (w *wailsEmitter) Emit(name string, data any) {
	runtime.EventsEmit(w.ctx, name, data)
}

// notifyEmitter raises an OS notification for every reward before
// forwarding the event.
type notifyEmitter struct {
	next    hub.Emitter
	enabled func() bool
	notify  func(title, body string)
}

func (n *notifyEmitter) Emit(name string, data any) {
	if name == hub.EventReward && n.enabled() {
		if e, ok := data.(mining.Effect); ok {
			n.notify("Mining reward", formatReward(e))
		}
	}
	n.next.Emit(name, data)
}
