package events

import (
	"log/slog"
	"sort"

	"loanledger/core/types"
)

// Event represents a structured state change emitted by the ledger engines.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (indexers, notifiers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wired into every engine so event emission stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// LogEmitter writes every event to a structured logger, flattening typed
// payloads through their Event conversion. A nil Logger falls back to the
// process default.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements the Emitter interface.
func (l LogEmitter) Emit(ev Event) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	flat, ok := ev.(interface{ Event() *types.Event })
	if !ok {
		logger.Info("ledger event", slog.String("type", ev.EventType()))
		return
	}
	payload := flat.Event()
	keys := make([]string, 0, len(payload.Attributes))
	for k := range payload.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]any, 0, 2*(len(keys)+1))
	attrs = append(attrs, slog.String("type", payload.Type))
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, payload.Attributes[k]))
	}
	logger.Info("ledger event", attrs...)
}
