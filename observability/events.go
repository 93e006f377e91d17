package observability

import (
	"log/slog"
	"sort"

	"revledger/core/events"
	"revledger/core/types"
)

type wireEvent interface {
	Event() *types.Event
}

// LogEmitter renders committed ledger events into the structured log stream
// and feeds the contribution lifecycle counters. Payment and settlement
// volumes are accounted at the RPC layer, where the request outcome is known,
// so the emitter only records lifecycle transitions.
type LogEmitter struct {
	logger  *slog.Logger
	metrics *ledgerMetrics
}

// NewLogEmitter builds an emitter writing through the given logger. A nil
// logger falls back to the process default.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger, metrics: LedgerMetrics()}
}

// Emit implements events.Emitter.
func (e *LogEmitter) Emit(evt events.Event) {
	if e == nil || evt == nil {
		return
	}
	switch evt.(type) {
	case events.ContributionProposed:
		e.metrics.RecordContribution("proposed")
	case events.ContributionAccepted:
		e.metrics.RecordContribution("accepted")
	case events.ContributionRejected:
		e.metrics.RecordContribution("rejected")
	case events.ContributionRemoved:
		e.metrics.RecordContribution("removed")
	}

	wire, ok := evt.(wireEvent)
	if !ok {
		e.logger.Info("ledger event", slog.String("type", evt.EventType()))
		return
	}
	rendered := wire.Event()
	keys := make([]string, 0, len(rendered.Attributes))
	for k := range rendered.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, 1+len(keys))
	args = append(args, slog.String("type", rendered.Type))
	for _, k := range keys {
		args = append(args, slog.String(k, rendered.Attributes[k]))
	}
	e.logger.Info("ledger event", args...)
}
