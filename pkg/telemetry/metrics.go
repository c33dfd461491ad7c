package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments are created lazily against whatever meter provider is
// installed; before Init that is the otel no-op provider.
var (
	instrumentsOnce sync.Once
	cacheLookups    metric.Int64Counter
	themeTiers      metric.Int64Counter
	partialBatches  metric.Int64Counter
	planSaves       metric.Int64Counter
)

func initInstruments(name string) {
	instrumentsOnce.Do(func() {
		meter := otel.Meter(name)
		cacheLookups, _ = meter.Int64Counter("planner.freeze.lookups",
			metric.WithDescription("Recommendation cache lookups by outcome"))
		themeTiers, _ = meter.Int64Counter("planner.theme.tier",
			metric.WithDescription("Theme keywords produced, by fallback tier"))
		partialBatches, _ = meter.Int64Counter("planner.batch.partial",
			metric.WithDescription("Recommendation batches returned with partial=true"))
		planSaves, _ = meter.Int64Counter("planner.plan.dropped_slots",
			metric.WithDescription("Submitted plan slots dropped by sanitization"))
	})
}

func ensureInstruments() {
	initInstruments("planner")
}

// RecordCacheLookup counts a freeze layer lookup. outcome is hit, miss,
// stale or bypass.
func RecordCacheLookup(ctx context.Context, outcome string) {
	ensureInstruments()
	cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordThemeTier counts which synthesizer tier produced a keyword.
func RecordThemeTier(ctx context.Context, tier string) {
	ensureInstruments()
	themeTiers.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier)))
}

// RecordPartialBatch counts a batch where one branch failed.
func RecordPartialBatch(ctx context.Context, failedBranch string) {
	ensureInstruments()
	partialBatches.Add(ctx, 1, metric.WithAttributes(attribute.String("failed_branch", failedBranch)))
}

// RecordDroppedSlots counts submitted slots that did not survive sanitization.
func RecordDroppedSlots(ctx context.Context, dropped int) {
	if dropped <= 0 {
		return
	}
	ensureInstruments()
	planSaves.Add(ctx, int64(dropped))
}
