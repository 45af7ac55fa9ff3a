package engine

import (
	"log"

	"github.com/spektr-org/flightquery/schema"
)

// ============================================================================
// EXECUTOR — apply → summarize → aggregate
// ============================================================================
// Entry point: Execute(view, query, reg, opts...)
//
// Pipeline:
//   1. Validate and apply filters → SubView
//   2. Summarize the filtered view
//   3. Run the aggregation handler, if one was requested
//
// This function never calls an AI service. All computation is local.
// Zero data copy — the engine reads consumer data through RecordView.
// ============================================================================

// Execute runs a Query against a RecordView.
//
// Options:
//   - WithTopK(k) — number of top destinations in the summary
func Execute(view RecordView, q Query, reg *schema.Registry, opts ...Option) (*Result, error) {
	filtered, err := Apply(view, q.Filters, reg)
	if err != nil {
		return nil, err
	}

	log.Printf("🔧 Engine: %d records after filtering (from %d), %d active dimensions",
		filtered.Len(), view.Len(), activeCount(q.Filters))

	result := &Result{
		View:    filtered,
		Summary: Summarize(filtered, opts...),
	}

	if q.Aggregation != nil {
		result.Aggregation = Aggregate(filtered, q.Aggregation, reg)
		if result.Aggregation == nil {
			log.Printf("⚠️ Engine: aggregation %q on %q ignored (no handler)", q.Aggregation.Type, q.Aggregation.Column)
		}
	}

	return result, nil
}

func activeCount(spec FilterSpec) int {
	n := 0
	for _, c := range spec {
		if c.Active() {
			n++
		}
	}
	return n
}
