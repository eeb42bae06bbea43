// Package metrics holds label names and histogram buckets shared by
// every package that registers prometheus metrics, following the
// teacher's internal/util/metrics conventions.
package metrics

// SourceLabels is used by metrics keyed only by source name.
var SourceLabels = []string{"source"}

// SubscriberLabels is used by metrics keyed by source and an opaque
// per-subscriber id, for queue depth and lag tracking.
var SubscriberLabels = []string{"source", "subscriber"}

// TriggerLabels is used by metrics keyed by source and trigger name.
var TriggerLabels = []string{"source", "trigger"}

// LatencyBuckets is the shared histogram bucket layout for
// sub-millisecond-to-multi-second latencies.
var LatencyBuckets = []float64{
	.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}
