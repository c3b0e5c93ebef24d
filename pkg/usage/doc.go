// Package usage holds the append-only credit ledger and the read-side
// aggregations built on it.
//
// Events are immutable once recorded. All aggregation is computed from the
// ledger at query time; there are no running counters to drift. Daily
// buckets are UTC calendar days.
package usage
