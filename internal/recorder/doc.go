// Package recorder implements the Snapshot Recorder component.
//
// The recorder observes every PriceInfo the feed stores and appends it to the
// price_snapshots table in batches. Rows flushed together share a batch id.
// Observation never blocks the feed: when the buffer is full the update is
// dropped and counted.
package recorder
