// Package history implements the Historical-Change Fetcher.
//
// The fetcher requests the last 8 daily candles for a pair (newest-first) and
// computes the percentage change between the latest close and the close seven
// candles earlier. Concurrent fetches for the same pair share one request.
// Failures are returned, never retried here.
package history
