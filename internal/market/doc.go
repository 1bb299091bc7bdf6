// Package market implements the Subscription Registry and pair helpers.
//
// The Subscription Registry:
//   - Tracks desired pairs as reference counts, one per independent consumer
//   - Is the authoritative set used to resubscribe after a reconnect
//   - Assigns a fetch generation per subscription lifetime so late historical
//     results for an unsubscribed pair can be recognized and discarded
package market
