// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single WebSocket connection shared by every pair
//   - Buffers outbound requests in an Outbound Queue while not open
//   - Writes from one goroutine per connection, so Send never waits on the socket
//   - Flushes the queue, resubscribes every desired pair, then starts the
//     Heartbeat Scheduler on each successful open
//   - Reconnects with exponential backoff, one pending timer at a time
//   - Parses inbound frames once and forwards ticker updates to a TickHandler
package connection
