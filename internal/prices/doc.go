// Package prices implements the Price State Store.
//
// The store merges two independent sources per pair:
//   - Live ticker pushes (price + server timestamp)
//   - Historical change results (7-day percentage + direction)
//
// Neither source erases the fields owned by the other. The store itself is not
// synchronized; the feed facade serializes every call behind one mutex.
package prices
