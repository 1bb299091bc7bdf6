// Package poller implements the Change Refresher component.
//
// The Change Refresher:
//   - Periodically recomputes the 7-day change for every subscribed pair
//   - Uses bounded concurrency so a large pair set cannot flood the REST API
//   - Is disabled when the interval is zero; the feed then refreshes only on subscribe
package poller
