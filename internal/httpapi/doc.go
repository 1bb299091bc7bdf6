// Package httpapi exposes the price feed over HTTP.
//
// Routes:
//
//	GET    /health                 stream state, counters and build info
//	GET    /prices                 every stored PriceInfo
//	GET    /prices/:pair           one PriceInfo, 404 while nothing is known
//	GET    /subscriptions          subscribed pairs
//	PUT    /subscriptions/:pair    add one reference
//	DELETE /subscriptions/:pair    drop one reference
//	GET    /icons/:symbol          icon URL (?size=, ?mono=, ?redirect=)
package httpapi
