// Package feed is the public facade over the price stream.
//
// A Feed ties together the Subscription Registry, the Price State Store, the
// Connection Manager and the Historical-Change Fetcher. Every mutation of
// shared state happens under a single mutex; callers only ever receive
// copies.
//
// Usage:
//
//	mgr := connection.NewManager(cfg, logger)
//	f := feed.New(mgr, fetcher, feed.WithLogger(logger))
//	mgr.SetTickHandler(f.HandleTick)
//	mgr.SetPairSource(f.Pairs)
//
//	f.Start(ctx)
//	f.Subscribe("BTC-USDT")
//	info, ok := f.QueryPrice("BTC-USDT")
package feed
