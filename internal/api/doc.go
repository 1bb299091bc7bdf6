// Package api provides the REST client for the market-data server.
//
// Endpoints (OKX v5 public market data):
//   - Production: https://www.okx.com
//   - GET /api/v5/market/candles?instId=BTC-USDT&bar=1D&limit=8
//
// Responses use the {"code","msg","data"} envelope; a non-"0" code is an error
// even when the HTTP status is 200. Candle rows are newest-first.
package api
