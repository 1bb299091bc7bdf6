package api

// Bar sizes accepted by the candles endpoint.
const (
	Bar1H = "1H"
	Bar1D = "1D"
)

// Candle is one OHLC aggregate. Prices are parsed from the API's decimal strings.
type Candle struct {
	Timestamp int64 // Bucket open time, milliseconds since epoch
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Confirmed bool // False while the bucket is still forming
}

// CandlesOptions are the query parameters for GetCandles.
type CandlesOptions struct {
	Bar   string // Defaults to Bar1D
	Limit int    // Defaults to the server's own default when 0
}
