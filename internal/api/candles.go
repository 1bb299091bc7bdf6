package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// ErrMalformedCandle is returned when a candle row cannot be parsed.
var ErrMalformedCandle = errors.New("malformed candle")

// GetCandles fetches recent candles for a pair, newest-first.
func (c *Client) GetCandles(ctx context.Context, instID string, opts CandlesOptions) ([]Candle, error) {
	query := url.Values{}
	query.Set("instId", instID)

	bar := opts.Bar
	if bar == "" {
		bar = Bar1D
	}
	query.Set("bar", bar)

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}

	var rows [][]string
	if err := c.get(ctx, "/api/v5/market/candles", query, &rows); err != nil {
		return nil, fmt.Errorf("get candles %s: %w", instID, err)
	}

	candles := make([]Candle, 0, len(rows))
	for i, row := range rows {
		candle, err := ParseCandle(row)
		if err != nil {
			return nil, fmt.Errorf("get candles %s: row %d: %w", instID, i, err)
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// ParseCandle converts a [ts, o, h, l, c, vol, ...] row. The confirm flag is
// the ninth column when present.
func ParseCandle(row []string) (Candle, error) {
	if len(row) < 5 {
		return Candle{}, fmt.Errorf("%w: %d columns", ErrMalformedCandle, len(row))
	}

	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return Candle{}, fmt.Errorf("%w: ts %q", ErrMalformedCandle, row[0])
	}

	var ohlc [4]float64
	for i := range ohlc {
		v, err := strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return Candle{}, fmt.Errorf("%w: column %d %q", ErrMalformedCandle, i+1, row[i+1])
		}
		ohlc[i] = v
	}

	candle := Candle{
		Timestamp: ts,
		Open:      ohlc[0],
		High:      ohlc[1],
		Low:       ohlc[2],
		Close:     ohlc[3],
		Confirmed: true,
	}

	if len(row) > 5 {
		if v, err := strconv.ParseFloat(row[5], 64); err == nil {
			candle.Volume = v
		}
	}
	if len(row) > 8 {
		candle.Confirmed = row[8] == "1"
	}

	return candle, nil
}
