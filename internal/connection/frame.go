package connection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// FrameKind tags a parsed inbound frame.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameTicker
	FrameSubscribed
	FrameUnsubscribed
	FramePong
	FrameError
)

func (k FrameKind) String() string {
	switch k {
	case FrameTicker:
		return "ticker"
	case FrameSubscribed:
		return "subscribed"
	case FrameUnsubscribed:
		return "unsubscribed"
	case FramePong:
		return "pong"
	case FrameError:
		return "error"
	default:
		return "unknown"
	}
}

// Frame is an inbound message after parsing. Only the fields for Kind are set.
type Frame struct {
	Kind  FrameKind
	Ticks []Tick // FrameTicker
	Arg   Arg    // FrameSubscribed, FrameUnsubscribed, FrameTicker

	Code    string // FrameError
	Message string // FrameError
}

// inboundFrame is the union of every inbound JSON shape.
type inboundFrame struct {
	Event string          `json:"event"`
	Op    string          `json:"op"`
	Code  string          `json:"code"`
	Msg   string          `json:"msg"`
	Arg   *Arg            `json:"arg"`
	Data  json.RawMessage `json:"data"`
}

// tickerData is one entry of a tickers push. Numbers arrive as strings.
type tickerData struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	Ts     string `json:"ts"`
}

// ParseFrame classifies a raw frame. Frames of no known kind return
// FrameUnknown without error; undecodable frames return ErrMalformedFrame.
func ParseFrame(data []byte) (Frame, error) {
	data = bytes.TrimSpace(data)
	if string(data) == "pong" {
		return Frame{Kind: FramePong}, nil
	}

	var in inboundFrame
	if err := json.Unmarshal(data, &in); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch {
	case in.Event == "error":
		return Frame{Kind: FrameError, Code: in.Code, Message: in.Msg}, nil
	case in.Event == OpSubscribe:
		return Frame{Kind: FrameSubscribed, Arg: argOf(in.Arg)}, nil
	case in.Event == OpUnsubscribe:
		return Frame{Kind: FrameUnsubscribed, Arg: argOf(in.Arg)}, nil
	case in.Op == "pong":
		return Frame{Kind: FramePong}, nil
	case in.Event == "" && in.Arg != nil && in.Arg.Channel == ChannelTickers && len(in.Data) > 0:
		return parseTicker(in)
	}

	return Frame{Kind: FrameUnknown}, nil
}

func parseTicker(in inboundFrame) (Frame, error) {
	var entries []tickerData
	if err := json.Unmarshal(in.Data, &entries); err != nil {
		return Frame{}, fmt.Errorf("%w: ticker data: %v", ErrMalformedFrame, err)
	}

	ticks := make([]Tick, 0, len(entries))
	for _, d := range entries {
		pair := d.InstID
		if pair == "" {
			pair = in.Arg.InstID
		}
		if pair == "" {
			continue
		}

		last, err := strconv.ParseFloat(d.Last, 64)
		if err != nil || math.IsNaN(last) || math.IsInf(last, 0) {
			continue
		}

		ts, err := strconv.ParseInt(d.Ts, 10, 64)
		if err != nil {
			continue
		}

		ticks = append(ticks, Tick{Pair: pair, Last: last, Timestamp: ts})
	}

	if len(ticks) == 0 {
		return Frame{}, fmt.Errorf("%w: no usable ticker entries", ErrMalformedFrame)
	}

	return Frame{Kind: FrameTicker, Ticks: ticks, Arg: *in.Arg}, nil
}

func argOf(a *Arg) Arg {
	if a == nil {
		return Arg{}
	}
	return *a
}
