package prices

import "fmt"

// Direction classifies a percentage change.
type Direction int

const (
	Flat Direction = iota
	Up
	Down
)

// Deadband is the tolerance around zero inside which a change counts as flat.
const Deadband = 0.0001

// Classify maps a percentage change to a Direction using Deadband.
func Classify(pct float64) Direction {
	switch {
	case pct > Deadband:
		return Up
	case pct < -Deadband:
		return Down
	default:
		return Flat
	}
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "flat"
	}
}

// MarshalText encodes the direction as "up", "down" or "flat".
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses "up", "down" or "flat".
func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "up":
		*d = Up
	case "down":
		*d = Down
	case "flat", "":
		*d = Flat
	default:
		return fmt.Errorf("unknown direction %q", text)
	}
	return nil
}

// PriceInfo is a read-only snapshot of what is known about one pair.
type PriceInfo struct {
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // Milliseconds since epoch
	HasPrice  bool    `json:"has_price"`

	Change7dPct float64   `json:"change_7d_pct"`
	HasChange   bool      `json:"has_change"` // False means "no change known", not 0%
	Direction   Direction `json:"direction"`
}

// Change is the result of a historical-change computation.
type Change struct {
	Pct       float64
	HasPct    bool
	Direction Direction

	// Reference price/timestamp from the most recent candle. Only used when no
	// live price has been recorded for the pair.
	RefPrice     float64
	RefTimestamp int64
	HasRef       bool
}

// NoChange is the result for insufficient or unusable history.
func NoChange() Change {
	return Change{Direction: Flat}
}
