package market

import (
	"fmt"
	"strings"
)

// IconBaseURL serves the cryptocurrency-icons set (32px and 128px PNGs in color and black).
const IconBaseURL = "https://cdn.jsdelivr.net/gh/spothq/cryptocurrency-icons@master"

// IconOptions selects the icon variant.
type IconOptions struct {
	Size       int  // Requested pixel size; rounded to 32 or 128
	Monochrome bool // Black glyph instead of the color logo
}

// IconURL maps a symbol to a deterministic icon URL. It makes no network call.
func IconURL(symbol string, opts IconOptions) string {
	size := 32
	if opts.Size > 32 {
		size = 128
	}

	style := "color"
	if opts.Monochrome {
		style = "black"
	}

	name := strings.ToLower(strings.TrimSpace(symbol))
	if name == "" || strings.ContainsAny(name, "/?#% ") {
		name = "generic"
	}

	return fmt.Sprintf("%s/%d/%s/%s.png", IconBaseURL, size, style, name)
}
