package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/pricefeed/internal/feed"
	"github.com/rickgao/pricefeed/internal/market"
	"github.com/rickgao/pricefeed/internal/prices"
)

// priceResponse is a PriceInfo plus display helpers.
type priceResponse struct {
	Pair    string `json:"pair"`
	Base    string `json:"base"`
	IconURL string `json:"icon_url"`
	prices.PriceInfo
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// pairParam normalizes the :pair path segment. Instrument ids are upper case.
func pairParam(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("pair")))
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"pairs":  len(s.feed.Pairs()),
		"build":  s.cfg.Build,
	}

	if s.stream != nil {
		st := s.stream.Stats()
		body["stream"] = gin.H{
			"state":             st.State.String(),
			"session":           st.Session,
			"attempt":           st.Attempt,
			"reconnect_pending": st.ReconnectPending,
			"queued":            st.Queued,
			"pending":           st.Pending,
			"reconnects":        st.Reconnects,
			"heartbeat":         st.HeartbeatRunning,
		}
	}

	c.JSON(http.StatusOK, body)
}

func (s *Server) listPrices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"prices": s.feed.Prices()})
}

func (s *Server) getPrice(c *gin.Context) {
	pair := pairParam(c)
	if _, _, err := market.ParsePair(pair); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_pair", err.Error())
		return
	}

	info, ok := s.feed.QueryPrice(pair)
	if !ok {
		respondError(c, http.StatusNotFound, "not_found", "no data for "+pair)
		return
	}

	base := feed.DeriveBaseSymbol(pair)
	c.JSON(http.StatusOK, priceResponse{
		Pair:      pair,
		Base:      base,
		IconURL:   feed.IconURL(base, market.IconOptions{}),
		PriceInfo: info,
	})
}

func (s *Server) listSubscriptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pairs": s.feed.Pairs()})
}

func (s *Server) subscribe(c *gin.Context) {
	pair := pairParam(c)

	if err := s.feed.Subscribe(pair); err != nil {
		switch {
		case errors.Is(err, market.ErrInvalidPair):
			respondError(c, http.StatusBadRequest, "invalid_pair", err.Error())
		case errors.Is(err, feed.ErrClosed):
			respondError(c, http.StatusServiceUnavailable, "closed", err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "internal", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"pair": pair, "status": "subscribed"})
}

func (s *Server) unsubscribe(c *gin.Context) {
	pair := pairParam(c)
	s.feed.Unsubscribe(pair)
	c.JSON(http.StatusOK, gin.H{"pair": pair, "status": "unsubscribed"})
}

func (s *Server) icon(c *gin.Context) {
	symbol := c.Param("symbol")

	var opts market.IconOptions
	if raw := c.Query("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 0 {
			respondError(c, http.StatusBadRequest, "invalid_size", "size must be a non-negative integer")
			return
		}
		opts.Size = size
	}
	if raw := c.Query("mono"); raw != "" {
		mono, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_mono", "mono must be a boolean")
			return
		}
		opts.Monochrome = mono
	}

	url := feed.IconURL(symbol, opts)

	if redirect, _ := strconv.ParseBool(c.Query("redirect")); redirect {
		c.Redirect(http.StatusFound, url)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "url": url})
}
