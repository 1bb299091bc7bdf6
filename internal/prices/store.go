package prices

// entry is the internal record behind a PriceInfo.
type entry struct {
	info PriceInfo
	live bool // Set once a live push has been applied
}

// Store holds the latest PriceInfo per pair.
type Store struct {
	entries map[string]*entry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// ApplyLive records a live price. Change fields are carried over untouched.
func (s *Store) ApplyLive(pair string, price float64, timestamp int64) PriceInfo {
	e := s.entries[pair]
	if e == nil {
		e = &entry{}
		s.entries[pair] = e
	}

	e.info.Price = price
	e.info.Timestamp = timestamp
	e.info.HasPrice = true
	e.live = true

	return e.info
}

// ApplyChange records a historical change. Price and timestamp are carried over;
// the change's reference price is used only if no live price was ever recorded.
func (s *Store) ApplyChange(pair string, c Change) PriceInfo {
	e := s.entries[pair]
	if e == nil {
		e = &entry{}
		s.entries[pair] = e
	}

	e.info.Change7dPct = 0
	if c.HasPct {
		e.info.Change7dPct = c.Pct
	}
	e.info.HasChange = c.HasPct
	e.info.Direction = c.Direction

	if !e.live && c.HasRef {
		e.info.Price = c.RefPrice
		e.info.Timestamp = c.RefTimestamp
		e.info.HasPrice = true
	}

	return e.info
}

// Clear removes the pair's entry.
func (s *Store) Clear(pair string) {
	delete(s.entries, pair)
}

// Get returns a copy of the pair's PriceInfo. A missing entry means no data yet.
func (s *Store) Get(pair string) (PriceInfo, bool) {
	e, ok := s.entries[pair]
	if !ok {
		return PriceInfo{}, false
	}
	return e.info, true
}

// Snapshot returns a copy of every entry.
func (s *Store) Snapshot() map[string]PriceInfo {
	out := make(map[string]PriceInfo, len(s.entries))
	for pair, e := range s.entries {
		out[pair] = e.info
	}
	return out
}

// Len returns the number of pairs with data.
func (s *Store) Len() int {
	return len(s.entries)
}
