package tiers

import (
	"errors"
	"fmt"
)

var (
	// ErrPriceNotConfigured is returned when no provider price exists for a tier and interval.
	ErrPriceNotConfigured = errors.New("price not configured")
	// ErrUnknownPrice is returned when a provider price does not map to any tier.
	ErrUnknownPrice = errors.New("unknown price")
)

// Interval is the billing cadence of a paid tier.
type Interval string

const (
	Monthly Interval = "monthly"
	Annual  Interval = "annual"
)

// ParseInterval converts untrusted input into an Interval. Empty input means Monthly.
func ParseInterval(s string) (Interval, error) {
	switch Interval(s) {
	case "", Monthly:
		return Monthly, nil
	case Annual:
		return Annual, nil
	default:
		return "", fmt.Errorf("tiers: unknown billing interval %q", s)
	}
}

// PriceIDs are the provider price identifiers of one paid tier.
type PriceIDs struct {
	Monthly string
	Annual  string
}

// PriceBook maps paid tiers to provider price ids and back.
type PriceBook struct {
	byTier  map[Tier]PriceIDs
	byPrice map[string]Tier
}

// NewPriceBook builds a PriceBook. legacyMonthly is an older single price id
// that keeps resolving to MagicCircle; pass "" when there is none.
func NewPriceBook(prices map[Tier]PriceIDs, legacyMonthly string) (*PriceBook, error) {
	b := &PriceBook{
		byTier:  make(map[Tier]PriceIDs, len(prices)),
		byPrice: make(map[string]Tier, len(prices)*2+1),
	}
	for t, ids := range prices {
		if !t.Paid() {
			return nil, fmt.Errorf("tiers: cannot price tier %q", t)
		}
		b.byTier[t] = ids
		for _, id := range []string{ids.Monthly, ids.Annual} {
			if id == "" {
				continue
			}
			if other, dup := b.byPrice[id]; dup && other != t {
				return nil, fmt.Errorf("tiers: price %s assigned to both %s and %s", id, other, t)
			}
			b.byPrice[id] = t
		}
	}
	if legacyMonthly != "" {
		if _, dup := b.byPrice[legacyMonthly]; !dup {
			b.byPrice[legacyMonthly] = MagicCircle
		}
	}
	return b, nil
}

// Price returns the provider price id for t billed at interval.
func (b *PriceBook) Price(t Tier, interval Interval) (string, error) {
	ids, ok := b.byTier[t]
	if !ok {
		return "", fmt.Errorf("%w: %s %s", ErrPriceNotConfigured, t, interval)
	}
	var id string
	switch interval {
	case Monthly:
		id = ids.Monthly
	case Annual:
		id = ids.Annual
	}
	if id == "" {
		return "", fmt.Errorf("%w: %s %s", ErrPriceNotConfigured, t, interval)
	}
	return id, nil
}

// TierForPrice resolves a provider price id. Unknown ids are an error, never Free.
func (b *PriceBook) TierForPrice(priceID string) (Tier, error) {
	t, ok := b.byPrice[priceID]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPrice, priceID)
	}
	return t, nil
}

// Missing lists the tier/interval pairs without a configured price.
func (b *PriceBook) Missing() []string {
	var out []string
	for _, info := range All() {
		if !info.Tier.Paid() {
			continue
		}
		for _, iv := range []Interval{Monthly, Annual} {
			if _, err := b.Price(info.Tier, iv); err != nil {
				out = append(out, fmt.Sprintf("%s/%s", info.Tier, iv))
			}
		}
	}
	return out
}
