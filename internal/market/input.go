package market

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// The engine trusts its input. Drivers validate with these before calling it.
var (
	ErrBuyPrice = errors.New("market: buy price outside 90..110")
	ErrObserved = errors.New("market: invalid observed prices")
)

// ValidateBuy checks that buy is a price the Sunday seller can offer.
func ValidateBuy(buy int) error {
	if buy < MinBuyPrice || buy > MaxBuyPrice {
		return fmt.Errorf("%w: %d", ErrBuyPrice, buy)
	}
	return nil
}

// ObservedFrom builds an Observed from up to Phases prices. Missing trailing
// phases are unknown.
func ObservedFrom(prices []int) (Observed, error) {
	var o Observed
	if len(prices) > Phases {
		return o, fmt.Errorf("%w: %d prices, at most %d", ErrObserved, len(prices), Phases)
	}
	for i, p := range prices {
		if p < 0 {
			return o, fmt.Errorf("%w: phase %d is negative", ErrObserved, i)
		}
		o[i] = p
	}
	return o, nil
}

// ParseObserved reads a comma separated price list such as "0,0,95,,120".
// Empty entries are unknown.
func ParseObserved(s string) (Observed, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Observed{}, nil
	}
	parts := strings.Split(s, ",")
	prices := make([]int, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return Observed{}, fmt.Errorf("%w: phase %d: %q", ErrObserved, i, part)
		}
		prices[i] = n
	}
	return ObservedFrom(prices)
}

// String renders o in the form ParseObserved reads.
func (o Observed) String() string {
	parts := make([]string, Phases)
	for i, p := range o {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}
