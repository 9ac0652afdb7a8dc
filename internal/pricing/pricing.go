// Package pricing implements the deterministic net-price computation shared
// by the quote and booking paths.  Money is handled as integer cents and
// percentages as integer basis points (100 bp = 1%), so every result is
// exact up to the final half-even rounding step and both call sites agree
// to the cent.
package pricing

// DiscountBP returns the discount, in basis points, implied by a tour's
// maximum commission and the commission the referring landlord chose.  A
// landlord who keeps the full commission produces no discount; one who
// waives it passes the whole margin to the tourist.  The result is clamped
// at zero: callers normally clamp the chosen commission to the cap first,
// but the computation never returns a negative discount regardless.
func DiscountBP(maxCommissionBP, chosenCommissionBP int64) int64 {
	d := maxCommissionBP - chosenCommissionBP
	if d < 0 {
		return 0
	}
	return d
}

// ClampCommissionBP bounds a landlord's configured commission to the tour's
// maximum.  Values are stored already capped, but the cap may have been
// lowered after the row was written, so reads clamp again.
func ClampCommissionBP(chosenBP, maxBP int64) int64 {
	if chosenBP < 0 {
		return 0
	}
	if chosenBP > maxBP {
		return maxBP
	}
	return chosenBP
}

// DiscountedPriceCents applies the referral discount to a list price.
// net = price × (10000 − discount_bp) / 10000, rounded half-even to the
// nearest cent.  The result never exceeds the list price.
func DiscountedPriceCents(priceCents, maxCommissionBP, chosenCommissionBP int64) int64 {
	bp := DiscountBP(maxCommissionBP, chosenCommissionBP)
	return divRoundHalfEven(priceCents*(10000-bp), 10000)
}

// LineAmounts returns the gross and net amounts for one booking line of qty
// passengers at the given list price.  The net side discounts the unit
// price first and then multiplies, matching how per-item amounts are
// persisted so sums over items reproduce the purchase aggregates exactly.
func LineAmounts(priceCents int64, qty uint32, maxCommissionBP, chosenCommissionBP int64) (gross, net int64) {
	gross = priceCents * int64(qty)
	net = DiscountedPriceCents(priceCents, maxCommissionBP, chosenCommissionBP) * int64(qty)
	return gross, net
}

// divRoundHalfEven divides num by den (den > 0) rounding the result to the
// nearest integer, ties to even.  num is non-negative on every call path
// (prices and discounts are clamped), so no negative handling is needed.
func divRoundHalfEven(num, den int64) int64 {
	q := num / den
	r := num % den
	twice := r * 2
	switch {
	case twice > den:
		return q + 1
	case twice < den:
		return q
	default:
		// exact half: round to even
		if q%2 != 0 {
			return q + 1
		}
		return q
	}
}
