/*
normalize.go - Share-to-amount allocation (the Share Normalizer)

PURPOSE:
  Turns a list of (participant, integer shares) plus a total monetary
  amount into per-participant percentages and currency amounts that sum
  EXACTLY to the total.

EXACT-SUM ROUNDING:
  Every member except the last gets round(total * shares/totalShares, 2).
  The LAST member in input order receives total - sum(previous), so the
  amounts always reconcile to the total regardless of rounding. The last
  member absorbing the remainder is a deliberate, documented tie-break,
  not an ordering bug:

    shares [1,1,1], total 100.01 -> [33.34, 33.34, 33.33]

PURITY:
  No side effects, no I/O, deterministic for a given input order. The
  input order is preserved in the output.

SEE ALSO:
  - distribution.go: Applies the normalizer to purchase ledgers
  - reconcile.go: Re-runs it for the redistribute strategy
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT / OUTPUT TYPES
// =============================================================================

// ShareMember is one weighted participant in a normalization request.
type ShareMember struct {
	Participant ParticipantID
	Shares      int
}

// Allocation is the normalized result for one member.
type Allocation struct {
	Participant ParticipantID
	Shares      int
	Percentage  decimal.Decimal
	Amount      decimal.Decimal
}

// =============================================================================
// NORMALIZER
// =============================================================================

var hundred = decimal.NewFromInt(100)

// Normalize computes per-member percentages and amounts for a total.
//
// Preconditions: every member's shares >= 1 and total > 0. Violations
// return ErrInvalidShares / ErrInvalidTotal and no partial result.
func Normalize(members []ShareMember, total decimal.Decimal) ([]Allocation, error) {
	if len(members) == 0 {
		return nil, &InvalidSharesError{Shares: 0}
	}

	totalShares := 0
	for _, m := range members {
		if m.Shares < 1 {
			return nil, &InvalidSharesError{Participant: m.Participant, Shares: m.Shares}
		}
		totalShares += m.Shares
	}
	if totalShares <= 0 {
		return nil, &InvalidSharesError{Shares: totalShares}
	}
	if !total.IsPositive() {
		return nil, ErrInvalidTotal
	}

	shareBase := decimal.NewFromInt(int64(totalShares))
	allocs := make([]Allocation, len(members))
	allocated := decimal.Zero

	for i, m := range members {
		shares := decimal.NewFromInt(int64(m.Shares))
		percentage := shares.Div(shareBase).Mul(hundred)

		var amount decimal.Decimal
		if i == len(members)-1 {
			// Last member absorbs the rounding remainder, keeping the
			// sum exact.
			amount = RoundMoney(total.Sub(allocated))
		} else {
			amount = RoundMoney(total.Mul(shares).Div(shareBase))
			allocated = allocated.Add(amount)
		}

		allocs[i] = Allocation{
			Participant: m.Participant,
			Shares:      m.Shares,
			Percentage:  percentage,
			Amount:      amount,
		}
	}

	return allocs, nil
}

// EqualMembers returns the given participants with every share set
// to 1. The equal-split shortcut is a named special case of Normalize,
// not a separate code path.
func EqualMembers(participants []ParticipantID) []ShareMember {
	members := make([]ShareMember, len(participants))
	for i, p := range participants {
		members[i] = ShareMember{Participant: p, Shares: 1}
	}
	return members
}
