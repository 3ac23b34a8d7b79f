package negotiation

import (
	"math"
	"slices"
)

// Status reports whether the agent keeps haggling or ends the negotiation.
type Status string

const (
	StatusHaggle Status = "HAGGLE"
	StatusStop   Status = "STOP"
)

// The negotiation runs at most this many rounds; on the final round the agent
// always concedes to the user's offer.
const maxRounds = 3

// Strategy constants. These ARE the negotiation strategy; changing any of them
// changes agent behavior on live calls.
const (
	targetMarkup   = 1.30 // target = first offer * markup, capped at total debt
	openingMarkup  = 1.8  // round-1 counter = offer * markup
	openingDebtCap = 0.7  // round-1 counter never exceeds this share of debt
	baseReduction  = 0.4  // concession factor = base + round * step
	reductionStep  = 0.1
	fallbackDecay  = 0.9 // used when the gap formula fails to decrease
	floorTargetPct = 0.9 // counter never drops below target * this
	floorDebtShare = 0.5 // ... nor below this share of debt
	acceptMargin   = 1.10
)

// Input is one negotiation round. The caller owns the full offer history and
// resends it on every round; nothing is persisted between calls.
type Input struct {
	UserAmounts  []float64
	AgentAmounts []float64
	UserAmount   float64
	UserDebt     float64
}

// Result echoes both histories extended by the amounts used this round.
// On STOP the agent is recorded as matching the user's amount.
type Result struct {
	Status       Status
	AgentAmount  float64
	UserAmounts  []float64
	AgentAmounts []float64
}

// Negotiate computes the agent's next counter-offer, or accepts the user's
// offer. Pure and stateless: identical input yields identical output.
// Inputs are assumed validated (non-negative amounts, equal-length histories).
func Negotiate(in Input) Result {
	round := len(in.UserAmounts) + 1

	firstOffer := in.UserAmount
	if len(in.UserAmounts) > 0 {
		firstOffer = in.UserAmounts[0]
	}
	target := math.Min(firstOffer*targetMarkup, in.UserDebt)

	if round > maxRounds || in.UserAmount >= target {
		return accept(in)
	}

	var candidate float64
	if round == 1 {
		candidate = math.Min(in.UserAmount*openingMarkup, math.Min(in.UserDebt, in.UserDebt*openingDebtCap))
	} else {
		prev := in.AgentAmounts[len(in.AgentAmounts)-1]
		gap := prev - in.UserAmount
		reduction := baseReduction + float64(round)*reductionStep
		candidate = prev - gap*reduction
		if candidate >= prev {
			candidate = prev * fallbackDecay
		}
		floor := math.Max(target*floorTargetPct, math.Max(in.UserDebt*floorDebtShare, firstOffer))
		if candidate < floor {
			candidate = floor
		}
	}
	candidate = roundCents(candidate)

	if candidate <= in.UserAmount*acceptMargin || round == maxRounds {
		return accept(in)
	}

	return Result{
		Status:       StatusHaggle,
		AgentAmount:  candidate,
		UserAmounts:  append(slices.Clone(in.UserAmounts), in.UserAmount),
		AgentAmounts: append(slices.Clone(in.AgentAmounts), candidate),
	}
}

// accept ends the negotiation at the user's amount. The user's history keeps
// the offer exactly as given; the agent matches it rounded to cents.
func accept(in Input) Result {
	amount := roundCents(in.UserAmount)
	return Result{
		Status:       StatusStop,
		AgentAmount:  amount,
		UserAmounts:  append(slices.Clone(in.UserAmounts), in.UserAmount),
		AgentAmounts: append(slices.Clone(in.AgentAmounts), amount),
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
