package negotiation

import (
	"math"
	"testing"
)

func TestNegotiate_OpeningRound(t *testing.T) {
	res := Negotiate(Input{UserAmount: 100, UserDebt: 5000})

	if res.Status != StatusHaggle {
		t.Fatalf("expected HAGGLE, got %s", res.Status)
	}
	// min(100*1.8, 5000, 5000*0.7) = 180
	if res.AgentAmount != 180 {
		t.Fatalf("expected counter 180, got %v", res.AgentAmount)
	}
	if len(res.UserAmounts) != 1 || res.UserAmounts[0] != 100 {
		t.Fatalf("unexpected user history %v", res.UserAmounts)
	}
	if len(res.AgentAmounts) != 1 || res.AgentAmounts[0] != 180 {
		t.Fatalf("unexpected agent history %v", res.AgentAmounts)
	}
}

func TestNegotiate_SecondRoundConcedes(t *testing.T) {
	res := Negotiate(Input{
		UserAmounts:  []float64{100},
		AgentAmounts: []float64{180},
		UserAmount:   150,
		UserDebt:     5000,
	})

	// 150 already clears the target (min(100*1.3, 5000) = 130), so the agent
	// stops and matches the user's number.
	if res.Status != StatusStop {
		t.Fatalf("expected STOP, got %s", res.Status)
	}
	if res.AgentAmount != 150 {
		t.Fatalf("expected agent to concede 150, got %v", res.AgentAmount)
	}
	if res.UserAmounts[len(res.UserAmounts)-1] != 150 || res.AgentAmounts[len(res.AgentAmounts)-1] != 150 {
		t.Fatalf("expected both histories to end at 150: %v / %v", res.UserAmounts, res.AgentAmounts)
	}
}

func TestNegotiate_OfferAtOrAboveTargetStopsImmediately(t *testing.T) {
	res := Negotiate(Input{UserAmount: 700, UserDebt: 700})
	if res.Status != StatusStop || res.AgentAmount != 700 {
		t.Fatalf("expected immediate STOP at 700, got %s %v", res.Status, res.AgentAmount)
	}
}

func TestNegotiate_ZeroDebtDegeneratesToStop(t *testing.T) {
	res := Negotiate(Input{UserAmount: 50, UserDebt: 0})
	// target = min(65, 0) = 0, so any offer clears it.
	if res.Status != StatusStop || res.AgentAmount != 50 {
		t.Fatalf("expected STOP at 50, got %s %v", res.Status, res.AgentAmount)
	}
}

func TestNegotiate_NeverExceedsDebt(t *testing.T) {
	debts := []float64{0, 100, 999.99, 5000, 120000}
	offers := []float64{1, 40, 75, 150, 900, 4999}

	for _, debt := range debts {
		for _, offer := range offers {
			in := Input{UserAmount: offer, UserDebt: debt}
			for round := 0; round < maxRounds+1; round++ {
				res := Negotiate(in)
				if res.AgentAmount > debt && res.Status == StatusHaggle {
					t.Fatalf("debt=%v offer=%v round=%d: counter %v exceeds debt",
						debt, offer, round+1, res.AgentAmount)
				}
				if res.Status == StatusStop {
					break
				}
				in = Input{
					UserAmounts:  res.UserAmounts,
					AgentAmounts: res.AgentAmounts,
					UserAmount:   offer,
					UserDebt:     debt,
				}
			}
		}
	}
}

func TestNegotiate_TerminatesWithinMaxRounds(t *testing.T) {
	// A user who never moves must still be accepted by round 3.
	in := Input{UserAmount: 10, UserDebt: 10000}
	rounds := 0
	for {
		rounds++
		if rounds > maxRounds {
			t.Fatalf("negotiation did not stop within %d rounds", maxRounds)
		}
		res := Negotiate(in)
		if res.Status == StatusStop {
			if res.AgentAmount != 10 {
				t.Fatalf("expected final concession to 10, got %v", res.AgentAmount)
			}
			break
		}
		in = Input{
			UserAmounts:  res.UserAmounts,
			AgentAmounts: res.AgentAmounts,
			UserAmount:   10,
			UserDebt:     10000,
		}
	}
}

func TestNegotiate_HistoryBeyondMaxRoundsStops(t *testing.T) {
	res := Negotiate(Input{
		UserAmounts:  []float64{10, 11, 12},
		AgentAmounts: []float64{400, 380, 360},
		UserAmount:   13,
		UserDebt:     1000,
	})
	if res.Status != StatusStop || res.AgentAmount != 13 {
		t.Fatalf("expected STOP at 13 past max rounds, got %s %v", res.Status, res.AgentAmount)
	}
}

func TestNegotiate_CounterIsRoundedToCents(t *testing.T) {
	res := Negotiate(Input{UserAmount: 33.33, UserDebt: 70})
	if res.Status != StatusHaggle {
		t.Fatalf("expected HAGGLE, got %s", res.Status)
	}
	// min(33.33*1.8, 70, 49) = 49
	if got := res.AgentAmount; math.Abs(got*100-math.Round(got*100)) > 1e-9 {
		t.Fatalf("counter %v not rounded to cents", got)
	}
}

func TestNegotiate_AcceptKeepsRawUserOffer(t *testing.T) {
	// 49.999 clears the target (min(64.9987, 10) = 10), so the agent accepts.
	res := Negotiate(Input{UserAmount: 49.999, UserDebt: 10})

	if res.Status != StatusStop {
		t.Fatalf("expected STOP, got %s", res.Status)
	}
	if res.UserAmounts[0] != 49.999 {
		t.Fatalf("user history must keep the offer verbatim, got %v", res.UserAmounts[0])
	}
	if res.AgentAmount != 50 || res.AgentAmounts[0] != 50 {
		t.Fatalf("agent amount must be rounded to cents, got %v / %v", res.AgentAmount, res.AgentAmounts[0])
	}
}

func TestNegotiate_DoesNotMutateCallerHistory(t *testing.T) {
	userHist := []float64{100}
	agentHist := []float64{180}
	_ = Negotiate(Input{UserAmounts: userHist, AgentAmounts: agentHist, UserAmount: 110, UserDebt: 5000})

	if len(userHist) != 1 || len(agentHist) != 1 {
		t.Fatalf("input history slices were mutated: %v / %v", userHist, agentHist)
	}
}
