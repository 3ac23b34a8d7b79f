package sessions

import "time"

// Outcome classifies a completed negotiation call.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomePartial Outcome = "PARTIAL"
	OutcomeRefused Outcome = "REFUSED"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomePartial, OutcomeRefused:
		return true
	default:
		return false
	}
}

// Paid reports whether the outcome carries a payment.
func (o Outcome) Paid() bool {
	return o == OutcomeSuccess || o == OutcomePartial
}

// Channel records which caller class submitted the result.
type Channel string

const (
	ChannelAPI  Channel = "api"
	ChannelVapi Channel = "vapi"
)

// StepStatus is the state of one integration sub-step.
type StepStatus string

const (
	StepPending StepStatus = "PENDING"
	StepSuccess StepStatus = "SUCCESS"
	StepFailed  StepStatus = "FAILED"
)

// IntegrationResult is one named result-or-error slot.
type IntegrationResult struct {
	Status     StepStatus `json:"status"`
	ExternalID string     `json:"external_id,omitempty"`
	Error      string     `json:"error,omitempty"`
	At         *time.Time `json:"at,omitempty"`
}

// Integrations is the fixed record of independently-failable sub-steps run
// while finalizing a call. CRM is reserved; nothing writes to it yet.
type Integrations struct {
	Invoice IntegrationResult `json:"invoice"`
	Email   IntegrationResult `json:"email"`
	CRM     IntegrationResult `json:"crm"`
}

// NewIntegrations returns the record with every slot PENDING.
func NewIntegrations() Integrations {
	return Integrations{
		Invoice: IntegrationResult{Status: StepPending},
		Email:   IntegrationResult{Status: StepPending},
		CRM:     IntegrationResult{Status: StepPending},
	}
}

// NegotiationHistory is the caller-held round-by-round record, stored verbatim
// on the session for audit.
type NegotiationHistory struct {
	UserAmounts  []float64 `json:"user_amounts"`
	AgentAmounts []float64 `json:"agent_amounts"`
	Rounds       int       `json:"rounds"`
}

// Session is one completed negotiation call.
//
// Invariants: DebtAfter <= DebtBefore; FinalAmount = 0 iff Outcome = REFUSED.
// Sessions are created already-closed and never updated afterward.
type Session struct {
	ID                string  `json:"session_id" db:"id"`
	UserID            string  `json:"user_id" db:"user_id"`
	ExternalSessionID string  `json:"external_session_id" db:"external_session_id"`
	Channel           Channel `json:"channel" db:"channel"`
	Outcome           Outcome `json:"outcome" db:"outcome"`

	InitialAmount float64 `json:"initial_amount" db:"initial_amount"`
	FinalAmount   float64 `json:"final_amount" db:"final_amount"`
	DebtBefore    float64 `json:"debt_before" db:"debt_before"`
	DebtAfter     float64 `json:"debt_after" db:"debt_after"`

	Negotiation  NegotiationHistory `json:"negotiation" db:"negotiation"`
	Integrations Integrations       `json:"integrations" db:"integrations"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
