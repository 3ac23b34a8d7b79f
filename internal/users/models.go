package users

import "time"

// User is a debtor record. Identified externally by phone number.
//
// Invariant: 0 <= RemainingDebt <= TotalDebt. RemainingDebt is mutated only by
// the call session recorder when a SUCCESS or PARTIAL session is finalized.
type User struct {
	ID          string `json:"user_id" db:"id"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`
	Name        string `json:"name" db:"name"`

	// Email may be empty; invoice delivery is skipped without it.
	Email string `json:"email,omitempty" db:"email"`

	TotalDebt     float64 `json:"total_debt" db:"total_debt"`
	RemainingDebt float64 `json:"debt" db:"remaining_debt"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
