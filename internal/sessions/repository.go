package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"collectvoice/pkg/utils"
)

// Store persists closed sessions. Implementations must write the session row
// and the debt propagation onto the user atomically.
type Store interface {
	SaveClosed(ctx context.Context, s Session) error
}

// SQLStore writes to Postgres. The session insert and the user's
// remaining_debt update share one transaction: both land or neither does.
type SQLStore struct {
	DB *sql.DB
}

func (st *SQLStore) SaveClosed(ctx context.Context, s Session) error {
	return utils.WithTx(ctx, st.DB, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertSession(ctx, tx, s); err != nil {
			return err
		}
		if s.Outcome.Paid() {
			return propagateDebt(ctx, tx, s.UserID, s.DebtAfter)
		}
		return nil
	})
}

func insertSession(ctx context.Context, tx *sql.Tx, s Session) error {
	negotiation, err := json.Marshal(s.Negotiation)
	if err != nil {
		return fmt.Errorf("encode negotiation blob: %w", err)
	}
	integrations, err := json.Marshal(s.Integrations)
	if err != nil {
		return fmt.Errorf("encode integrations blob: %w", err)
	}

	const q = `
INSERT INTO call_sessions (
  id, user_id, external_session_id, channel, outcome,
  initial_amount, final_amount, debt_before, debt_after,
  negotiation, integrations, started_at, ended_at, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
`
	_, err = tx.ExecContext(ctx, q,
		s.ID,
		s.UserID,
		s.ExternalSessionID,
		s.Channel,
		s.Outcome,
		s.InitialAmount,
		s.FinalAmount,
		s.DebtBefore,
		s.DebtAfter,
		negotiation,
		integrations,
		s.StartedAt,
		s.EndedAt,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call session: %w", err)
	}
	return nil
}

func propagateDebt(ctx context.Context, tx *sql.Tx, userID string, debtAfter float64) error {
	const q = `
UPDATE users
SET remaining_debt = $2, updated_at = NOW()
WHERE id = $1
`
	res, err := tx.ExecContext(ctx, q, userID, debtAfter)
	if err != nil {
		return fmt.Errorf("propagate debt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("propagate debt: user %s not found", userID)
	}
	return nil
}
