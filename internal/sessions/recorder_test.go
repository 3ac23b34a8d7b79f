package sessions

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"collectvoice/internal/invoice"
	"collectvoice/internal/mailer"
	"collectvoice/internal/users"
)

// memStore emulates the transactional write: it records the session and
// applies debt propagation for paid outcomes.
type memStore struct {
	saved []Session
	debts map[string]float64
	fail  error
}

func (s *memStore) SaveClosed(ctx context.Context, sess Session) error {
	_ = ctx
	if s.fail != nil {
		return s.fail
	}
	s.saved = append(s.saved, sess)
	if sess.Outcome.Paid() {
		if s.debts == nil {
			s.debts = map[string]float64{}
		}
		s.debts[sess.UserID] = sess.DebtAfter
	}
	return nil
}

type fakeRenderer struct {
	calls int
	err   error
}

func (f *fakeRenderer) Render(ctx context.Context, req invoice.RenderRequest) (invoice.RenderResult, error) {
	_ = ctx
	f.calls++
	if f.err != nil {
		return invoice.RenderResult{}, f.err
	}
	return invoice.RenderResult{
		DocumentID: "doc-1",
		URL:        "https://docs.example.com/doc-1.pdf",
		PDF:        []byte("%PDF-1.4"),
	}, nil
}

type fakeMailer struct {
	calls int
	err   error
}

func (f *fakeMailer) SendInvoice(req mailer.SendRequest) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "<msg-1@collectvoice>", nil
}

type recorderFixture struct {
	recorder *Recorder
	store    *memStore
	renderer *fakeRenderer
	mailer   *fakeMailer
}

func newFixture(us ...users.User) recorderFixture {
	store := &memStore{}
	renderer := &fakeRenderer{}
	mail := &fakeMailer{}
	rec := NewRecorder(
		store,
		users.NewService(&users.MemoryRepo{Users: us}, nil),
		renderer,
		mail,
		nil,
		slog.Default(),
	)
	rec.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return recorderFixture{recorder: rec, store: store, renderer: renderer, mailer: mail}
}

func debtor(email string) users.User {
	return users.User{
		ID:            "u-1",
		PhoneNumber:   "+15550001111",
		Name:          "Jamie Doe",
		Email:         email,
		TotalDebt:     5000,
		RemainingDebt: 5000,
	}
}

func TestRecord_SuccessRoundTrip(t *testing.T) {
	f := newFixture(debtor("jamie@example.com"))

	res, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID:        "u-1",
		Outcome:       OutcomeSuccess,
		InitialAmount: 100,
		FinalAmount:   150,
		Debt:          5000,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if res.DebtLeft != 4850 {
		t.Fatalf("expected debt_left 4850, got %v", res.DebtLeft)
	}
	if got := f.store.debts["u-1"]; got != 4850 {
		t.Fatalf("expected propagated debt 4850, got %v", got)
	}
	if !res.EmailSent || res.InvoiceID != "doc-1" || res.InvoiceURL == "" {
		t.Fatalf("unexpected integration result %+v", res)
	}
	if res.SessionID == "" {
		t.Fatalf("expected session id")
	}

	sess := f.store.saved[0]
	if sess.Integrations.Invoice.Status != StepSuccess || sess.Integrations.Email.Status != StepSuccess {
		t.Fatalf("unexpected integrations %+v", sess.Integrations)
	}
	if sess.Integrations.CRM.Status != StepPending {
		t.Fatalf("crm slot should stay pending, got %+v", sess.Integrations.CRM)
	}
	if sess.EndedAt == nil {
		t.Fatalf("session must be created closed")
	}
	if sess.DebtBefore != 5000 || sess.DebtAfter != 4850 {
		t.Fatalf("unexpected debt figures %+v", sess)
	}
}

func TestRecord_RefusedLeavesDebtUntouched(t *testing.T) {
	f := newFixture(debtor("jamie@example.com"))

	res, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID:        "u-1",
		Outcome:       OutcomeRefused,
		InitialAmount: 100,
		FinalAmount:   0,
		Debt:          5000,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if res.DebtLeft != 5000 {
		t.Fatalf("expected debt unchanged, got %v", res.DebtLeft)
	}
	if _, touched := f.store.debts["u-1"]; touched {
		t.Fatalf("REFUSED must not propagate debt")
	}
	if f.renderer.calls != 0 || f.mailer.calls != 0 {
		t.Fatalf("REFUSED must not dispatch integrations")
	}

	integ := f.store.saved[0].Integrations
	if integ.Invoice.Status != StepPending || integ.Email.Status != StepPending {
		t.Fatalf("expected pending integrations, got %+v", integ)
	}
}

func TestRecord_NoEmailSkipsDispatch(t *testing.T) {
	f := newFixture(debtor(""))

	res, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID:      "u-1",
		Outcome:     OutcomePartial,
		FinalAmount: 200,
		Debt:        5000,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if f.renderer.calls != 0 || f.mailer.calls != 0 {
		t.Fatalf("dispatch must be skipped without an email on file")
	}
	integ := f.store.saved[0].Integrations
	if integ.Invoice.Status != StepPending || integ.Email.Status != StepPending {
		t.Fatalf("expected pending integrations, got %+v", integ)
	}
	if res.EmailSent {
		t.Fatalf("email_sent must be false")
	}
	if res.DebtLeft != 4800 {
		t.Fatalf("expected debt_left 4800, got %v", res.DebtLeft)
	}
}

func TestRecord_RenderFailureIsRecordedNotFatal(t *testing.T) {
	f := newFixture(debtor("jamie@example.com"))
	f.renderer.err = errors.New("template not found")

	res, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID:      "u-1",
		Outcome:     OutcomeSuccess,
		FinalAmount: 150,
		Debt:        5000,
	})
	if err != nil {
		t.Fatalf("record must succeed despite render failure, got %v", err)
	}

	integ := f.store.saved[0].Integrations
	if integ.Invoice.Status != StepFailed || integ.Invoice.Error == "" {
		t.Fatalf("expected failed invoice slot, got %+v", integ.Invoice)
	}
	// Nothing to attach, so the email step is never attempted.
	if integ.Email.Status != StepPending || f.mailer.calls != 0 {
		t.Fatalf("expected pending email slot, got %+v", integ.Email)
	}
	if res.InvoiceID != "" || res.EmailSent {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.DebtLeft != 4850 {
		t.Fatalf("debt must still be updated, got %v", res.DebtLeft)
	}
}

func TestRecord_EmailFailureIsRecordedNotFatal(t *testing.T) {
	f := newFixture(debtor("jamie@example.com"))
	f.mailer.err = errors.New("relay refused connection")

	res, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID:      "u-1",
		Outcome:     OutcomeSuccess,
		FinalAmount: 150,
		Debt:        5000,
	})
	if err != nil {
		t.Fatalf("record must succeed despite email failure, got %v", err)
	}

	integ := f.store.saved[0].Integrations
	if integ.Invoice.Status != StepSuccess {
		t.Fatalf("invoice should have succeeded, got %+v", integ.Invoice)
	}
	if integ.Email.Status != StepFailed || integ.Email.Error == "" {
		t.Fatalf("expected failed email slot, got %+v", integ.Email)
	}
	if res.EmailSent {
		t.Fatalf("email_sent must be false")
	}
	if res.InvoiceID != "doc-1" {
		t.Fatalf("invoice id should still be returned, got %q", res.InvoiceID)
	}
}

func TestRecord_FinalAmountExceedingDebtFloorsAtZero(t *testing.T) {
	f := newFixture(debtor(""))

	res, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID:      "u-1",
		Outcome:     OutcomeSuccess,
		FinalAmount: 6000,
		Debt:        5000,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.DebtLeft != 0 {
		t.Fatalf("expected debt floored at 0, got %v", res.DebtLeft)
	}
}

func TestRecord_UnknownUser(t *testing.T) {
	f := newFixture()

	_, err := f.recorder.Record(context.Background(), RecordRequest{
		UserID:      "missing",
		Outcome:     OutcomeSuccess,
		FinalAmount: 150,
		Debt:        5000,
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRecord_Validation(t *testing.T) {
	f := newFixture(debtor(""))

	cases := []RecordRequest{
		{Outcome: OutcomeSuccess, FinalAmount: 1},                                  // missing user id
		{UserID: "u-1", Outcome: "MAYBE", FinalAmount: 1},                          // bad outcome
		{UserID: "u-1", Outcome: OutcomeSuccess, FinalAmount: -5, Debt: 10},        // negative amount
		{UserID: "u-1", Outcome: OutcomeRefused, FinalAmount: 10, Debt: 10},        // refusal with payment
		{UserID: "u-1", Outcome: OutcomeSuccess, FinalAmount: 0, Debt: 10},         // payment without amount
		{UserID: "u-1", Outcome: OutcomeSuccess, FinalAmount: 1, Channel: "phone"}, // bad channel
	}
	for i, req := range cases {
		if _, err := f.recorder.Record(context.Background(), req); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("case %d: expected ErrInvalidArgument, got %v", i, err)
		}
	}
}

func TestDebtAfter(t *testing.T) {
	if got := DebtAfter(OutcomeSuccess, 5000, 150); got != 4850 {
		t.Fatalf("SUCCESS: expected 4850, got %v", got)
	}
	if got := DebtAfter(OutcomePartial, 5000, 150); got != 4850 {
		t.Fatalf("PARTIAL: expected 4850, got %v", got)
	}
	if got := DebtAfter(OutcomeRefused, 5000, 0); got != 5000 {
		t.Fatalf("REFUSED: expected 5000, got %v", got)
	}
	if got := DebtAfter(OutcomeSuccess, 100, 150); got != 0 {
		t.Fatalf("overpayment: expected 0, got %v", got)
	}
}
