package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"collectvoice/internal/invoice"
	"collectvoice/internal/mailer"
	"collectvoice/internal/sessions"
	"collectvoice/internal/users"

	"github.com/gin-gonic/gin"
)

type memStore struct {
	saved []sessions.Session
}

func (m *memStore) SaveClosed(_ context.Context, s sessions.Session) error {
	m.saved = append(m.saved, s)
	return nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(_ context.Context, _ invoice.RenderRequest) (invoice.RenderResult, error) {
	return invoice.RenderResult{DocumentID: "doc-1", URL: "https://docs.example/doc-1", PDF: []byte("%PDF-1.4")}, nil
}

type fakeMailer struct{}

func (fakeMailer) SendInvoice(_ mailer.SendRequest) (string, error) {
	return "<msg-1@test>", nil
}

func newRouter(us []users.User) (*gin.Engine, *memStore) {
	gin.SetMode(gin.TestMode)
	svc := users.NewService(&users.MemoryRepo{Users: us}, nil)
	store := &memStore{}
	h := Handlers{
		Users:    svc,
		Recorder: sessions.NewRecorder(store, svc, fakeRenderer{}, fakeMailer{}, nil, slog.Default()),
	}
	r := gin.New()
	api := r.Group("/api/v1")
	api.GET("/users/:phone", h.GetUserByPhone)
	api.POST("/negotiate", h.Negotiate)
	api.POST("/call-result", h.RecordCallResult)
	return r, store
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body == "" {
		buf = bytes.NewBuffer(nil)
	} else {
		buf = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body: %v (%s)", err, w.Body.String())
	}
	return out
}

var fixtureUser = users.User{
	ID:            "u1",
	PhoneNumber:   "+15550001111",
	Name:          "Jordan Reyes",
	Email:         "jordan@example.com",
	TotalDebt:     8000,
	RemainingDebt: 5000,
}

func TestGetUserByPhone(t *testing.T) {
	r, _ := newRouter([]users.User{fixtureUser})

	w := doJSON(r, http.MethodGet, "/api/v1/users/+15550001111", "")
	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["user_id"] != "u1" || body["debt"] != float64(5000) {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestGetUserByPhone_NotFound(t *testing.T) {
	r, _ := newRouter(nil)

	w := doJSON(r, http.MethodGet, "/api/v1/users/+19990001111", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", w.Code)
	}
}

func TestNegotiate_FirstRound(t *testing.T) {
	r, _ := newRouter(nil)

	w := doJSON(r, http.MethodPost, "/api/v1/negotiate", `{"user_amounts":[],"agent_amounts":[],"user_amount":100,"user_debt":5000}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["status"] != "HAGGLE" || body["agent_amount"] != float64(180) {
		t.Fatalf("unexpected counter %+v", body)
	}
}

func TestNegotiate_AcceptsAtTarget(t *testing.T) {
	r, _ := newRouter(nil)

	// 150 >= 100*1.3 on the second round, so the offer is accepted outright.
	w := doJSON(r, http.MethodPost, "/api/v1/negotiate", `{"user_amounts":[100],"agent_amounts":[180],"user_amount":150,"user_debt":5000}`)
	body := decodeBody(t, w)
	if body["status"] != "STOP" || body["agent_amount"] != float64(150) {
		t.Fatalf("unexpected result %+v", body)
	}
}

func TestNegotiate_Validation(t *testing.T) {
	r, _ := newRouter(nil)

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"zero amount", `{"user_amount":0,"user_debt":100}`},
		{"negative debt", `{"user_amount":50,"user_debt":-1}`},
		{"uneven history", `{"user_amounts":[1],"agent_amounts":[],"user_amount":50,"user_debt":100}`},
		{"negative history", `{"user_amounts":[-1],"agent_amounts":[2],"user_amount":50,"user_debt":100}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := doJSON(r, http.MethodPost, "/api/v1/negotiate", tc.body); w.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want 400", w.Code)
			}
		})
	}
}

func TestRecordCallResult(t *testing.T) {
	r, store := newRouter([]users.User{fixtureUser})

	w := doJSON(r, http.MethodPost, "/api/v1/call-result", `{"user_id":"u1","status":"SUCCESS","initial_amount":100,"final_amount":150,"debt":5000,"user_amounts":[100,150],"agent_amounts":[180,150]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["status"] != "SUCCESS" || body["debt_left"] != float64(4850) {
		t.Fatalf("unexpected body %+v", body)
	}
	if body["email_sent"] != true || body["invoice_id"] != "doc-1" {
		t.Fatalf("invoice dispatch missing %+v", body)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one persisted session, got %d", len(store.saved))
	}
	if store.saved[0].Channel != sessions.ChannelAPI {
		t.Fatalf("unexpected channel %q", store.saved[0].Channel)
	}
}

func TestRecordCallResult_Validation(t *testing.T) {
	r, _ := newRouter([]users.User{fixtureUser})

	w := doJSON(r, http.MethodPost, "/api/v1/call-result", `{"user_id":"u1","status":"REFUSED","final_amount":50,"debt":5000}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestRecordCallResult_UnknownUser(t *testing.T) {
	r, _ := newRouter(nil)

	w := doJSON(r, http.MethodPost, "/api/v1/call-result", `{"user_id":"ghost","status":"SUCCESS","final_amount":100,"debt":100}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404: %s", w.Code, w.Body.String())
	}
}
