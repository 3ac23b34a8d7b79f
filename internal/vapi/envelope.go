package vapi

import (
	"encoding/json"
	"fmt"
)

// The voice platform invokes this backend through its function-calling
// convention: every request wraps one function call, every response is a
// list of named results.
//
// Inbound:  {"message": {"functionCall": {"name": ..., "parameters": {...}}}}
// Outbound: {"results": [{"name": ..., "result": ...} | {"name": ..., "error": ...}]}

const (
	FnGetUserInfo = "get_user_info"
	FnNegotiate   = "negotiate_offer"
	FnSaveResult  = "save_call_result"
)

type Envelope struct {
	Message Message `json:"message"`
}

type Message struct {
	FunctionCall FunctionCall `json:"functionCall"`
}

type FunctionCall struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
}

// Call is the decoded function call: exactly one of the pointer fields is set,
// matching Name. Unknown names decode to an UnknownFunctionError instead.
type Call struct {
	Name string

	GetUserInfo *GetUserInfoParams
	Negotiate   *NegotiateParams
	SaveResult  *SaveResultParams
}

type GetUserInfoParams struct {
	PhoneNumber string `json:"phone_number"`
}

type NegotiateParams struct {
	UserAmounts  []float64 `json:"user_amounts"`
	AgentAmounts []float64 `json:"agent_amounts"`
	UserAmount   float64   `json:"user_amount"`
	UserDebt     float64   `json:"user_debt"`
}

type SaveResultParams struct {
	UserID        string    `json:"user_id"`
	Status        string    `json:"status"`
	InitialAmount float64   `json:"initial_amount"`
	FinalAmount   float64   `json:"final_amount"`
	Debt          float64   `json:"debt"`
	SessionID     string    `json:"session_id"`
	UserAmounts   []float64 `json:"user_amounts"`
	AgentAmounts  []float64 `json:"agent_amounts"`
}

// UnknownFunctionError reports a function name this backend does not serve.
type UnknownFunctionError struct {
	Name string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("unknown function %q", e.Name)
}

// DecodeCall parses the webhook envelope into the tagged union.
func DecodeCall(body []byte) (Call, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Call{}, fmt.Errorf("decode envelope: %w", err)
	}

	fc := env.Message.FunctionCall
	if fc.Name == "" {
		return Call{}, fmt.Errorf("functionCall.name is required")
	}

	call := Call{Name: fc.Name}
	params := fc.Parameters
	if len(params) == 0 {
		params = []byte("{}")
	}

	switch fc.Name {
	case FnGetUserInfo:
		var p GetUserInfoParams
		if err := json.Unmarshal(params, &p); err != nil {
			return Call{}, fmt.Errorf("decode %s parameters: %w", fc.Name, err)
		}
		call.GetUserInfo = &p
	case FnNegotiate:
		var p NegotiateParams
		if err := json.Unmarshal(params, &p); err != nil {
			return Call{}, fmt.Errorf("decode %s parameters: %w", fc.Name, err)
		}
		call.Negotiate = &p
	case FnSaveResult:
		var p SaveResultParams
		if err := json.Unmarshal(params, &p); err != nil {
			return Call{}, fmt.Errorf("decode %s parameters: %w", fc.Name, err)
		}
		call.SaveResult = &p
	default:
		return Call{}, &UnknownFunctionError{Name: fc.Name}
	}
	return call, nil
}

type FunctionResult struct {
	Name   string `json:"name"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Response struct {
	Results []FunctionResult `json:"results"`
}

// OK wraps a successful function result.
func OK(name string, result any) Response {
	return Response{Results: []FunctionResult{{Name: name, Result: result}}}
}

// Fail wraps a failed function result. The envelope still travels with
// HTTP 200; the voice platform reads the error slot.
func Fail(name, msg string) Response {
	return Response{Results: []FunctionResult{{Name: name, Error: msg}}}
}
