// Package provider implements the HTTP boundary to the remote compute
// provider that executes image-processing workflows.
//
// The provider is an opaque black box reachable only over HTTPS. This
// package owns the wire shapes, the error taxonomy, and a typed client;
// orchestration policy (retries, polling, normalization) lives in the
// packages that consume it.
package provider

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FieldOverride patches a single field of a stored workflow node.
//
// All three fields are strings on the wire even when the caller supplies
// a number or boolean; the provider rejects non-string typed fields.
// This is a hard contract, not a convenience.
type FieldOverride struct {
	NodeID     string `json:"nodeId"`
	FieldName  string `json:"fieldName"`
	FieldValue string `json:"fieldValue"`
}

// NewFieldOverride builds an override, coercing value to its string form.
func NewFieldOverride(nodeID, fieldName string, value any) FieldOverride {
	return FieldOverride{
		NodeID:     nodeID,
		FieldName:  fieldName,
		FieldValue: CoerceString(value),
	}
}

// CoerceString renders a scalar as the provider's required string form.
// Floats that carry an integer value render without a decimal point so
// JSON 42 and 42.0 both become "42".
func CoerceString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return CoerceString(float64(v))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// UnmarshalJSON accepts fieldValue as any JSON scalar and coerces it to a
// string, so upstream callers can pass numbers and booleans verbatim.
func (o *FieldOverride) UnmarshalJSON(data []byte) error {
	var raw struct {
		NodeID     string          `json:"nodeId"`
		FieldName  string          `json:"fieldName"`
		FieldValue json.RawMessage `json:"fieldValue"`
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	o.NodeID = raw.NodeID
	o.FieldName = raw.FieldName
	if len(raw.FieldValue) == 0 {
		o.FieldValue = ""
		return nil
	}
	var v any
	valDec := json.NewDecoder(strings.NewReader(string(raw.FieldValue)))
	valDec.UseNumber()
	if err := valDec.Decode(&v); err != nil {
		return err
	}
	o.FieldValue = CoerceString(v)
	return nil
}

// NodeDiagnostic is one compile-time validation finding the provider
// embeds in a submission response when the stored workflow is broken.
type NodeDiagnostic struct {
	NodeID  string `json:"nodeId"`
	Class   string `json:"class,omitempty"`
	Message string `json:"message"`
}

func (d NodeDiagnostic) String() string {
	if d.NodeID == "" {
		return d.Message
	}
	return fmt.Sprintf("node %s: %s", d.NodeID, d.Message)
}

// SubmitResult is the provider's answer to an accepted submission.
//
// Diagnostics may be non-empty on a 2xx response; the submitter treats
// that as terminal (see DiagnosticsError).
type SubmitResult struct {
	TaskID      string
	RawStatus   string
	Diagnostics []NodeDiagnostic
}

// envelope is the provider's uniform response wrapper.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// submitData is the payload of a submit response.
type submitData struct {
	TaskID      string           `json:"taskId"`
	TaskStatus  string           `json:"taskStatus"`
	Diagnostics []NodeDiagnostic `json:"promptTips,omitempty"`
}

// statusData is the payload of a status query response.
type statusData struct {
	TaskStatus string `json:"taskStatus"`
	Progress   *int   `json:"progress,omitempty"`
}

// StatusResult carries the raw provider status vocabulary plus the
// best-effort progress figure, when the provider reports one.
type StatusResult struct {
	RawStatus string
	Progress  *int
}

// uploadData is the payload of a direct-upload response.
type uploadData struct {
	FileName string `json:"fileName"`
}

// Provider business codes carried in the envelope. Anything else nonzero
// is surfaced verbatim.
const (
	codeOK              = 0
	codeTaskNotFound    = 404
	codeInvalidAPIKey   = 301
	codeWorkflowInvalid = 421
	codeQueueBusy       = 433
)

// classifyCode maps an envelope business code onto the sentinel taxonomy.
func classifyCode(code int, msg string) error {
	switch code {
	case codeOK:
		return nil
	case codeTaskNotFound:
		return ErrTaskNotFound
	case codeInvalidAPIKey:
		return ErrInvalidCredentials
	case codeWorkflowInvalid:
		return ErrInvalidWorkflow
	case codeQueueBusy:
		return ErrThrottled
	default:
		return fmt.Errorf("provider code %d: %s", code, msg)
	}
}
