// Package types holds the value types shared between the stream parser, the
// prompt generator and the result manager. Everything here is plain data;
// behaviour lives in the packages that produce or consume these values.
package types

import (
	"encoding/json"
	"errors"
)

// CallKind identifies which envelope kind produced a record.
type CallKind string

const (
	// KindTool marks records extracted from <mfcs_call> envelopes.
	KindTool CallKind = "tool"
	// KindMemory marks records extracted from <mfcs_memory> envelopes.
	KindMemory CallKind = "memory"
)

// CallRecord is a single structured invocation extracted from model output.
//
// ID carries whatever the model wrote into <call_id> (or <memory_id>); it is
// caller-supplied text and is not guaranteed unique across a stream. Records
// are immutable once returned by the parser.
type CallRecord struct {
	Kind         CallKind `json:"kind"`
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Instructions string   `json:"instructions,omitempty"`
	// Parameters is the decoded payload. On decode failure it is an empty
	// (non-nil) map and DecodeError is set; RawParameters always keeps the
	// verbatim payload text.
	Parameters    map[string]any `json:"parameters"`
	RawParameters string         `json:"raw_parameters,omitempty"`
	DecodeError   error          `json:"decode_error,omitempty"`
	// Incomplete is set only on partial records attached to diagnostics for
	// envelopes still open at end of stream. Incomplete records never appear
	// in a result's call list.
	Incomplete bool `json:"incomplete,omitempty"`
}

// Clone returns a deep copy so callers can hold records without aliasing the
// parameter map.
func (r CallRecord) Clone() CallRecord {
	cp := r
	if r.Parameters != nil {
		cp.Parameters = cloneValue(r.Parameters).(map[string]any)
	}
	return cp
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON customizes CallRecord encoding to support the error interface.
func (r CallRecord) MarshalJSON() ([]byte, error) {
	type Alias struct {
		Kind          CallKind       `json:"kind"`
		ID            string         `json:"id"`
		Name          string         `json:"name"`
		Instructions  string         `json:"instructions,omitempty"`
		Parameters    map[string]any `json:"parameters"`
		RawParameters string         `json:"raw_parameters,omitempty"`
		DecodeError   any            `json:"decode_error,omitempty"`
		Incomplete    bool           `json:"incomplete,omitempty"`
	}

	alias := Alias{
		Kind:          r.Kind,
		ID:            r.ID,
		Name:          r.Name,
		Instructions:  r.Instructions,
		Parameters:    r.Parameters,
		RawParameters: r.RawParameters,
		Incomplete:    r.Incomplete,
	}
	if r.DecodeError != nil {
		alias.DecodeError = r.DecodeError.Error()
	}
	return json.Marshal(alias)
}

// UnmarshalJSON accepts the string form of decode_error produced by MarshalJSON.
func (r *CallRecord) UnmarshalJSON(data []byte) error {
	type Alias struct {
		Kind          CallKind       `json:"kind"`
		ID            string         `json:"id"`
		Name          string         `json:"name"`
		Instructions  string         `json:"instructions,omitempty"`
		Parameters    map[string]any `json:"parameters"`
		RawParameters string         `json:"raw_parameters,omitempty"`
		DecodeError   string         `json:"decode_error,omitempty"`
		Incomplete    bool           `json:"incomplete,omitempty"`
	}

	var alias Alias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	r.Kind = alias.Kind
	r.ID = alias.ID
	r.Name = alias.Name
	r.Instructions = alias.Instructions
	r.Parameters = alias.Parameters
	r.RawParameters = alias.RawParameters
	r.Incomplete = alias.Incomplete
	if alias.DecodeError != "" {
		r.DecodeError = errors.New(alias.DecodeError)
	} else {
		r.DecodeError = nil
	}
	return nil
}

// DiagnosticCode classifies non-fatal parse findings.
type DiagnosticCode string

const (
	// DiagStructuralIncomplete reports an envelope still open at end of stream.
	DiagStructuralIncomplete DiagnosticCode = "structural_incomplete"
	// DiagPayloadDecode reports a parameters payload that stayed undecodable
	// after repair.
	DiagPayloadDecode DiagnosticCode = "payload_decode"
	// DiagEnvelopeOverflow reports an envelope abandoned after exceeding the
	// open-call byte limit.
	DiagEnvelopeOverflow DiagnosticCode = "envelope_overflow"
)

// Diagnostic is a non-fatal finding reported alongside parse results. Record
// is populated for codes that concern a specific call.
type Diagnostic struct {
	Code    DiagnosticCode `json:"code"`
	Message string         `json:"message"`
	Record  *CallRecord    `json:"record,omitempty"`
}

// FunctionSchema describes one callable function for prompt generation.
// Parameters is a JSON-Schema-shaped object ({"type":"object","properties":...}).
type FunctionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Required    []string       `json:"required,omitempty"`
}

// Validate reports whether the schema can be rendered into a prompt.
func (s FunctionSchema) Validate() error {
	if s.Name == "" {
		return errors.New("function schema missing name")
	}
	return nil
}
