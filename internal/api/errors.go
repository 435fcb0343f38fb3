package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// User facing messages. Network and generic server failures share one text.
const (
	MsgCommunication = "communication error, try again"
	MsgInvalidInput  = "invalid input, check the highlighted fields"
	MsgUnauthorized  = "invalid credentials or session expired"
)

// NetworkError is a transport level failure: timeout, refused connection,
// DNS, TLS.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError carries per-field messages from the server (or from local
// validation). Message is the non-field text, when any.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Message == "" {
			return "validation failed"
		}
		return "validation failed: " + e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AuthError is a 401/403 answer: missing, expired or invalid token, or bad
// credentials at login.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d: unauthorized", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// StatusError is any other non-2xx answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, truncate(e.Body, 220))
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, statusCode int) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == statusCode
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.StatusCode == statusCode
	}
	return false
}

// FieldErrors returns per-field messages when err is a validation error
// that carries them.
func FieldErrors(err error) map[string]string {
	var vErr *ValidationError
	if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
		return vErr.Fields
	}
	return nil
}

// UserMessage collapses err into the single text shown to a user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		if vErr.Message != "" {
			return vErr.Message
		}
		return MsgInvalidInput
	}
	if IsAuth(err) {
		return MsgUnauthorized
	}
	return MsgCommunication
}

// errorEnvelope is the backend's normalized error body:
//
//	{"code": "VALIDATION_ERROR", "message": "...", "errors": {"field": "msg"}}
type errorEnvelope struct {
	Code    string                     `json:"code"`
	Message json.RawMessage            `json:"message"`
	Detail  json.RawMessage            `json:"detail"`
	Errors  map[string]json.RawMessage `json:"errors"`
}

// parseValidation decodes a 400 body. It understands the normalized
// envelope, raw DRF field maps ({"field": ["msg"]}) and plain lists.
func parseValidation(body []byte) *ValidationError {
	trimmed := strings.TrimSpace(string(body))
	out := &ValidationError{}
	if trimmed == "" {
		return out
	}

	if strings.HasPrefix(trimmed, "[") {
		out.Message = firstMessage(json.RawMessage(trimmed))
		return out
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		out.Message = truncate(trimmed, 220)
		return out
	}

	var env errorEnvelope
	_ = json.Unmarshal([]byte(trimmed), &env)
	if env.Code != "" || len(env.Errors) > 0 {
		out.Message = firstMessage(env.Message)
		if len(env.Errors) > 0 {
			out.Fields = fieldMessages(env.Errors)
		}
		return out
	}

	if d, ok := raw["detail"]; ok {
		out.Message = firstMessage(d)
		return out
	}

	if nf, ok := raw["non_field_errors"]; ok {
		out.Message = firstMessage(nf)
		delete(raw, "non_field_errors")
	}
	if len(raw) > 0 {
		out.Fields = fieldMessages(raw)
	}
	return out
}

func fieldMessages(raw map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if msg := firstMessage(v); msg != "" {
			out[k] = msg
		}
	}
	return out
}

// firstMessage reads a string or the first string of a list.
func firstMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

// authMessage pulls "detail" or "message" out of a 401/403 body.
func authMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if msg := firstMessage(env.Detail); msg != "" {
		return msg
	}
	return firstMessage(env.Message)
}

func truncate(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	return value[:max] + "…"
}
