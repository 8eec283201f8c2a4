package netsuite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrNotFound indicates the requested record does not exist in NetSuite.
var ErrNotFound = errors.New("netsuite: record not found")

// RemoteError is returned for non-2xx responses and transport failures.
type RemoteError struct {
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("netsuite: status %d: %s", e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// errorEnvelope is the RFC 9457 style body NetSuite returns on failures.
type errorEnvelope struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Status  int    `json:"status"`
	Details []struct {
		Detail string `json:"detail"`
		Code   string `json:"o:errorCode"`
	} `json:"o:errorDetails"`
}

func parseEnvelope(body []byte) (errorEnvelope, bool) {
	var env errorEnvelope
	if len(body) == 0 || json.Unmarshal(body, &env) != nil {
		return env, false
	}
	if env.Type == "" || (env.Title == "" && len(env.Details) == 0) {
		return env, false
	}
	return env, true
}

func (e errorEnvelope) notFound() bool {
	if e.Status == http.StatusNotFound {
		return true
	}
	for _, d := range e.Details {
		if strings.Contains(d.Code, "NONEXISTENT") {
			return true
		}
	}
	return false
}

func (e errorEnvelope) message() string {
	for _, d := range e.Details {
		if d.Detail != "" {
			return d.Detail
		}
	}
	return e.Title
}

// responseError classifies a failed response.
func responseError(status int, body []byte) error {
	env, ok := parseEnvelope(body)
	if status == http.StatusNotFound || (ok && env.notFound()) {
		return ErrNotFound
	}
	msg := http.StatusText(status)
	if ok && env.message() != "" {
		msg = env.message()
	}
	return &RemoteError{Status: status, Message: msg}
}

// transportError maps client-side failures onto RemoteError so callers only
// handle one remote failure type.
func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &RemoteError{Status: http.StatusGatewayTimeout, Message: "request timed out", Err: err}
	}
	return &RemoteError{Status: http.StatusBadGateway, Message: err.Error(), Err: err}
}

// Message extracts a caller-facing message from a gateway error.
func Message(err error) string {
	var remote *RemoteError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "record not found"
	case errors.As(err, &remote):
		return fmt.Sprintf("%s (status %d)", remote.Message, remote.Status)
	default:
		return err.Error()
	}
}
