// Package gwerrors maps the gateway's internal failure kinds onto the
// structured error text/codes surfaced to MCP clients, mirroring the
// teacher's internal/errors/mapper.go shape but grounded on this gateway's
// own sentinel errors (backendmgr's dispatch failures, gwhandlers' runtime
// registration refusals) instead of toolexec/run's.
package gwerrors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonwraymond/metatools-mcp/internal/backendmgr"
	"github.com/jonwraymond/metatools-mcp/internal/gwbackend"
	"github.com/jonwraymond/metatools-mcp/internal/gwhandlers"
)

// Code names one of the gateway's error kinds, conceptual per the design
// notes rather than a wire-protocol enum.
type Code string

const (
	CodeBackendUnavailable   Code = "backend_unavailable"
	CodeBackendStillStarting Code = "backend_still_starting"
	CodeBackendNotFound      Code = "backend_not_found"
	CodeRateLimited          Code = "rate_limited"
	CodeCallTimeout          Code = "call_timeout"
	CodeTransientTransport   Code = "transient_transport"
	CodeRegistrationDenied   Code = "registration_denied"
	CodeConfigInvalid        Code = "config_invalid"
	CodeCacheIncompatible    Code = "cache_incompatible"
	CodeToolNotFound         Code = "tool_not_found"
	CodeInternal             Code = "internal"
)

// ErrorObject is the structured error surfaced in a meta-tool's CallToolResult.
type ErrorObject struct {
	Code        Code   `json:"code"`
	Message     string `json:"message"`
	Backend     string `json:"backend,omitempty"`
	ResourceURI string `json:"resource_uri,omitempty"`
	Retryable   bool   `json:"retryable"`
}

// Map classifies err into an ErrorObject. backend is the name of the backend
// the failing call targeted, if any; it is echoed back and used to build the
// resource-URI hint for not-found/unavailable errors (SPEC_FULL §7).
func Map(err error, backend string) *ErrorObject {
	code := classify(err)
	obj := &ErrorObject{
		Code:      code,
		Message:   err.Error(),
		Backend:   backend,
		Retryable: isRetryable(code),
	}
	if backend != "" && (code == CodeBackendNotFound || code == CodeBackendUnavailable) {
		obj.ResourceURI = fmt.Sprintf("@metatools-mcp://backend/%s", backend)
	}
	return obj
}

func classify(err error) Code {
	switch {
	case errors.Is(err, backendmgr.ErrRateLimited), errors.Is(err, backendmgr.ErrConcurrencyLimited):
		return CodeRateLimited
	case errors.Is(err, backendmgr.ErrBackendStarting):
		return CodeBackendStillStarting
	case errors.Is(err, backendmgr.ErrBackendNotFound):
		return CodeBackendNotFound
	case errors.Is(err, backendmgr.ErrBackendUnavailable):
		return CodeBackendUnavailable
	case errors.Is(err, gwhandlers.ErrRegistrationDenied):
		return CodeRegistrationDenied
	case errors.Is(err, gwbackend.ErrToolNotFound):
		return CodeToolNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return CodeCallTimeout
	case errors.Is(err, context.Canceled):
		// A cancelled call was aborted by its own caller, not by a flaky
		// transport, so it does not belong in the transient/retryable bucket.
		return CodeInternal
	case isTransientTransportMessage(err.Error()):
		return CodeTransientTransport
	default:
		return CodeInternal
	}
}

// transientTransportFragments are the closed set of substrings (matched
// case-insensitively against an error's message) that mark a backend failure
// as a transient transport problem worth surfacing to the fallback logic,
// rather than a permanent misconfiguration.
var transientTransportFragments = []string{
	"connection refused",
	"timed out",
	"rate limit",
	"service unavailable",
	"network error",
}

func isTransientTransportMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, fragment := range transientTransportFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

func isRetryable(code Code) bool {
	switch code {
	case CodeRateLimited, CodeBackendStillStarting, CodeCallTimeout, CodeTransientTransport:
		return true
	default:
		return false
	}
}
