package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"
)

// Kind classifies a failed outbound call.
type Kind string

const (
	KindUnauthorized       Kind = "unauthorized"
	KindRateLimited        Kind = "rate_limited"
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindContentTooLarge    Kind = "content_too_large"
	KindServiceUnavailable Kind = "service_unavailable"
	KindNetwork            Kind = "network"
)

// ClassifiedError is the error shape shared by every outbound client.
// Each client fills it from its own status and body heuristics.
type ClassifiedError struct {
	Service    string
	Kind       Kind
	StatusCode int
	Resource   string
	Message    string

	// RetryAfter and ResetAt are only meaningful for KindRateLimited.
	RetryAfter time.Duration
	ResetAt    time.Time

	Err error
}

func (e *ClassifiedError) Error() string {
	var b strings.Builder
	b.WriteString(e.Service)
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, " %s", e.Resource)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient.
func (e *ClassifiedError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindServiceUnavailable, KindNetwork:
		return true
	}
	return false
}

// Wait returns how long the server asked us to back off, or zero.
func (e *ClassifiedError) Wait(now time.Time) time.Duration {
	if e.Kind != KindRateLimited {
		return 0
	}
	if e.RetryAfter > 0 {
		return e.RetryAfter
	}
	if !e.ResetAt.IsZero() {
		if d := e.ResetAt.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// IsKind reports whether err is a ClassifiedError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Kind == kind
}

func asClassified(err error) (*ClassifiedError, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

const maxMessageBytes = 500

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ClassifyStatus maps an HTTP status and response body onto the shared taxonomy.
// Clients call it and then adjust the result for provider quirks.
func ClassifyStatus(service string, status int, body []byte, header http.Header) *ClassifiedError {
	msg := truncate(strings.TrimSpace(string(body)), maxMessageBytes)
	ce := &ClassifiedError{Service: service, StatusCode: status, Message: msg}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		ce.Kind = KindUnauthorized
	case status == http.StatusTooManyRequests:
		ce.Kind = KindRateLimited
		ce.RetryAfter = ParseRetryAfter(header)
	case status == http.StatusNotFound:
		ce.Kind = KindNotFound
	case status == http.StatusRequestEntityTooLarge:
		ce.Kind = KindContentTooLarge
	case status == http.StatusBadRequest:
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "token") || strings.Contains(lower, "length") {
			ce.Kind = KindContentTooLarge
		} else {
			ce.Kind = KindValidation
		}
	case status >= 500:
		ce.Kind = KindServiceUnavailable
	default:
		ce.Kind = KindValidation
	}
	return ce
}

// ClassifyTransport wraps an error that happened before any HTTP status was received.
func ClassifyTransport(service string, err error) *ClassifiedError {
	return &ClassifiedError{Service: service, Kind: KindNetwork, Err: err}
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func ParseRetryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// IsRetryable is the default retry predicate: network-level failures,
// 5xx, 429, connection resets and timeouts.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Retryable()
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
