package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies every failure the pipeline can report.
type Kind string

const (
	KindInvalidAttachment  Kind = "invalid_attachment"
	KindEmptyResponse      Kind = "empty_response"
	KindMissingCredentials Kind = "missing_credentials"
	KindProviderRejected   Kind = "provider_rejected"
	KindMalformedResponse  Kind = "malformed_response"
	KindTimeout            Kind = "timeout"
	KindNetworkFailure     Kind = "network_failure"
	KindCancelled          Kind = "cancelled"
)

var (
	ErrInvalidAttachment  = &Error{Kind: KindInvalidAttachment, Message: "invalid attachment"}
	ErrEmptyResponse      = &Error{Kind: KindEmptyResponse, Message: "provider returned an empty response"}
	ErrMissingCredentials = &Error{Kind: KindMissingCredentials, Message: "provider credentials are missing"}
	ErrProviderRejected   = &Error{Kind: KindProviderRejected, Message: "provider rejected the request"}
	ErrMalformedResponse  = &Error{Kind: KindMalformedResponse, Message: "provider returned a malformed response"}
	ErrTimeout            = &Error{Kind: KindTimeout, Message: "provider call timed out"}
	ErrNetworkFailure     = &Error{Kind: KindNetworkFailure, Message: "network failure"}
	ErrCancelled          = &Error{Kind: KindCancelled, Message: "cancelled"}
)

// Error is the typed failure handed from a pipeline component to the orchestrator.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Errorf builds an Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any Error of the same kind, so errors.Is(err, ErrTimeout) works for
// every timeout regardless of message.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || other == nil || e == nil {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf reports the Kind carried by err. Context errors and network timeouts
// are classified even when they were not wrapped by a component.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) && de != nil {
		return de.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetworkFailure
	}
	return KindProviderRejected
}

// Classify converts err into an *Error, keeping an existing classification.
// parent is the caller's context: a cancellation there wins over whatever the
// transport reported.
func Classify(parent context.Context, err error, message string) *Error {
	if err == nil {
		return nil
	}
	if parent != nil && errors.Is(parent.Err(), context.Canceled) {
		return Wrap(KindCancelled, "cancelled", err)
	}
	var de *Error
	if errors.As(err, &de) && de != nil {
		return de
	}
	return Wrap(KindOf(err), message, err)
}

// Message returns a non-empty human readable message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "unknown error"
}
