package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ent0n29/sofia/internal/config"
	"github.com/ent0n29/sofia/internal/reliability"
)

// Kind classifies why a handler could not produce a reply.
type Kind string

const (
	KindTransport Kind = "transport"
	KindAuth      Kind = "auth"
	KindNotFound  Kind = "not_found"
	KindConfig    Kind = "config"
	KindInternal  Kind = "internal"
)

// Failure is the error type returned by every handler.
type Failure struct {
	Kind Kind
	Op   string
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Fail wraps err as a Failure for op, deriving the kind from the cause.
// A nil err stays nil and an existing Failure is returned unchanged.
func Fail(op string, err error) error {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return err
	}
	return &Failure{Kind: classify(err), Op: op, Err: err}
}

// KindOf reports the failure kind of err. Errors that are not a Failure are
// internal.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}

func classify(err error) Kind {
	var se *reliability.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuth
		case http.StatusNotFound:
			return KindNotFound
		default:
			return KindTransport
		}
	}
	if errors.Is(err, config.ErrInvalidBundle) {
		return KindConfig
	}
	// Network errors and context expiry while waiting on a collaborator.
	return KindTransport
}

func missing(op, collaborator string) error {
	return &Failure{Kind: KindConfig, Op: op, Err: fmt.Errorf("%s is not configured", collaborator)}
}
