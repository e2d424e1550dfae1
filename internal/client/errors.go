package client

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
)

// FailureClass partitions generator-call failures for retry purposes.
type FailureClass int

const (
	// ClassTransient covers network-level failures (timeouts, refused
	// connections, 5xx); retried within the large network budget.
	ClassTransient FailureClass = iota
	// ClassDecode covers malformed response bodies; retried a small number
	// of times on the assumption of a transient server hiccup.
	ClassDecode
	// ClassNotReady covers a region response with valid=false: the content
	// is not generated yet and polling should continue.
	ClassNotReady
	// ClassFatal covers service-reported failures and anything else not
	// worth retrying.
	ClassFatal
)

func (c FailureClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassDecode:
		return "decode"
	case ClassNotReady:
		return "not_ready"
	default:
		return "fatal"
	}
}

var (
	// ErrServiceFailure means the generator reported FAILURE for the task.
	ErrServiceFailure = errors.New("generator reported failure")
	// ErrPollTimeout means the status poll budget was exhausted before a
	// terminal status was observed.
	ErrPollTimeout = errors.New("status polling exhausted retry budget")
	// ErrEmptyTaskID means the generator accepted a request without
	// returning a task id to poll.
	ErrEmptyTaskID = errors.New("generator returned empty task id")
)

// decodeError wraps a JSON decoding failure so it classifies as ClassDecode.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return fmt.Sprintf("decode response: %v", e.err) }
func (e *decodeError) Unwrap() error { return e.err }

// statusError is a non-2xx HTTP response from the generator.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("generator error (status %d): %s", e.code, e.body)
}

// notReadyError marks a valid=false region response.
type notReadyError struct {
	regionID uuid.UUID
}

func (e *notReadyError) Error() string {
	return fmt.Sprintf("region %s not ready", e.regionID)
}

// RegionUnavailableError is the per-region terminal failure after the
// region fetch budget is exhausted. It degrades the cycle (the region is
// dropped) rather than aborting it.
type RegionUnavailableError struct {
	RegionID uuid.UUID
	Err      error
}

func (e *RegionUnavailableError) Error() string {
	return fmt.Sprintf("region %s unavailable: %v", e.RegionID, e.Err)
}

func (e *RegionUnavailableError) Unwrap() error { return e.Err }

// Classify assigns a failure class to an error returned by a generator call.
func Classify(err error) FailureClass {
	if err == nil {
		return ClassFatal
	}

	var de *decodeError
	if errors.As(err, &de) {
		return ClassDecode
	}

	var nr *notReadyError
	if errors.As(err, &nr) {
		return ClassNotReady
	}

	if errors.Is(err, ErrServiceFailure) || errors.Is(err, context.Canceled) {
		return ClassFatal
	}

	var se *statusError
	if errors.As(err, &se) {
		if se.code >= 500 {
			return ClassTransient
		}
		return ClassFatal
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return ClassTransient
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return ClassTransient
	}
	// http.Client wraps transport errors in *url.Error which implements
	// net.Error, so anything left is unexpected; treat it as transient and
	// let the bounded budget decide.
	return ClassTransient
}
