package mvc

import (
	"errors"
	"fmt"
)

var (
	ErrControllerCreation = errors.New("controller creation failed")
	ErrActionNotFound     = errors.New("action not found")
	ErrResultMissing      = errors.New("result missing")
	ErrResultExecution    = errors.New("result execution failed")

	ErrNoControllerFactory = errors.New("a controller factory must be given")
)

type ErrorKind int

const (
	KindControllerCreation ErrorKind = iota + 1
	KindActionNotFound
	KindResultMissing
	KindResultExecution
)

func (k ErrorKind) String() string {
	switch k {
	case KindControllerCreation:
		return "controller_creation"
	case KindActionNotFound:
		return "action_not_found"
	case KindResultMissing:
		return "result_missing"
	case KindResultExecution:
		return "result_execution"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindControllerCreation:
		return ErrControllerCreation
	case KindActionNotFound:
		return ErrActionNotFound
	case KindResultMissing:
		return ErrResultMissing
	case KindResultExecution:
		return ErrResultExecution
	default:
		return nil
	}
}

// DispatchError is what the dispatcher hands to the error channel when it fails on its own.
// errors.Is matches both the kind sentinel and the wrapped cause.
type DispatchError struct {
	Kind       ErrorKind
	Controller string
	Action     string
	Err        error
}

func (e *DispatchError) Error() string {
	var msg string
	switch e.Kind {
	case KindControllerCreation:
		msg = fmt.Sprintf("Unable to create controller %q", e.Controller)
	case KindActionNotFound:
		msg = fmt.Sprintf("Unable to find action method %q on controller %q", e.Action, e.Controller)
	case KindResultMissing:
		msg = fmt.Sprintf("Action \"%s.%s\" does not return a result object", e.Controller, e.Action)
	case KindResultExecution:
		msg = fmt.Sprintf("Action \"%s.%s\" failed to execute its result", e.Controller, e.Action)
	default:
		msg = "dispatch failed"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *DispatchError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newDispatchError(kind ErrorKind, controller, action string, cause error) *DispatchError {
	return &DispatchError{Kind: kind, Controller: controller, Action: action, Err: cause}
}
