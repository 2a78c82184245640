// Package errs defines the error taxonomy shared by the job model and the
// execution engine.
//
// Errors fall into four classes:
//   - Configuration: detected while building or validating a job, always
//     before execution starts.
//   - Execution: raised by one component while processing a row or while
//     finalizing its result. Collected, never thrown.
//   - Resource: failures acquiring or releasing the shared row source.
//   - Cancelled: the run was cancelled by its caller.
package errs

import (
	"errors"
	"fmt"
)

// Class represents the classification of an error for reporting purposes.
type Class int

const (
	// ClassConfiguration marks an invalid job, property or registration.
	ClassConfiguration Class = iota
	// ClassExecution marks a failure raised by component code at run time.
	ClassExecution
	// ClassResource marks a failure of a shared resource such as the row source.
	ClassResource
	// ClassCancelled marks a run that was stopped by its caller.
	ClassCancelled
)

// String returns the string representation of the Class.
func (c Class) String() string {
	switch c {
	case ClassConfiguration:
		return "configuration"
	case ClassExecution:
		return "execution"
	case ClassResource:
		return "resource"
	case ClassCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Sentinel errors for conditions callers commonly test with errors.Is.
var (
	ErrInvalidDescriptor   = errors.New("invalid descriptor")
	ErrInvalidProperty     = errors.New("invalid property value")
	ErrNotConfigured       = errors.New("component is not fully configured")
	ErrUnresolvedColumn    = errors.New("unresolved input column")
	ErrDanglingRequirement = errors.New("dangling requirement")
	ErrCyclicDependency    = errors.New("cyclic dependency")
	ErrNotDistributable    = errors.New("analyzer is not distributable")
	ErrUnknownComponent    = errors.New("unknown component")
	ErrCancelled           = errors.New("run cancelled")
	ErrResourceClosed      = errors.New("resource already closed")
)

// ClassifiedError wraps an error with its class and the identifier of the
// component (or descriptor, or resource) it is attributed to.
type ClassifiedError struct {
	Class     Class
	Component string
	Op        string
	Err       error
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	switch {
	case e.Component != "" && e.Op != "":
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Op, e.Err)
	case e.Component != "":
		return fmt.Sprintf("%s: %v", e.Component, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Err.Error()
	}
}

// Unwrap returns the underlying error.
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

func newClassified(class Class, component, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Class: class, Component: component, Op: op, Err: err}
}

// Configuration wraps err as a configuration error attributed to component.
func Configuration(component, op string, err error) error {
	return newClassified(ClassConfiguration, component, op, err)
}

// Execution wraps err as a component execution error.
func Execution(component, op string, err error) error {
	return newClassified(ClassExecution, component, op, err)
}

// Resource wraps err as a resource error.
func Resource(component, op string, err error) error {
	return newClassified(ClassResource, component, op, err)
}

// Cancelled wraps err as a cancellation. A nil err becomes ErrCancelled.
func Cancelled(op string, err error) error {
	if err == nil {
		err = ErrCancelled
	} else if !errors.Is(err, ErrCancelled) {
		err = fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return newClassified(ClassCancelled, "", op, err)
}

// ClassOf returns the class of the first ClassifiedError in err's chain.
// Unclassified errors report ClassExecution.
func ClassOf(err error) Class {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassExecution
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Class == ClassConfiguration
}

// IsResource reports whether err is a resource error.
func IsResource(err error) bool {
	var ce *ClassifiedError
	return errors.As(err, &ce) && ce.Class == ClassResource
}

// ComponentOf returns the component identifier the error is attributed to,
// or an empty string.
func ComponentOf(err error) string {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Component
	}
	return ""
}
