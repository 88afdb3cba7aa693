// Package errs holds the error taxonomy shared by the model build and solve steps.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a build or solve failure.
type Kind int

const (
	InvalidParameter Kind = iota + 1
	CarrierMismatch
	MissingSlack
	ModelBuildError
	AlreadyBuilt
	SolverFailure
)

var kindNames = map[Kind]string{
	InvalidParameter: "invalid parameter",
	CarrierMismatch:  "carrier mismatch",
	MissingSlack:     "missing slack",
	ModelBuildError:  "model build error",
	AlreadyBuilt:     "already built",
	SolverFailure:    "solver failure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is matching against an *Error of the same Kind.
var (
	ErrInvalidParameter = &Error{Kind: InvalidParameter, Timestep: NoTimestep}
	ErrCarrierMismatch  = &Error{Kind: CarrierMismatch, Timestep: NoTimestep}
	ErrMissingSlack     = &Error{Kind: MissingSlack, Timestep: NoTimestep}
	ErrModelBuild       = &Error{Kind: ModelBuildError, Timestep: NoTimestep}
	ErrAlreadyBuilt     = &Error{Kind: AlreadyBuilt, Timestep: NoTimestep}
	ErrSolverFailure    = &Error{Kind: SolverFailure, Timestep: NoTimestep}
)

// NoTimestep marks an Error that is not tied to a timestep.
const NoTimestep = -1

// Error is a terminal failure carrying enough context to locate the faulty input.
// Timestep is NoTimestep unless the failure belongs to one timestep.
type Error struct {
	Kind     Kind
	Unit     string
	Bus      string
	Field    string
	Timestep int
	Status   string // solver status, SolverFailure only
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Unit != "" {
		fmt.Fprintf(&b, " unit=%q", e.Unit)
	}
	if e.Bus != "" {
		fmt.Fprintf(&b, " bus=%q", e.Bus)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%q", e.Field)
	}
	if e.Timestep >= 0 {
		fmt.Fprintf(&b, " t=%d", e.Timestep)
	}
	if e.Status != "" {
		fmt.Fprintf(&b, " status=%s", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so callers can compare against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Invalid returns an InvalidParameter error for the named unit field.
func Invalid(unit, field string, format string, args ...interface{}) *Error {
	return &Error{
		Kind:     InvalidParameter,
		Unit:     unit,
		Field:    field,
		Timestep: NoTimestep,
		Err:      fmt.Errorf(format, args...),
	}
}

// Mismatch returns a CarrierMismatch error for a unit attached to an incompatible bus.
func Mismatch(unit, bus string, format string, args ...interface{}) *Error {
	return &Error{
		Kind:     CarrierMismatch,
		Unit:     unit,
		Bus:      bus,
		Timestep: NoTimestep,
		Err:      fmt.Errorf(format, args...),
	}
}

// Build wraps err as a ModelBuildError unless it already carries a Kind.
func Build(unit, bus string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		if e.Unit == "" {
			e.Unit = unit
		}
		if e.Bus == "" {
			e.Bus = bus
		}
		return e
	}
	return &Error{
		Kind:     ModelBuildError,
		Unit:     unit,
		Bus:      bus,
		Timestep: NoTimestep,
		Err:      err,
	}
}

// Solver reports a solver-side failure verbatim.
func Solver(status string, err error) *Error {
	return &Error{
		Kind:     SolverFailure,
		Status:   status,
		Timestep: NoTimestep,
		Err:      err,
	}
}

// Slack returns a MissingSlack error for a bus without an excess outlet.
func Slack(bus string) *Error {
	return &Error{
		Kind:     MissingSlack,
		Bus:      bus,
		Timestep: NoTimestep,
		Err:      errors.New("bus has no excess sink attached"),
	}
}

// Built returns an AlreadyBuilt error.
func Built() *Error {
	return &Error{
		Kind:     AlreadyBuilt,
		Timestep: NoTimestep,
		Err:      errors.New("model has already been built"),
	}
}
