package order

import (
	"fmt"
	"slices"
)

// Status is the lifecycle state of an order. The string value is used in
// storage and on the wire.
type Status string

const (
	StatusCreated            Status = "created"
	StatusPrepaymentReceived Status = "prepayment_received"
	StatusInProduction       Status = "in_production"
	StatusReady              Status = "ready"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusCreated,
	StatusPrepaymentReceived,
	StatusInProduction,
	StatusReady,
	StatusCompleted,
	StatusCancelled,
}

// ParseStatus converts a stored or client-supplied code into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusPrepaymentReceived, StatusInProduction,
		StatusReady, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) String() string {
	return string(s)
}

// forward is the step-by-step transition table.
var forward = map[Status][]Status{
	StatusCreated:            {StatusPrepaymentReceived, StatusInProduction, StatusCancelled},
	StatusPrepaymentReceived: {StatusInProduction, StatusCancelled},
	StatusInProduction:       {StatusReady, StatusCancelled},
	StatusReady:              {StatusCompleted, StatusCancelled},
}

// Policy decides which transitions between non-terminal statuses are legal.
type Policy int

const (
	// Lenient lets any non-terminal order move to any status other than
	// created, including skipping intermediate steps.
	Lenient Policy = iota
	// Strict only allows the moves listed in the transition table.
	Strict
)

// Check validates moving an order from one status to another.
func (p Policy) Check(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, string(to))
	}
	if from.Terminal() || to == StatusCreated {
		return &InvalidTransitionError{From: from, To: to}
	}
	if p == Strict && !slices.Contains(forward[from], to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
