package report

import (
	"errors"
	"fmt"
)

// ErrUserNotFound is returned when a report is requested for an unknown user.
var ErrUserNotFound = errors.New("user not found")

// DataAccessFault wraps a store failure (unreachable database, failed query).
type DataAccessFault struct {
	Op  string
	Err error
}

func (f *DataAccessFault) Error() string { return fmt.Sprintf("data access: %s: %v", f.Op, f.Err) }
func (f *DataAccessFault) Unwrap() error { return f.Err }

// RenderFault wraps a document construction failure.
type RenderFault struct {
	Err error
}

func (f *RenderFault) Error() string { return fmt.Sprintf("render report: %v", f.Err) }
func (f *RenderFault) Unwrap() error { return f.Err }

// DeliveryFault wraps an email transmission failure.
type DeliveryFault struct {
	Recipient string
	Err       error
}

func (f *DeliveryFault) Error() string {
	return fmt.Sprintf("deliver report to %s: %v", f.Recipient, f.Err)
}
func (f *DeliveryFault) Unwrap() error { return f.Err }

func dataFault(op string, err error) error {
	return &DataAccessFault{Op: op, Err: err}
}
