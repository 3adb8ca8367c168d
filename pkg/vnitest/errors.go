package vnitest

import "fmt"

// InfraError represents an infrastructure-level error (connect, gather).
type InfraError struct {
	Op     string // "connect", "open"
	Device string // device name (or "" for testbed-level)
	Err    error
}

func (e *InfraError) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("vnicheck: %s %s: %v", e.Op, e.Device, e.Err)
	}
	return fmt.Sprintf("vnicheck: %s: %v", e.Op, e.Err)
}

func (e *InfraError) Unwrap() error {
	return e.Err
}
