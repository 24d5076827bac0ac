package storeclient

import (
	"fmt"
)

// StoreError is a non-success HTTP response from the record store.
type StoreError struct {
	Op     string
	Status int
	Body   string
}

func (e *StoreError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: record store returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: record store returned %d: %s", e.Op, e.Status, e.Body)
}

// TransportError means no usable response arrived: the request failed on
// the wire or the body could not be decoded.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
