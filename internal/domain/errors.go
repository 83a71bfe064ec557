package domain

import "errors"

var (
	// ErrOrderNotFound is returned when an order id does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrCustomerNotFound is returned when no customer has the phone.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInvalidStatus is returned for unknown or disallowed status values.
	ErrInvalidStatus = errors.New("invalid status")
)
