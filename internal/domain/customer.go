package domain

import "time"

// Customer is a chat customer identified by phone number.
type Customer struct {
	Phone     string
	Name      string
	Address   string
	Zone      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerPatch upserts a customer. Empty fields leave stored values
// untouched.
type CustomerPatch struct {
	Phone   string
	Name    string
	Address string
	Zone    string
}
