// internal/model/customer.go
package model

import "time"

type Customer struct {
	ID        int64      `db:"id" json:"id"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name" json:"last_name"`
	Email     string     `db:"email" json:"email"`
	Phone     string     `db:"phone" json:"phone"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

func (c Customer) DisplayName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	}
	return c.LastName
}

// CustomerContact is one row of the resolver query: a customer joined with
// their preference row, if any.
type CustomerContact struct {
	Customer   Customer
	Preference *Preference
}
