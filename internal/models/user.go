package models

import (
	"cmp"
	"strconv"
	"strings"
)

// User is an identity owned by the authentication layer.
// The ledger only ever references users by ID.
type User struct {
	// ID is the unique identifier for the user.
	ID string

	// Email is carried in session tokens for display purposes.
	Email string
}

// CompareUserIDs orders user IDs. Purely numeric IDs compare by value, so "2" sorts
// before "10", and sort before every non-numeric ID; the rest compare lexically.
func CompareUserIDs(a, b string) int {
	ai, aerr := strconv.ParseUint(a, 10, 64)
	bi, berr := strconv.ParseUint(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		if c := cmp.Compare(ai, bi); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return strings.Compare(a, b)
}
