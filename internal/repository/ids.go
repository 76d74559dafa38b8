package repository

import "github.com/google/uuid"

// malformedID reports whether id can never match a UUID primary key. Lookups
// short-circuit on it so Postgres never sees an invalid uuid literal, which
// would also abort the surrounding transaction.
func malformedID(id string) bool {
	_, err := uuid.Parse(id)
	return err != nil
}
