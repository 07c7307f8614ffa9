package repository

import "github.com/google/uuid"

// canonicalID returns id in the form Postgres stores in uuid columns.
// Anything that does not parse cannot name a row.
func canonicalID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
