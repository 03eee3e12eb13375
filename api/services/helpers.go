package services

import (
	"fmt"
	"strings"
	"time"

	"geodirectory/db"
	"geodirectory/pkg/shared"
)

// storeErr translates a raw driver error into the shared taxonomy:
// uniqueness violations become conflicts, everything else is a store
// failure.
func storeErr(op string, err error) error {
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, shared.ErrConflict)
	}
	return fmt.Errorf("%s: %v: %w", op, err, shared.ErrUnavailable)
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// parseStamp decodes a stored RFC3339 timestamp. Stored values are always
// written by nowStamp, so a parse failure means corrupted data and is
// surfaced rather than silently read as the zero time.
func parseStamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed stored timestamp %q: %v", s, err)
	}
	return t, nil
}

// inClause builds a placeholder list for IN (...) with n entries.
func inClause(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
