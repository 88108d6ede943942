package query

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrForbiddenQuery marks statements rejected by the guard.
var ErrForbiddenQuery = fmt.Errorf("forbidden query")

// Word-boundary match so column names like created_at do not trip "CREATE".
var forbiddenPattern = regexp.MustCompile(`\b(DROP|DELETE|UPDATE|INSERT|CREATE|ALTER|TRUNCATE|GRANT|REVOKE)\b`)

// Validate rejects report queries containing data- or schema-modifying statements.
func Validate(sql string) error {
	upper := strings.ToUpper(sql)
	if m := forbiddenPattern.FindString(upper); m != "" {
		return fmt.Errorf("%w: forbidden operation: %s", ErrForbiddenQuery, m)
	}
	return nil
}
