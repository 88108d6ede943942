package query

import (
	"fmt"
	"regexp"
)

// ErrMissingParameter marks a query placeholder without a supplied value.
var ErrMissingParameter = fmt.Errorf("missing query parameter")

var paramPattern = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)`)

// Bind rewrites @name placeholders into the driver's positional placeholders
// and collects the argument list in placeholder order. A placeholder repeated
// in the query binds the same value again.
func Bind(sql string, params map[string]any, driver string) (string, []any, error) {
	var args []any
	var bindErr error

	bound := paramPattern.ReplaceAllStringFunc(sql, func(match string) string {
		name := match[1:]
		value, ok := params[name]
		if !ok {
			if bindErr == nil {
				bindErr = fmt.Errorf("%w: %s", ErrMissingParameter, name)
			}
			return match
		}
		args = append(args, value)
		if driver == "postgres" {
			return fmt.Sprintf("$%d", len(args))
		}
		return "?"
	})

	if bindErr != nil {
		return "", nil, bindErr
	}
	return bound, args, nil
}
