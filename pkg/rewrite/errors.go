package rewrite

import "fmt"

// NotRewritableError reports why a statement could not be interpreted as a
// semantic query. Strict mode surfaces it; non-strict mode passes the
// statement through instead.
type NotRewritableError struct {
	Reason string
}

func (e *NotRewritableError) Error() string {
	return fmt.Sprintf("statement is not rewritable: %s", e.Reason)
}
