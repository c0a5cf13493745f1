package packages

import (
	"fmt"
	"strings"
)

// ValidationError reports the required fields that were empty on create.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "required fields are missing: " + strings.Join(e.Missing, ", ")
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("package %q not found", e.ID)
}
