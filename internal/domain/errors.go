package domain

import "fmt"

// NotFoundError reports a lookup by a name that is not registered.
type NotFoundError struct {
	Kind string // "collector", "profile"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}
