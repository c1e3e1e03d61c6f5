package vault

import (
	"fmt"
	"strings"
)

// validateID rejects certificate IDs that cannot be used as a single path
// segment or object key suffix.
func validateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid certificate ID %q", id)
	}
	return nil
}
