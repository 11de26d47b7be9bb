package memory

import (
	"errors"
	"strings"
)

var ErrRecordNotFound = errors.New("quarantine record not found")

// SanitizeError strips the driver prefix from database errors before they
// are shown to users.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(strings.ReplaceAll(err.Error(), "sqlite: ", ""))
}
