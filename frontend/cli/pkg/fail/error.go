package fail

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/furisto/toolgate/backend/memory"
	"github.com/furisto/toolgate/backend/model"
	"github.com/furisto/toolgate/backend/quarantine"
	"github.com/furisto/toolgate/backend/toolcall"
	"github.com/furisto/toolgate/frontend/cli/pkg/terminal"
	"github.com/furisto/toolgate/shared/config"
)

type UserError struct {
	Cause       error
	UserMessage string
	Solutions   []string
	TechDetails string
}

func (e *UserError) Error() string {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("%s %s\n\n", terminal.ErrorSymbol, terminal.Bold(e.UserMessage)))

	if len(e.Solutions) > 0 {
		msg.WriteString(fmt.Sprintf("%s Try these solutions:\n", terminal.InfoSymbol))
		for i, solution := range e.Solutions {
			msg.WriteString(fmt.Sprintf("  %d. %s\n", i+1, solution))
		}
		msg.WriteString("\n")
	}

	if e.TechDetails != "" {
		msg.WriteString(fmt.Sprintf("Technical details: %s\n", e.TechDetails))
	}

	return msg.String()
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

func NewPermissionError(path string, err error) *UserError {
	return &UserError{
		Cause:       err,
		UserMessage: fmt.Sprintf("Permission denied accessing %s", path),
		Solutions: []string{
			"Check file permissions and ownership",
			"Point storage.path in toolgate.yaml to a writable location",
		},
		TechDetails: fmt.Sprintf("Failed to access %s: %v", path, err),
	}
}

func NewAPIKeyError(kind toolcall.ProviderKind, envName string, err error) *UserError {
	return &UserError{
		Cause:       err,
		UserMessage: fmt.Sprintf("No API key configured for %s", kind),
		Solutions: []string{
			fmt.Sprintf("Export the key: export %s=<key>", envName),
			fmt.Sprintf("Store it in the system keyring: toolgate apikey set %s", kind),
		},
		TechDetails: err.Error(),
	}
}

func NewProviderError(err *model.ProviderError) *UserError {
	userErr := &UserError{
		Cause:       err,
		UserMessage: err.Message(),
		TechDetails: err.Error(),
	}

	switch err.Kind {
	case model.ProviderErrorKindAuthentication:
		userErr.Solutions = []string{
			"Verify the API key is valid and not expired",
			fmt.Sprintf("Replace the stored key: toolgate apikey set %s", err.Provider),
		}
	case model.ProviderErrorKindRateLimitExceeded, model.ProviderErrorKindOverloaded:
		userErr.Solutions = []string{
			"Wait a moment and try again",
			"Lower --concurrency to send fewer requests at once",
		}
	case model.ProviderErrorKindInvalidRequest:
		userErr.Solutions = []string{
			"Check provider.model in toolgate.yaml",
			"Check provider.base_url if you use a proxy",
		}
	}
	return userErr
}

func NewConfigError(err error) *UserError {
	return &UserError{
		Cause:       err,
		UserMessage: "The configuration is invalid",
		Solutions: []string{
			"max_rounds must be greater than zero",
			"Only quarantined_agent_prompt may reference {{toolResultData}}",
			"Remove a prompt from toolgate.yaml to fall back to the built-in one",
		},
		TechDetails: err.Error(),
	}
}

func NewRecordNotFoundError(id string, err error) *UserError {
	return &UserError{
		Cause:       err,
		UserMessage: fmt.Sprintf("Quarantine record %s not found", id),
		Solutions: []string{
			"List the stored records: toolgate history --agent-id <agent>",
		},
	}
}

// HandleError turns well known failures into a UserError. Other errors are
// returned unchanged.
func HandleError(err error) error {
	if err == nil {
		return nil
	}

	var userErr *UserError
	if errors.As(err, &userErr) {
		return err
	}

	var providerErr *model.ProviderError
	if errors.As(err, &providerErr) {
		userErr := NewProviderError(providerErr)
		userErr.Cause = err
		return userErr
	}

	if errors.Is(err, quarantine.ErrInvalidConfig) {
		return NewConfigError(err)
	}

	if errors.Is(err, memory.ErrRecordNotFound) {
		return NewRecordNotFoundError("", err)
	}

	if errors.Is(err, config.ErrAPIKeyNotFound) {
		return &UserError{
			Cause:       err,
			UserMessage: "No API key configured",
			Solutions:   []string{"Run toolgate apikey set <provider>"},
			TechDetails: err.Error(),
		}
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) && errors.Is(err, fs.ErrPermission) {
		return NewPermissionError(pathErr.Path, err)
	}

	return err
}
