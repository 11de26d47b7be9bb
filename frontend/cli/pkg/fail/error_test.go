package fail

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/furisto/toolgate/backend/memory"
	"github.com/furisto/toolgate/backend/model"
	"github.com/furisto/toolgate/backend/quarantine"
	"github.com/furisto/toolgate/shared/config"
)

func TestHandleError(t *testing.T) {
	t.Parallel()

	authErr := model.NewProviderError("anthropic", model.ProviderErrorKindAuthentication, errors.New("401"))

	tests := []struct {
		name        string
		err         error
		wantMessage string
		wantUser    bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("boom")},
		{name: "provider", err: fmt.Errorf("failed to chat: %w", authErr), wantUser: true, wantMessage: authErr.Message()},
		{name: "invalid config", err: fmt.Errorf("tenant acme: %w", quarantine.ErrInvalidConfig), wantUser: true, wantMessage: "The configuration is invalid"},
		{name: "record not found", err: memory.ErrRecordNotFound, wantUser: true, wantMessage: "not found"},
		{name: "api key", err: config.ErrAPIKeyNotFound, wantUser: true, wantMessage: "No API key configured"},
		{name: "permission", err: &fs.PathError{Op: "open", Path: "/var/lib/toolgate.db", Err: fs.ErrPermission}, wantUser: true, wantMessage: "/var/lib/toolgate.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := HandleError(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("HandleError(nil) = %v", got)
				}
				return
			}

			var userErr *UserError
			isUser := errors.As(got, &userErr)
			if isUser != tt.wantUser {
				t.Fatalf("HandleError() = %T, want UserError %v", got, tt.wantUser)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("HandleError() lost the cause %v", tt.err)
			}
			if tt.wantUser && !strings.Contains(userErr.UserMessage, tt.wantMessage) {
				t.Errorf("UserMessage = %q, want it to contain %q", userErr.UserMessage, tt.wantMessage)
			}
		})
	}
}

func TestUserErrorFormat(t *testing.T) {
	t.Parallel()

	err := &UserError{
		UserMessage: "Something failed",
		Solutions:   []string{"first", "second"},
		TechDetails: "details",
	}

	got := err.Error()
	for _, want := range []string{"Something failed", "  1. first\n", "  2. second\n", "Technical details: details\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, want it to contain %q", got, want)
		}
	}
}
