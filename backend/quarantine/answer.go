package quarantine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"

	"github.com/furisto/toolgate/backend/model"
	"github.com/invopop/jsonschema"
)

type answerResponse struct {
	Answer int `json:"answer" jsonschema:"description=Index of the option that best answers the question"`
}

func answerSchema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{DoNotReference: true}
	return reflector.Reflect(&answerResponse{})
}

const (
	correctionStructure = "structure"
	correctionBounds    = "bounds"
)

// answer runs the quarantined agent for one question. Whatever the agent
// returns, the result is an index in [0, len(question.Options)).
func (o *Orchestrator) answer(ctx context.Context, cfg Config, question Question, data UntrustedData, attrs []any) (int, error) {
	fallback := len(question.Options) - 1
	prompt := QuarantinedPrompt(cfg.QuarantinedAgentPrompt, question.Text, question.Options, data)

	raw, err := o.quarantined.ChatWithSchema(ctx, []model.ChatMessage{model.UserMessage(prompt)}, o.schema, 0)
	if err != nil {
		var providerErr *model.ProviderError
		if !errors.As(err, &providerErr) || providerErr.Kind != model.ProviderErrorKindInvalidResponse {
			return 0, err
		}
		o.corrected(correctionStructure, fallback, attrs, slog.String("cause", providerErr.Message()))
		return fallback, nil
	}

	index, reason := validateAnswer(raw, len(question.Options))
	if reason != "" {
		o.corrected(reason, fallback, attrs)
		return fallback, nil
	}
	return index, nil
}

// validateAnswer checks that raw is an object with a numeric answer whose
// floor lies within [0, optionCount). On failure it returns the default
// last index and the reason for the correction.
func validateAnswer(raw json.RawMessage, optionCount int) (int, string) {
	fallback := optionCount - 1

	var response map[string]any
	if err := json.Unmarshal(raw, &response); err != nil {
		return fallback, correctionStructure
	}
	value, ok := response["answer"].(float64)
	if !ok {
		return fallback, correctionStructure
	}

	floored := math.Floor(value)
	if floored < 0 || floored >= float64(optionCount) {
		return fallback, correctionBounds
	}
	return int(floored), ""
}

func (o *Orchestrator) corrected(reason string, fallback int, attrs []any, extra ...any) {
	o.metrics.IncrementCorrection(reason)
	args := append([]any{"reason", reason, "fallback", fallback}, attrs...)
	o.logger.Warn("quarantined agent answer corrected", append(args, extra...)...)
}
