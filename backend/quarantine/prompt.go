package quarantine

import (
	"strconv"
	"strings"

	"github.com/furisto/toolgate/backend/toolcall"
)

const (
	bindingOriginalUserRequest = "originalUserRequest"
	bindingQuestion            = "question"
	bindingOptions             = "options"
	bindingMaxIndex            = "maxIndex"
	bindingToolResultData      = "toolResultData"
	bindingQAText              = "qaText"
)

func placeholder(name string) string {
	return "{{" + name + "}}"
}

// Expand substitutes {{name}} placeholders in one pass. Substituted values
// are never scanned again, so placeholders inside them stay literal. Unknown
// placeholders are left untouched.
func Expand(template string, bindings map[string]string) string {
	pairs := make([]string, 0, len(bindings)*2)
	for name, value := range bindings {
		pairs = append(pairs, placeholder(name), value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// UntrustedData is the rendered payload of a tool result. It can only be
// created from a ToolResult and only QuarantinedPrompt reads it.
type UntrustedData struct {
	text string
}

func NewUntrustedData(result toolcall.ToolResult) UntrustedData {
	if result.IsError {
		return UntrustedData{text: result.ErrorText()}
	}
	if text, ok := result.Content.(string); ok {
		return UntrustedData{text: text}
	}
	return UntrustedData{text: toolcall.Serialize(result.Content).Value}
}

// Len is the size of the payload in bytes.
func (d UntrustedData) Len() int {
	return len(d.text)
}

// String hides the payload from logs and formatting.
func (d UntrustedData) String() string {
	return "[untrusted " + strconv.Itoa(len(d.text)) + " bytes]"
}

// PrivilegedPrompt builds the main agent's seed prompt. It takes no tool
// data by construction.
func PrivilegedPrompt(template, userRequest string) string {
	return Expand(template, map[string]string{
		bindingOriginalUserRequest: userRequest,
	})
}

// QuarantinedPrompt builds the isolated agent's prompt for one question.
func QuarantinedPrompt(template, question string, options []string, data UntrustedData) string {
	return Expand(template, map[string]string{
		bindingQuestion:       question,
		bindingOptions:        FormatOptions(options),
		bindingMaxIndex:       strconv.Itoa(len(options) - 1),
		bindingToolResultData: data.text,
	})
}

// SummaryPrompt builds the final summarization prompt from the Q&A text.
func SummaryPrompt(template, qaText string) string {
	return Expand(template, map[string]string{
		bindingQAText: qaText,
	})
}

// FormatOptions renders options as "0: a\n1: b".
func FormatOptions(options []string) string {
	lines := make([]string, len(options))
	for i, option := range options {
		lines[i] = strconv.Itoa(i) + ": " + option
	}
	return strings.Join(lines, "\n")
}
