package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/furisto/toolgate/backend/memory"
	"github.com/furisto/toolgate/backend/model"
	"github.com/furisto/toolgate/backend/quarantine"
	"github.com/furisto/toolgate/frontend/cli/pkg/fail"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type historyOptions struct {
	AgentID       string
	ToolCallID    string
	Limit         int
	RenderOptions RenderOptions
}

type RecordDisplay struct {
	ID         string    `json:"id"`
	ToolCallID string    `json:"toolCallId" table:"TOOL CALL"`
	Outcome    string    `json:"outcome"`
	Answers    int       `json:"answers"`
	Result     string    `json:"result"`
	Created    string    `json:"-" table:"CREATED"`
	CreatedAt  time.Time `json:"createdAt" table:"-"`
}

type TranscriptDisplay struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func NewHistoryCmd() *cobra.Command {
	var options historyOptions

	cmd := &cobra.Command{
		Use:   "history [record-id]",
		Short: "List stored quarantine sessions or show the transcript of one",
		Example: `  # List the sessions of an agent
  toolgate history --agent-id 0195fbbe-1c2d

  # Show the questions and answers of one session
  toolgate history 3f0d6c1e-8a4b-4f59-9c1e-2b7d5a9e0c11 -o yaml`,
		Args:    cobra.MaximumNArgs(1),
		GroupID: "quarantine",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx)
			if err != nil {
				return fail.HandleError(err)
			}
			defer closeStore()

			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid record id %q: %w", args[0], err)
				}
				record, err := store.GetQuarantineRecord(ctx, id)
				if errors.Is(err, memory.ErrRecordNotFound) {
					return fail.NewRecordNotFoundError(args[0], err)
				}
				if err != nil {
					return memory.SanitizeError(err)
				}
				return getRenderer(ctx).Render(ConvertTranscriptToDisplay(record.Conversation), &options.RenderOptions)
			}

			if options.AgentID == "" {
				return fmt.Errorf("--agent-id is required when no record id is given")
			}
			records, err := store.ListQuarantineRecords(ctx, memory.RecordFilter{
				AgentID:    options.AgentID,
				ToolCallID: options.ToolCallID,
				Limit:      options.Limit,
			})
			if err != nil {
				return fail.HandleError(memory.SanitizeError(err))
			}

			displays := make([]*RecordDisplay, len(records))
			for i, record := range records {
				displays[i] = ConvertRecordToDisplay(record)
			}
			return getRenderer(ctx).Render(displays, &options.RenderOptions)
		},
	}

	cmd.Flags().StringVar(&options.AgentID, "agent-id", "", "agent whose sessions are listed")
	cmd.Flags().StringVar(&options.ToolCallID, "tool-call-id", "", "only list sessions of this tool call")
	cmd.Flags().IntVar(&options.Limit, "limit", 20, "maximum number of sessions (0 lists all)")
	addRenderOptions(cmd, &options.RenderOptions, OutputFormatTable)
	return cmd
}

func ConvertRecordToDisplay(record memory.QuarantineRecord) *RecordDisplay {
	// every answer is a user turn after the seed prompt
	answers := 0
	for i, entry := range record.Conversation {
		if i > 0 && entry.Role == model.ChatRoleUser {
			answers++
		}
	}

	return &RecordDisplay{
		ID:         record.ID.String(),
		ToolCallID: record.ToolCallID,
		Outcome:    record.Outcome,
		Answers:    answers,
		Result:     record.Result,
		Created:    humanize.Time(record.CreatedAt),
		CreatedAt:  record.CreatedAt,
	}
}

func ConvertTranscriptToDisplay(conversation []quarantine.TranscriptEntry) []*TranscriptDisplay {
	displays := make([]*TranscriptDisplay, len(conversation))
	for i, entry := range conversation {
		displays[i] = &TranscriptDisplay{Role: string(entry.Role), Content: entry.Content}
	}
	return displays
}
