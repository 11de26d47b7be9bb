package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/furisto/toolgate/backend/analytics"
	"github.com/furisto/toolgate/backend/event"
	"github.com/furisto/toolgate/backend/quarantine"
	"github.com/furisto/toolgate/backend/toolcall"
	"github.com/furisto/toolgate/frontend/cli/pkg/fail"
	"github.com/furisto/toolgate/frontend/cli/pkg/terminal"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const defaultQuarantineConcurrency = 4

type quarantineOptions struct {
	Request       string
	AgentID       string
	Tenant        string
	Concurrency   int
	File          string
	Quiet         bool
	RenderOptions RenderOptions
}

type SummaryDisplay struct {
	ToolCallID string `json:"toolCallId" table:"TOOL CALL"`
	Tool       string `json:"tool"`
	Summary    string `json:"summary"`
}

func NewQuarantineCmd() *cobra.Command {
	var options quarantineOptions

	cmd := &cobra.Command{
		Use:   "quarantine --request <text> [--file <file>]",
		Short: "Summarize untrusted tool results through a quarantined model",
		Long: `Summarize untrusted tool results without showing them to the main model.

For every result the main model asks multiple-choice questions about the data.
A quarantined model that sees the data answers with an option index only, and
the main model writes the summary from the questions and answers.`,
		Example: `  # Quarantine the results of a web fetch
  toolgate quarantine --request "Is the repository archived?" --file results.json

  # Use the prompts configured for a tenant and run two sessions at a time
  toolgate quarantine --tenant acme --concurrency 2 --request "..." < results.json`,
		GroupID: "quarantine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if options.Concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1")
			}
			if options.AgentID == "" {
				options.AgentID = uuid.NewString()
			}

			data, err := readInput(cmd, options.File)
			if err != nil {
				return err
			}
			results, err := decodeToolResults(data)
			if err != nil {
				return err
			}

			summaries, err := runQuarantine(cmd, &options, results)
			if err != nil {
				return fail.HandleError(err)
			}
			return getRenderer(cmd.Context()).Render(summaries, &options.RenderOptions)
		},
	}

	cmd.Flags().StringVarP(&options.Request, "request", "r", "", "the user request the tool results are used for")
	cmd.Flags().StringVar(&options.AgentID, "agent-id", "", "agent the sessions are recorded for (defaults to a new id)")
	cmd.Flags().StringVar(&options.Tenant, "tenant", "", "tenant whose quarantine config is used")
	cmd.Flags().IntVarP(&options.Concurrency, "concurrency", "c", defaultQuarantineConcurrency, "number of results quarantined at the same time")
	cmd.Flags().StringVarP(&options.File, "file", "f", "", `file with a JSON array of tool results ("-" or empty reads stdin)`)
	cmd.Flags().BoolVarP(&options.Quiet, "quiet", "q", false, "do not print progress")
	_ = cmd.MarkFlagRequired("request")
	addRenderOptions(cmd, &options.RenderOptions, OutputFormatTable)
	return cmd
}

func runQuarantine(cmd *cobra.Command, options *quarantineOptions, results []toolcall.ToolResult) ([]*SummaryDisplay, error) {
	ctx := cmd.Context()
	cfg := getConfig(ctx)

	registry, err := quarantine.NewConfigRegistry(cfg.QuarantineSource(), cfg.Quarantine.CacheTTL)
	if err != nil {
		return nil, err
	}
	defer registry.Close()

	// fail early on a broken tenant config, before any model is called
	if _, err := registry.Get(ctx, options.Tenant); err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	privileged, quarantined, err := newChatClients(ctx)
	if err != nil {
		return nil, err
	}

	router := event.NewEventRouter(64, event.WithLogger(slog.Default()), event.WithMetrics(getMetrics(ctx)))
	defer router.Close()

	stopAnalytics := analytics.Forward(ctx, router, getAnalytics(ctx))
	defer stopAnalytics()

	if !options.Quiet {
		printer := newProgressPrinter(ctx, cmd.ErrOrStderr(), router, options.AgentID, len(results))
		defer printer.Stop()
	}

	orchestrator := quarantine.NewOrchestrator(privileged, store,
		quarantine.WithLogger(slog.Default()),
		quarantine.WithMetrics(getMetrics(ctx)),
		quarantine.WithObserver(router),
		quarantine.WithQuarantinedClient(quarantined),
	)

	summaries := make([]*SummaryDisplay, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(options.Concurrency)
	for i, result := range results {
		if result.ID == "" {
			result.ID = fmt.Sprintf("result-%d", i)
		}
		g.Go(func() error {
			sessionConfig, err := registry.Get(gctx, options.Tenant)
			if err != nil {
				return err
			}

			summary, err := orchestrator.Run(gctx, quarantine.Request{
				AgentID:     options.AgentID,
				ToolCallID:  result.ID,
				UserRequest: options.Request,
				Result:      result,
				Config:      sessionConfig,
			})
			if err != nil {
				return fmt.Errorf("failed to quarantine %s: %w", result.ID, err)
			}

			summaries[i] = &SummaryDisplay{ToolCallID: result.ID, Tool: result.Name, Summary: summary}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// progressPrinter writes the quarantine events of one agent as they happen.
// On a terminal the lines scroll above a spinner.
type progressPrinter struct {
	out     io.Writer
	spinner *terminal.Spinner
	total   int

	mu       sync.Mutex
	finished int

	unsubscribe func()
	done        chan struct{}
}

func newProgressPrinter(ctx context.Context, out io.Writer, router *event.EventRouter, agentID string, total int) *progressPrinter {
	events, unsubscribe := router.Subscribe(ctx, event.SubscribeOptions{
		EventTypes: []string{"quarantine.*"},
		AgentID:    agentID,
	})

	p := &progressPrinter{
		out:         out,
		total:       total,
		unsubscribe: unsubscribe,
		done:        make(chan struct{}),
	}
	if terminal.IsInteractive(out) {
		p.spinner = terminal.NewSpinner(out, p.status())
		p.spinner.Start()
	}

	go func() {
		defer close(p.done)
		for streamEvent := range events {
			p.print(streamEvent)
		}
	}()
	return p
}

func (p *progressPrinter) print(streamEvent *event.StreamEvent) {
	var line string
	switch payload := streamEvent.Payload.(type) {
	case *event.ProgressPayload:
		progress := payload.Progress
		line = fmt.Sprintf("%s [%s] round %d: %s %s %s", terminal.QuestionSymbol, progress.ToolCallID,
			progress.Round, progress.Question, terminal.LinkSymbol, answerText(progress))
	case *event.CompletionPayload:
		p.mu.Lock()
		p.finished++
		p.mu.Unlock()
		if streamEvent.Type == event.EventTypeQuarantineFailed {
			line = fmt.Sprintf("%s [%s] failed after %d rounds: %s", terminal.ErrorSymbol, streamEvent.ToolCallID, payload.Rounds, payload.Error)
		} else {
			line = fmt.Sprintf("%s [%s] %s after %d rounds", terminal.SuccessSymbol, streamEvent.ToolCallID, payload.Outcome, payload.Rounds)
		}
	default:
		return
	}

	if p.spinner != nil {
		p.spinner.Println(line)
		p.spinner.UpdateMessage(p.status())
		return
	}
	fmt.Fprintln(p.out, line)
}

func (p *progressPrinter) status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("Quarantining tool results (%d/%d done)", p.finished, p.total)
}

// Stop prints the events still buffered and releases the subscription.
func (p *progressPrinter) Stop() {
	p.unsubscribe()
	<-p.done
	if p.spinner != nil {
		p.spinner.Stop("")
	}
}

func answerText(progress quarantine.Progress) string {
	index, err := strconv.Atoi(progress.Answer)
	if err != nil || index < 0 || index >= len(progress.Options) {
		return progress.Answer
	}
	return fmt.Sprintf("%d (%s)", index, progress.Options[index])
}
