package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Conceptual-Machines/flipbook-api/internal/config"
	"github.com/Conceptual-Machines/flipbook-api/internal/prompt"
	"github.com/Conceptual-Machines/flipbook-api/internal/services"
	"github.com/Conceptual-Machines/flipbook-api/internal/storyboard"
	"github.com/spf13/cobra"
)

// storyOptions are the flags shared by the commands that build a request
type storyOptions struct {
	Idea      string
	MaxFrames int
	Previous  []string
}

// NewRootCommand creates the storyboard CLI
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storyboard",
		Short: "Turn a story idea into flipbook frame prompts",
		Long: `Runs one storyboard generation against the configured generation service.

Configuration is read from the environment (ANTHROPIC_API_KEY, GENERATION_*), as for the API server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newGenerateCommand())
	cmd.AddCommand(newPromptCommand())
	return cmd
}

// run executes cmd and reports errors on its stderr. Generation failures were already written as JSON.
func run(cmd *cobra.Command) error {
	err := cmd.Execute()
	if err != nil {
		if _, ok := storyboard.AsFailure(err); !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		}
	}
	return err
}

func (o *storyOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Idea, "idea", "", "story idea (required)")
	cmd.Flags().IntVar(&o.MaxFrames, "max-frames", storyboard.DefaultMaxFramesPerEvent, "maximum frames per event")
	cmd.Flags().StringArrayVar(&o.Previous, "previous", nil, "previous image as ID=URL, repeatable, oldest first")
	_ = cmd.MarkFlagRequired("idea")
}

func (o *storyOptions) previousImages() ([]storyboard.PreviousImage, error) {
	refs := make([]storyboard.PreviousImage, 0, len(o.Previous))
	for _, p := range o.Previous {
		id, url, ok := strings.Cut(p, "=")
		if !ok || id == "" || url == "" {
			return nil, fmt.Errorf("invalid --previous %q: expected ID=URL", p)
		}
		refs = append(refs, storyboard.PreviousImage{ID: id, URL: url})
	}
	return refs, nil
}

func newGenerateCommand() *cobra.Command {
	opts := &storyOptions{}
	var (
		strict  bool
		timeout time.Duration
		system  string
	)

	cmd := &cobra.Command{
		Use:           "generate",
		Short:         "Generate a storyboard and print it as JSON",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Generation.Timeout = timeout
			}

			previous, err := opts.previousImages()
			if err != nil {
				return err
			}
			if strings.TrimSpace(opts.Idea) == "" {
				return services.ErrEmptyStoryIdea
			}

			pipeline := storyboard.NewPipeline(services.PipelineConfig(cfg.Generation))
			result, err := pipeline.Generate(cmd.Context(), &storyboard.GenerationRequest{
				StoryIdea:         opts.Idea,
				PreviousImages:    previous,
				MaxFramesPerEvent: opts.MaxFrames,
				SystemOverride:    system,
				Strict:            strict,
			})
			if err != nil {
				if failure, ok := storyboard.AsFailure(err); ok {
					_ = writeJSON(cmd.ErrOrStderr(), map[string]any{"error": failure})
				}
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "events=%d frames=%d input_tokens=%d output_tokens=%d\n",
				len(result.Events), len(result.Frames), result.Usage.InputTokens, result.Usage.OutputTokens)
			return writeJSON(cmd.OutOrStdout(), result.Raw)
		},
	}

	opts.bind(cmd)
	cmd.Flags().BoolVar(&strict, "strict", false, "reject output that does not match the storyboard shape")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "override GENERATION_TIMEOUT for this call")
	cmd.Flags().StringVar(&system, "system", "", "replace the default system instruction")
	return cmd
}

func newPromptCommand() *cobra.Command {
	opts := &storyOptions{}
	var showSystem bool

	cmd := &cobra.Command{
		Use:           "prompt",
		Short:         "Print the prompt that would be sent, without calling the service",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			previous, err := opts.previousImages()
			if err != nil {
				return err
			}
			refs := make([]prompt.ImageRef, 0, len(previous))
			for _, p := range previous {
				refs = append(refs, prompt.ImageRef{ID: p.ID, URL: p.URL})
			}

			builder := prompt.NewPromptBuilder()
			if showSystem {
				system, err := builder.SystemPrompt("")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), system)
				fmt.Fprintln(cmd.OutOrStdout())
			}

			maxFrames := opts.MaxFrames
			if maxFrames < 1 {
				maxFrames = storyboard.DefaultMaxFramesPerEvent
			}
			user, err := builder.UserPrompt(opts.Idea, refs, maxFrames)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), user)
			return nil
		},
	}

	opts.bind(cmd)
	cmd.Flags().BoolVar(&showSystem, "system", false, "also print the system instruction")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
