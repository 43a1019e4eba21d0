package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zoobzio/reprompt"
	"github.com/zoobzio/reprompt/internal/config"
	"github.com/zoobzio/reprompt/internal/logging"
	"github.com/zoobzio/reprompt/internal/render"
)

var version = "0.1.0-dev"

// errReported means the failure was already written to stderr.
var errReported = errors.New("reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reprompt",
		Short: "Reprompt - turn a prompt and your feedback into a structured rewrite",
		Long: `reprompt sends a prompt and what was wrong with its answer to an
improvement proxy, then shows the rewrite split into Task, Rules and
Examples sections with an explanation for each.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/reprompt/config.yaml)")
	rootCmd.PersistentFlags().String("proxy", "", "Proxy URL, overrides the config file")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable styled output")

	rootCmd.AddCommand(
		newVersionCmd(),
		newImproveCmd(),
		newChatCmd(),
		newHighlightCmd(),
		newConfigCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "reprompt version %s\n", version)
			}
		},
	}
}

func newImproveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "improve [prompt] [feedback]",
		Short: "Rewrite a prompt using feedback on its response",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			req := reprompt.ImprovementRequest{}
			req.OriginalPrompt, _ = cmd.Flags().GetString("prompt")
			req.UserFeedback, _ = cmd.Flags().GetString("feedback")
			if len(args) > 0 {
				req.OriginalPrompt = args[0]
			}
			if len(args) > 1 {
				req.UserFeedback = args[1]
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			noRetry, _ := cmd.Flags().GetBool("no-retry")
			out := cmd.OutOrStdout()
			r := render.New(cfg.ColorEnabled())

			client := newClient(cfg)
			session := reprompt.NewSession()
			input := bufio.NewReader(cmd.InOrStdin())

			_, err = client.Submit(cmd.Context(), session, req)
			for err != nil {
				var failure *reprompt.ClassifiedError
				if !errors.As(err, &failure) {
					return err
				}
				if jsonOut {
					writeFailureJSON(out, failure)
					return errReported
				}

				fmt.Fprintln(cmd.ErrOrStderr(), r.Failure(failure))
				if noRetry || !failure.Retryable || !confirm(input, cmd.ErrOrStderr(), "Retry? [y/N] ") {
					return errReported
				}
				_, err = client.Retry(cmd.Context(), session)
			}

			comparison, _ := session.Consume()
			if jsonOut {
				return writeComparisonJSON(out, comparison)
			}
			fmt.Fprint(out, r.Comparison(comparison))
			return nil
		},
	}

	cmd.Flags().StringP("prompt", "p", "", "The prompt that produced a poor response")
	cmd.Flags().StringP("feedback", "f", "", "What was wrong with the response")
	cmd.Flags().Bool("no-retry", false, "Do not offer to retry failed requests")

	return cmd
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <prompt>",
		Short: "Send a prompt to the proxy's plain chat route",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			reply, err := newClient(cfg).Chat(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				var failure *reprompt.ClassifiedError
				if !errors.As(err, &failure) {
					return err
				}
				if jsonOut {
					writeFailureJSON(out, failure)
				} else {
					fmt.Fprintln(cmd.ErrOrStderr(), render.New(cfg.ColorEnabled()).Failure(failure))
				}
				return errReported
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(reprompt.ChatReply{Message: reply})
			}
			fmt.Fprintln(out, reply)
			return nil
		},
	}
}

func newHighlightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "highlight [text]",
		Short: "Show the section highlights of a structured prompt",
		Long: `Locate the Task:, Rules: and Examples: sections of a prompt.
Reads the prompt from standard input when no text is given or text is "-".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 && args[0] != "-" {
				text = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				text = string(data)
			}

			highlights := reprompt.ExtractHighlights(text)

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				if highlights == nil {
					highlights = []reprompt.Highlight{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(highlights)
			}

			noColor, _ := cmd.Flags().GetBool("no-color")
			fmt.Fprintln(cmd.OutOrStdout(), render.New(!noColor).Highlighted(text, highlights))
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the client configuration file",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Write a default configuration file",
			RunE: func(cmd *cobra.Command, args []string) error {
				path, _ := cmd.Flags().GetString("config")
				if path == "" {
					p, err := config.Path()
					if err != nil {
						return err
					}
					path = p
				}
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists at %s", path)
				}

				cfg := config.DefaultConfig()
				if proxyURL, _ := cmd.Flags().GetString("proxy"); proxyURL != "" {
					cfg.ProxyURL = proxyURL
				}
				if err := cfg.Save(path); err != nil {
					return fmt.Errorf("failed to write config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadSettings(cmd)
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"proxy_url": cfg.ProxyURL,
					"timeout":   cfg.Timeout.String(),
					"color":     cfg.ColorEnabled(),
					"debug":     cfg.Debug,
				})
			},
		},
	)

	return cmd
}

// loadSettings reads the config file and applies flag overrides.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if proxyURL, _ := cmd.Flags().GetString("proxy"); proxyURL != "" {
		cfg.ProxyURL = proxyURL
	}
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		color := false
		cfg.Color = &color
	}
	if cfg.Debug {
		logging.Bridge(logging.Setup(cmd.ErrOrStderr(), false))
	}

	return cfg, nil
}

func newClient(cfg *config.Config) *reprompt.Client {
	var opts []reprompt.Option
	if cfg.Timeout > 0 {
		opts = append(opts, reprompt.WithTimeout(cfg.Timeout))
	}
	if cfg.Debug {
		opts = append(opts, reprompt.WithDebug())
	}

	transport := reprompt.NewHTTPTransport(reprompt.HTTPConfig{BaseURL: cfg.ProxyURL})
	return reprompt.New(transport, opts...)
}

func confirm(in *bufio.Reader, out io.Writer, question string) bool {
	fmt.Fprint(out, question)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func writeComparisonJSON(w io.Writer, c *reprompt.Comparison) error {
	return json.NewEncoder(w).Encode(map[string]any{
		"originalPrompt": c.OriginalPrompt,
		"userFeedback":   c.UserFeedback,
		"improvedPrompt": c.Response.ImprovedPrompt,
		"mapping":        c.Response.Mapping,
		"explanations":   c.Response.Explanations,
		"highlights":     c.Highlights,
	})
}

func writeFailureJSON(w io.Writer, failure *reprompt.ClassifiedError) {
	json.NewEncoder(w).Encode(reprompt.Envelope{
		Error: &reprompt.EnvelopeError{
			Code:    string(failure.Code),
			Message: failure.Message,
		},
	})
}
