// Package cli is the operator command line: it serves the API and runs the
// generation, linking and refresh workflows directly against the store.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vasilisp/autopost/internal/auth"
	"github.com/vasilisp/autopost/internal/config"
	"github.com/vasilisp/autopost/internal/errs"
	"github.com/vasilisp/autopost/internal/logger"
	"github.com/vasilisp/autopost/internal/poster"
	"github.com/vasilisp/autopost/internal/server"
	"github.com/vasilisp/autopost/pkg/api"
)

type options struct {
	configFile string
}

// NewRootCmd builds the command tree. Output goes to the command's out
// writer so tests can capture it.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "autopost",
		Short:         "Generate, link and refresh blog posts with an AI model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is ./autopost.yaml or $HOME/.config/autopost.yaml)")

	root.AddCommand(
		serveCmd(opts),
		generateCmd(opts),
		refreshCmd(opts),
		authorsCmd(opts),
		checkUpdateCmd(opts),
		tokenCmd(opts),
	)
	return root
}

func Main(args []string) int {
	return execute(args, os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", errorMessage(err))
		return 1
	}
	return 0
}

// errorMessage shows taxonomy errors the way the API does; provider and
// storage detail stays in the log. Anything else, such as a flag error, is
// printed as is.
func errorMessage(err error) string {
	var e *errs.Error
	if errors.As(err, &e) {
		return errs.UserMessage(err)
	}
	return err.Error()
}

func load(opts *options) (*config.Config, *viper.Viper, *logger.Logger, error) {
	cfg, v, err := config.Load(opts.configFile)
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, v, log, nil
}

// withApp runs fn with a wired app acting as the configured local operator.
func withApp(cmd *cobra.Command, opts *options, fn func(ctx context.Context, app *server.App) error) error {
	cfg, v, log, err := load(opts)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := auth.WithPrincipal(cmd.Context(), auth.Local(cfg.Auth.LocalOperator))

	app, err := server.NewApp(ctx, cfg, v, auth.LocalGate{}, log)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func serveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the operator HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, v, log, err := load(opts)
			if err != nil {
				return err
			}
			defer log.Sync()
			return server.Main(cfg, v, log)
		},
	}
}

func generateCmd(opts *options) *cobra.Command {
	var (
		req    api.GenerateRequest
		accept []int
	)

	cmd := &cobra.Command{
		Use:   "generate [topic]",
		Short: "Generate a post and suggest internal links",
		Long: `Generate asks the model for an article on the topic, formats and stores it,
then prints the post with the internal link suggestions. Pass --accept with
suggestion indices to insert those links right away.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.Topic = args[0]
			}
			if req.Topic == "" {
				input, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read topic from stdin: %w", err)
				}
				req.Topic = strings.TrimSpace(string(input))
			}

			return withApp(cmd, opts, func(ctx context.Context, app *server.App) error {
				gen, err := app.Poster.Generate(ctx, req)
				if err != nil {
					return err
				}

				post := poster.PostView(gen.Record)
				if len(accept) > 0 {
					record, err := app.Poster.AcceptLinks(ctx, gen.Record.ID, gen.AllLinks, accept)
					if err != nil {
						return err
					}
					post = poster.PostView(record)
				}

				suggestions := gen.Suggestions
				if suggestions == nil {
					suggestions = []api.LinkSuggestion{}
				}
				return printJSON(cmd.OutOrStdout(), api.GenerateResponse{
					Post:        post,
					Snippet:     gen.Snippet,
					Suggestions: suggestions,
					AllLinks:    gen.AllLinks,
				})
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Topic, "topic", "", "post topic (or pass it as the argument, or on stdin)")
	flags.StringVar(&req.PostType, "post-type", "child", "pillar, child, comparison, howto, faq, money or hub")
	flags.StringVar(&req.ContentAPI, "api", poster.ContentAPIOpenRouter, "content generator API")
	flags.StringVar(&req.Category, "category", "", "post category")
	flags.StringVar(&req.Status, "status", "draft", "draft or published")
	flags.StringSliceVar(&req.SubTopics, "sub-topic", nil, "sub-topic of a pillar post (repeatable)")
	flags.UintVar(&req.PillarID, "pillar", 0, "id of the pillar post this post belongs to")
	flags.UintVar(&req.AuthorID, "author", 0, "author user id (defaults to the local operator)")
	flags.IntSliceVar(&accept, "accept", nil, "indices of link suggestions to insert")

	return cmd
}

func refreshCmd(opts *options) *cobra.Command {
	var (
		intensity string
		authorID  uint
		commit    bool
	)

	cmd := &cobra.Command{
		Use:   "refresh <post-id>",
		Short: "Preview a refreshed version of a post, optionally saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid post id %q", args[0])
			}

			return withApp(cmd, opts, func(ctx context.Context, app *server.App) error {
				preview, err := app.Poster.PreviewRefresh(ctx, api.RefreshPreviewRequest{
					PostID:    uint(id),
					Intensity: intensity,
					AuthorID:  authorID,
				})
				if err != nil {
					return err
				}
				if !commit {
					return printJSON(cmd.OutOrStdout(), preview)
				}

				record, err := app.Poster.CommitRefresh(ctx, api.RefreshCommitRequest{
					PostID:   preview.PostID,
					Content:  preview.Content,
					Snippet:  preview.Snippet,
					AuthorID: authorID,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), poster.PostView(record))
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&intensity, "intensity", "medium", "light, medium or heavy")
	flags.UintVar(&authorID, "author", 0, "author user id to attribute the update to")
	flags.BoolVar(&commit, "commit", false, "save the refreshed content instead of only printing it")

	return cmd
}

func authorsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "authors",
		Short: "List the users a post can be attributed to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *server.App) error {
				authors, err := app.Poster.Authors(ctx)
				if err != nil {
					return err
				}
				out := make([]api.Author, 0, len(authors))
				for _, a := range authors {
					out = append(out, poster.AuthorView(a))
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}

func checkUpdateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check-update",
		Short: "Check the release repository for a newer version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *server.App) error {
				installed := app.Config.Updates.InstalledVersion
				release, newer := app.Updates.Check(ctx, installed)

				w := cmd.OutOrStdout()
				switch {
				case release == nil:
					fmt.Fprintf(w, "installed %s, latest release unknown\n", installed)
				case newer:
					fmt.Fprintf(w, "installed %s, version %s available: %s\n", installed, release.Version, release.DownloadURL)
				default:
					fmt.Fprintf(w, "installed %s is up to date\n", installed)
				}
				return nil
			})
		},
	}
}

func tokenCmd(opts *options) *cobra.Command {
	var (
		userID uint
		caps   []string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, log, err := load(opts)
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfg.Auth.Secret == "" {
				return fmt.Errorf("auth.secret is not configured")
			}
			if userID == 0 {
				userID = cfg.Auth.LocalOperator
			}

			token, err := auth.NewJWTGate(cfg.Auth.Secret, log).Mint(userID, caps, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.UintVar(&userID, "user", 0, "user id the token acts as (defaults to the local operator)")
	flags.StringSliceVar(&caps, "cap", []string{auth.ManageOptions}, "capability granted by the token (repeatable)")
	flags.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")

	return cmd
}
