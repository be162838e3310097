package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/studydesk/internal/bootstrap"
	"github.com/kirillkom/studydesk/internal/catalog"
	"github.com/kirillkom/studydesk/internal/config"
	"github.com/kirillkom/studydesk/internal/core/domain"
	"github.com/kirillkom/studydesk/internal/observability/logging"
)

type rootOptions struct {
	backend  string
	storage  string
	logLevel string
	realtime bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "studyctl",
		Short:         "Run one study dashboard intent in-process and print the resulting state",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.backend, "backend", "", "AI backend: mock or ollama (default from AI_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&opts.storage, "storage", "", "upload storage directory (default from STORAGE_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")
	rootCmd.PersistentFlags().BoolVar(&opts.realtime, "realtime", false, "keep the simulated upload, chat and tool delays")

	rootCmd.AddCommand(
		newUploadCmd(opts),
		newAskCmd(opts),
		newRunToolCmd(opts),
		newCatalogCmd(),
	)
	return rootCmd
}

func newUploadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload files and print the upload slice",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) (any, error) {
				if err := uploadFiles(ctx, app, args); err != nil {
					return nil, err
				}
				return app.Store.GetState().Upload, nil
			})
		},
	}
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Send one chat message and print the chat slice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) (any, error) {
				if err := app.Chat.SendMessage(ctx, args[0]); err != nil {
					return nil, err
				}
				app.Runner.Wait()
				return app.Store.GetState().Chat, nil
			})
		},
	}
}

func newRunToolCmd(opts *rootOptions) *cobra.Command {
	var documents []string
	cmd := &cobra.Command{
		Use:   "run-tool TOOL_ID",
		Short: "Run one AI tool, optionally over uploaded documents, and print the tools slice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *bootstrap.App) (any, error) {
				if len(documents) > 0 {
					if err := uploadFiles(ctx, app, documents); err != nil {
						return nil, err
					}
				}
				if err := app.Tools.RunTool(ctx, args[0]); err != nil {
					return nil, err
				}
				app.Runner.Wait()
				return app.Store.GetState().Tools, nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&documents, "doc", nil, "file to upload before running the tool (repeatable)")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the tool catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tools, err := catalog.Load(path)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tools)
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "catalog YAML file (default is the embedded catalog)")
	return cmd
}

func withApp(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *bootstrap.App) (any, error)) error {
	slog.SetDefault(logging.NewConsoleLogger(opts.logLevel, cmd.ErrOrStderr()))

	cfg := config.Load()
	if opts.backend != "" {
		cfg.AIBackend = opts.backend
	}
	if opts.storage != "" {
		cfg.StoragePath = opts.storage
	}
	if !opts.realtime {
		cfg.UploadTickInterval = time.Millisecond
		cfg.ChatResponseDelay = 0
		cfg.ToolRunDelay = 0
	}
	cfg.SeedDemoData = false

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	result, err := fn(ctx, app)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func uploadFiles(ctx context.Context, app *bootstrap.App, paths []string) error {
	files := make([]domain.RawFile, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		files = append(files, domain.RawFile{
			Name:     filepath.Base(path),
			Size:     info.Size(),
			MimeType: mime.TypeByExtension(filepath.Ext(path)),
			Body:     f,
		})
	}
	if _, err := app.Uploads.AcceptFiles(ctx, files); err != nil {
		return err
	}
	app.Runner.Wait()
	return nil
}

func printJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
