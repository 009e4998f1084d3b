package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/querychat/internal/chat"
	"github.com/diogo/querychat/internal/config"
	"github.com/diogo/querychat/internal/render"
	"github.com/diogo/querychat/internal/tui"
)

// NewChatCmd creates the interactive chat command
func NewChatCmd(deps *Dependencies, global *globalFlags) *cobra.Command {
	deps = deps.withDefaults()
	if global == nil {
		global = &globalFlags{}
	}

	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session with the query backend.

Answers, charts and errors appear in a scrolling message list.
Type '/exit', '/quit', or press Ctrl+C or Esc to end the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, deps, global)
		},
	}
}

func runChat(cmd *cobra.Command, deps *Dependencies, global *globalFlags) error {
	cfg, err := loadSettings(cmd, deps, global)
	if err != nil {
		return err
	}

	logger := newLogger(deps, cfg, tuiLogPath(cfg.LogFile))
	defer func() { _ = logger.Sync() }()

	client, closeClient, err := newClient(deps, cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient()

	md := render.FromConfig(cfg.Markdown)
	tui.ApplyPalette(render.PaletteFor(md.Style))

	opts := tui.Options{
		Title:    client.BaseURL(),
		Markdown: md,
		Logger:   logger,
	}
	if cfg.SaveImages {
		dir, err := config.GetDownloadDir(cfg)
		if err != nil {
			return err
		}
		opts.SaveDir = dir
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	widget := chat.New(client, chat.WithLogger(logger))
	if err := deps.TUI.RunChat(ctx, widget, opts); err != nil {
		return fmt.Errorf("chat session failed: %w", err)
	}
	return nil
}

// tuiLogPath keeps logs off the terminal the TUI draws on. A stream
// destination falls back to the default log file.
func tuiLogPath(path string) string {
	switch path {
	case "stderr", "stdout":
		return config.DefaultConfig().LogFile
	}
	return path
}
