package main

import (
	"context"
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/livefir/livelist/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the list in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		logFile, _ := cmd.Flags().GetString("log-file")
		cfg, log, err := setup(logFile)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		notifier := &tui.Notifier{}
		a, err := newApp(ctx, cfg, log, notifier, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		title := fmt.Sprintf("people · %s · order by %s", filepath.Base(cfg.Database.Path), cfg.List.OrderBy)
		model := tui.New(title, a.coord, tui.SourceFormatter(a.coord.Source, "name", "city"), func() tea.Cmd {
			return func() tea.Msg {
				if err := a.loadMore(ctx); err != nil {
					return tui.ErrMsg{Err: err}
				}
				return nil
			}
		})

		program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		notifier.SetProgram(program)

		go func() {
			if err := a.watch(ctx); err != nil {
				program.Send(tui.ErrMsg{Err: err})
			}
		}()

		_, err = program.Run()
		return err
	},
}

func init() {
	watchCmd.Flags().String("log-file", "livelist.log", "File that receives the log while the terminal is in use")
	watchCmd.Flags().String("group-by", "", "Group rows by this column")
	watchCmd.Flags().Bool("load-more", false, "Load rows a page at a time")
	watchCmd.Flags().Bool("animate", true, "Announce granular operations instead of resets")
	watchCmd.PreRunE = bindOnRun(map[string]string{
		"group-by":  "list.grouping_key",
		"load-more": "list.load_more",
		"animate":   "list.animate_changes",
	})
}
