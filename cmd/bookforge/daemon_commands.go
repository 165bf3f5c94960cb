package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"bookforge/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the BookForge daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override configured log level")
	return cmd
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start queue processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipcClient) error {
				if _, err := client.StartQueue(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Queue started")
				return nil
			})
		},
	}
}

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause queue processing (the in-flight job finishes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipcClient) error {
				if _, err := client.StopQueue(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Queue paused")
				return nil
			})
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipcClient) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Daemon:  running (pid %d)\n", status.PID)
				if status.QueueRunning {
					fmt.Fprintln(out, "Queue:   running")
				} else {
					fmt.Fprintln(out, "Queue:   paused")
				}
				if status.ActiveJobID != "" {
					fmt.Fprintf(out, "Active:  %s\n", status.ActiveJobID)
				}
				fmt.Fprintf(out, "DB:      %s\n", status.DBPath)

				keys := make([]string, 0, len(status.QueueStats))
				for key := range status.QueueStats {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				for _, key := range keys {
					fmt.Fprintf(out, "%-11s %d\n", key+":", status.QueueStats[key])
				}
				return nil
			})
		},
	}
}
