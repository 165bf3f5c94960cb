package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bookforge/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueRemoveCommand(ctx))
	cmd.AddCommand(newQueueRetryCommand(ctx))
	cmd.AddCommand(newQueueResumeCommand(ctx))
	cmd.AddCommand(newQueueStopCommand(ctx))
	cmd.AddCommand(newQueueCancelCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	cmd.AddCommand(newQueueMoveCommand(ctx))
	cmd.AddCommand(newQueueRunCommand(ctx))
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in queue order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipcClient) error {
				jobs, err := client.QueueList(statuses)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderJobTable(jobs))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (pending, processing, complete, error)")
	return cmd
}

func renderJobTable(jobs []queue.Job) string {
	headers := []string{"ID", "TYPE", "STATUS", "PROGRESS", "TITLE", "DETAIL"}
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		detail := job.ProgressMessage
		if job.Status == queue.StatusError {
			detail = job.ErrorMessage
		}
		if job.Placeholder != nil {
			detail = "waiting for upstream"
		}
		progress := fmt.Sprintf("%3.0f%%", job.Progress)
		if job.IsMaster() {
			progress = fmt.Sprintf("%3.0f%% (workflow)", job.Progress)
		}
		rows = append(rows, []string{
			shortID(job.ID),
			string(job.Type),
			string(job.Status),
			progress,
			job.Title,
			detail,
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
	return renderTable(headers, rows, aligns)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove a job (and its children if it is a workflow)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipcClient) error {
				removed, err := client.QueueRemove(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Requeue an errored job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipcClient) error {
				if err := client.JobRetry(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Job requeued")
				return nil
			})
		},
	}
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <job-id>",
		Short: "Release a stopped job back to the scheduler",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipcClient) error {
				if err := client.JobResume(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Job released; it will resume from its checkpoint")
				return nil
			})
		},
	}
}

func newQueueStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <job-id>",
		Short: "Stop a running job, keeping its checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipcClient) error {
				if err := client.JobStop(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Stop requested")
				return nil
			})
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running job and discard its session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipcClient) error {
				if err := client.JobCancel(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cancel requested")
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs (complete and error by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipcClient) error {
				removed, err := client.QueueClear(statuses)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Statuses to clear")
	return cmd
}

func newQueueMoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "move <job-id> <before-job-id>",
		Short: "Move a pending job ahead of another pending job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipcClient) error {
				if err := client.QueueReorder(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Job moved")
				return nil
			})
		},
	}
}

func newQueueRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job-id>",
		Short: "Run a pending job immediately, outside the queue slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipcClient) error {
				if err := client.JobRun(args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Job started standalone")
				return nil
			})
		},
	}
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent stage runs and per-type throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipcClient) error {
				resp, err := client.Runs(limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Summaries) > 0 {
					headers := []string{"TYPE", "RUNS", "OK", "UNITS", "CHARS", "TIME"}
					rows := make([][]string, 0, len(resp.Summaries))
					for _, s := range resp.Summaries {
						rows = append(rows, []string{
							s.JobType,
							fmt.Sprintf("%d", s.Total),
							fmt.Sprintf("%d", s.Succeeded),
							fmt.Sprintf("%d", s.Units),
							fmt.Sprintf("%d", s.Characters),
							s.Duration.Round(1e9).String(),
						})
					}
					aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}
					fmt.Fprintln(out, renderTable(headers, rows, aligns))
				}
				for _, run := range resp.Runs {
					status := "ok"
					if !run.Success {
						status = "failed"
					}
					fmt.Fprintf(out, "%s  %-16s %-6s %s\n",
						run.FinishedAt.Local().Format("2006-01-02 15:04"),
						run.JobType, status, strings.TrimSpace(run.Engine))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent runs to show")
	return cmd
}
