package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bookforge/internal/workflow"
)

func newBookCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Create audiobook workflows",
	}
	cmd.AddCommand(newBookAddCommand(ctx))
	return cmd
}

func newBookAddCommand(ctx *commandContext) *cobra.Command {
	var spec workflow.BookSpec

	cmd := &cobra.Command{
		Use:   "add <input-file>",
		Short: "Queue a book for audiobook production",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			spec.InputPath = input
			if strings.TrimSpace(spec.Title) == "" {
				base := filepath.Base(input)
				spec.Title = strings.TrimSuffix(base, filepath.Ext(base))
			}
			return ctx.withClient(func(client *ipcClient) error {
				master, err := client.WorkflowCreate(spec)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Workflow %s queued (%s)\n", master.WorkflowID, master.Title)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&spec.Title, "title", "", "Book title (defaults to the input filename)")
	cmd.Flags().StringVar(&spec.Voice, "voice", "", "Narration voice")
	cmd.Flags().StringVar(&spec.Language, "language", "", "Source language")
	cmd.Flags().StringVar(&spec.TargetLanguage, "translate-to", "", "Translate before narration (language code)")
	cmd.Flags().BoolVar(&spec.Cleanup, "cleanup", true, "Run AI text cleanup before narration")
	cmd.Flags().BoolVar(&spec.Denoise, "denoise", false, "Denoise during assembly")
	cmd.Flags().StringVar(&spec.CoverImage, "cover", "", "Cover image; also renders a video edition")
	cmd.Flags().StringVar(&spec.OutputDir, "output-dir", "", "Override the configured output directory")
	cmd.Flags().IntVar(&spec.Workers, "workers", 0, "Synthesis worker count (0 uses the configured default)")

	return cmd
}
