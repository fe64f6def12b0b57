package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newResultCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Inspect and download task results",
	}
	cmd.AddCommand(newResultShowCmd(flags), newResultDownloadCmd(flags))
	return cmd
}

func newResultShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the recording and script URLs of a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, flags, func(ctx context.Context, a *app) error {
				res, err := a.client.GetTaskResult(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recording: %s\nScript:    %s\n", res.GIFURL, res.ScriptURL)
				return nil
			})
		},
	}
}

func newResultDownloadCmd(flags *globalFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download the generated test script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("task_%d.py", id)
			}
			return withSession(cmd, flags, func(ctx context.Context, a *app) error {
				res, err := a.client.GetTaskResult(ctx, id)
				if err != nil {
					return err
				}
				return downloadTo(ctx, a, res.ScriptURL, output, cmd)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default task_<id>.py)")
	return cmd
}

func downloadTo(ctx context.Context, a *app, url, path string, cmd *cobra.Command) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := a.client.Download(ctx, url, f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
	return nil
}
