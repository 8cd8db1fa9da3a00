package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dubsync/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var mode, lang string

	cmd := &cobra.Command{
		Use:   "submit <source>",
		Short: "Submit a source to the running daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req, err := buildRequest(cfg, args[0], mode, lang)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Submit(cmd.Context(), api.SubmitRequest{
					SourcePath: req.SourcePath,
					Mode:       req.Mode.String(),
					TargetLang: req.TargetLang,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s (%s, %s)\n", resp.JobID, req.Mode, req.TargetLang)
				return nil
			})
		},
	}
	addRequestFlags(cmd, &mode, &lang)
	return cmd
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "jobs [job-id]",
		Short: "List jobs, or show one job's segments",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					job, err := client.GetJob(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if asJSON {
						return writeJSON(cmd, job)
					}
					renderJobDetail(out, job, shouldColorize(out))
					return nil
				}
				list, err := client.ListJobs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprintln(out, renderJobTable(list))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum jobs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a job; ready segments stay playable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %s (%d pending segments)\n", resp.JobID, resp.Cancelled)
				return nil
			})
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id> [segment-index]",
		Short: "Retry failed segments of a job",
		Long:  "Retry one failed segment, or every failed segment of the job when no index is given.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index := -1
			if len(args) == 2 {
				parsed, err := strconv.Atoi(args[1])
				if err != nil || parsed < 0 {
					return fmt.Errorf("invalid segment index %q", args[1])
				}
				index = parsed
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Retry(cmd.Context(), args[0], index)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retrying %d segment(s) of job %s: %v\n", len(resp.Segments), resp.JobID, resp.Segments)
				return nil
			})
		},
	}
}
