package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"dubsync/internal/api"
	"dubsync/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and dependency health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			bind := ctx.apiBind()
			client, err := api.NewClient(bind, cfg.Paths.APIToken)
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil && !api.IsAPIUnavailable(err) {
				return wrapAPIError(err, bind)
			}
			if err != nil {
				// Daemon down: report what can be checked locally.
				status = api.DaemonStatus{
					Dependencies: api.FromDependencies(preflight.CheckSystemDeps(cfg)),
					Checks:       api.FromChecks(preflight.RunAll(cmd.Context(), cfg, false)),
				}
			}
			if asJSON {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			renderDaemonStatus(out, status, bind, shouldColorize(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func renderDaemonStatus(out io.Writer, status api.DaemonStatus, bind string, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if status.Running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d, %s)", status.PID, bind), colorize))
		if status.StartedAt != "" {
			fmt.Fprintln(out, renderStatusLine("Started", statusInfo, status.StartedAt, colorize))
		}
		active := "none"
		if len(status.ActiveJobs) > 0 {
			active = strings.Join(status.ActiveJobs, ", ")
		}
		fmt.Fprintln(out, renderStatusLine("Active jobs", statusInfo, active, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	}
	if db := status.Database; db != nil {
		kind := statusOK
		if !db.IntegrityOK {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine("Database", kind,
			fmt.Sprintf("%s (schema v%d, %d jobs, integrity ok: %s)", db.Path, db.SchemaVersion, db.JobCount, yesNo(db.IntegrityOK)), colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, dep := range status.Dependencies {
		fmt.Fprintln(out, dependencyLine(dep, colorize))
	}
	for _, check := range status.Checks {
		fmt.Fprintln(out, checkLine(check, colorize))
	}

	if len(status.SegmentCounts) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Segments", colorize) {
		fmt.Fprintln(out, line)
	}
	keys := make([]string, 0, len(status.SegmentCounts))
	for k := range status.SegmentCounts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintln(out, renderStatusLine(k, statusInfo, fmt.Sprintf("%d", status.SegmentCounts[k]), colorize))
	}
}
