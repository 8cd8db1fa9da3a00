package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"dubsync/internal/api"
	"dubsync/internal/config"
	"dubsync/internal/dub"
	"dubsync/internal/language"
	"dubsync/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var mode, lang string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run <source>",
		Short: "Dub one source in the foreground without a daemon",
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
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			_, engine, closeStore, err := openRuntime(cfg, "run-"+strings.TrimSuffix(filepath.Base(req.SourcePath), filepath.Ext(req.SourcePath)))
			if err != nil {
				return err
			}
			defer closeStore()

			job, err := engine.Run(signalCtx, req)
			if err != nil {
				return err
			}
			segs, err := engine.Store().Segments(context.WithoutCancel(signalCtx), job.ID)
			if err != nil {
				return err
			}
			dto := api.FromJob(job, func(file string) string {
				return filepath.Join(cfg.JobDir(job.ID), file)
			})
			dto.Segments = api.FromSegments(segs)
			if asJSON {
				return writeJSON(cmd, dto)
			}
			renderJobDetail(cmd.OutOrStdout(), dto, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	addRequestFlags(cmd, &mode, &lang)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the finished job as JSON")
	return cmd
}

func addRequestFlags(cmd *cobra.Command, mode, lang *string) {
	cmd.Flags().StringVarP(mode, "mode", "m", "", "Processing mode: dubbing, subtitles, or both (default jobs.default_mode)")
	cmd.Flags().StringVarP(lang, "lang", "l", "", "Target language tag (default jobs.default_target_lang)")
}

// buildRequest resolves a source argument and applies configured defaults.
func buildRequest(cfg *config.Config, source, modeName, lang string) (pipeline.Request, error) {
	abs, err := filepath.Abs(strings.TrimSpace(source))
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return pipeline.Request{}, fmt.Errorf("source path %q is a directory", abs)
	}
	if strings.TrimSpace(modeName) == "" {
		modeName = cfg.Jobs.DefaultMode
	}
	mode, err := dub.ParseMode(modeName)
	if err != nil {
		return pipeline.Request{}, err
	}
	if strings.TrimSpace(lang) == "" {
		lang = cfg.Jobs.DefaultTargetLang
	}
	tag, err := language.Normalize(lang)
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{SourcePath: abs, Mode: mode, TargetLang: tag}, nil
}
