package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/cluster"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/fingerprint"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
	"github.com/emo-crab/observer-ward-sub000/internal/pkg/log"
)

func newScanCommand() *cobra.Command {
	var templateDirs []string
	var workers int

	cmd := &cobra.Command{
		Use:   "scan [targets...]",
		Short: "Fingerprint one or more targets against the loaded template set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := log.New(cfg.Debug, cmd.ErrOrStderr())

			dirs := templateDirs
			if len(dirs) == 0 {
				dirs = cfg.TemplateDirs
			}
			if len(dirs) == 0 {
				return fmt.Errorf("no template directories configured: pass --templates or set template-dirs in config.yaml")
			}

			templates, loadErrs := template.Load(dirs...)
			for _, e := range loadErrs {
				logger.Warn("template load failed", "error", e)
			}
			if len(templates) == 0 {
				return fmt.Errorf("no templates loaded from %v", dirs)
			}
			logger.Info("templates loaded", "count", len(templates))

			clusters := cluster.Build(templates)
			logger.Info("templates clustered", "buckets", clusters.Count())

			options := fingerprint.OptionsFromConfig(cfg)
			scanner := fingerprint.NewScanner(clusters, options)

			n := workers
			if n <= 0 {
				n = cfg.Probe.Concurrency
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, os.Interrupt)
			defer stop()

			enc := json.NewEncoder(cmd.OutOrStdout())
			for item := range fingerprint.RunPool(ctx, scanner, args, n) {
				if item.Err != nil {
					logger.Error("scan item failed", "error", item.Err)
					continue
				}
				tr, ok := item.Data.(fingerprint.TargetResult)
				if !ok {
					continue
				}
				if tr.Err != nil {
					logger.Warn("target scan failed", "target", tr.Target, "error", tr.Err)
					continue
				}
				fingerprint.PostProcess(tr.Results, cfg.Probe.OmitCertificate, cfg.Probe.OmitRaw)
				if err := enc.Encode(tr.Results); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&templateDirs, "templates", nil, "template directories to load, overrides config.yaml")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent scan workers, overrides config.yaml probe.concurrency")
	return cmd
}
