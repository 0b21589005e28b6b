package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emo-crab/observer-ward-sub000/internal/engine/cluster"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/mitm"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/proxy"
	"github.com/emo-crab/observer-ward-sub000/internal/engine/template"
	"github.com/emo-crab/observer-ward-sub000/internal/pkg/log"
)

func newMITMCommand() *cobra.Command {
	var ruleDirs []string
	var templateDirs []string
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "mitm",
		Short: "Run a passive MITM proxy that rewrites traffic and fingerprints responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := log.New(cfg.Debug, cmd.ErrOrStderr())

			mitmCfg := cfg.MITM
			if listenAddr != "" {
				mitmCfg.ListenAddr = listenAddr
			}

			rDirs := ruleDirs
			if len(rDirs) == 0 {
				rDirs = cfg.MITM.RuleDirs
			}
			var rules []*mitm.Request
			for _, dir := range rDirs {
				loaded, loadErrs := mitm.LoadDir(dir)
				for _, e := range loadErrs {
					logger.Warn("mitm rule load failed", "error", e)
				}
				rules = append(rules, loaded...)
			}
			logger.Info("mitm rules loaded", "count", len(rules))

			tDirs := templateDirs
			if len(tDirs) == 0 {
				tDirs = cfg.TemplateDirs
			}
			var clusters *cluster.Type
			if len(tDirs) > 0 {
				templates, loadErrs := template.Load(tDirs...)
				for _, e := range loadErrs {
					logger.Warn("template load failed", "error", e)
				}
				clusters = cluster.Build(templates)
				logger.Info("templates clustered", "buckets", clusters.Count())
			} else {
				clusters = cluster.Build(nil)
			}

			srv, err := proxy.New(mitmCfg, rules, clusters, logger)
			if err != nil {
				return fmt.Errorf("starting mitm proxy: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, os.Interrupt)
			defer stop()

			logger.Info("mitm proxy listening", "addr", mitmCfg.ListenAddr)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringSliceVar(&ruleDirs, "rules", nil, "MITM rule directories, overrides config.yaml")
	cmd.Flags().StringSliceVar(&templateDirs, "templates", nil, "template directories to load, overrides config.yaml")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "address to listen on, overrides config.yaml")
	return cmd
}
