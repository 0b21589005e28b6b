// Command observer-wardctl loads fingerprint templates, runs them against
// scan targets or a passive MITM proxy, and reports matches.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emo-crab/observer-ward-sub000/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := &cobra.Command{
		Use:           "observer-wardctl",
		Short:         "Fingerprint services over HTTP/TCP or a passive MITM proxy",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := config.BindGlobalFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	rootCmd.AddCommand(newScanCommand(), newMITMCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// dataDir returns the directory holding config.yaml, creating it if
// necessary. OBWARD_DATA_DIR overrides the default $HOME/.config location.
func dataDir() (string, error) {
	if override := os.Getenv("OBWARD_DATA_DIR"); override != "" {
		if err := os.MkdirAll(override, 0o700); err != nil {
			return "", err
		}
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := home + string(os.PathSeparator) + ".config" + string(os.PathSeparator) + "observer-ward"
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func loadConfig() (*config.Config, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	cfg, engErr := config.New(dir)
	if engErr != nil {
		return nil, engErr
	}
	return cfg, nil
}
