package main

import (
	"github.com/spf13/cobra"

	"github.com/seedlab/sprout/internal/api"
	"github.com/seedlab/sprout/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "sprout",
	Short: "Seed packet to plant artifacts, generated asynchronously",
	Long: `Sprout turns a photo of a seed packet into a set of plant artifacts
using generative AI: a deep-research report, an illustrated growing
guide, and a mascot character for the plant.

A submission returns immediately with pollable job ids; generation
runs in the background and progress is streamed over server-sent
events.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.sprout/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "sprout home directory (default: ~/.sprout)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
