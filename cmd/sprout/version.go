package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seedlab/sprout/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.String())
	},
}
