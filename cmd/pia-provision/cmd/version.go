package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/piatools/pia-provision/pkg/version"
)

// versionCmd prints build metadata
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pia-provision version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
