package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command for the pia-provision CLI
var rootCmd = &cobra.Command{
	Use:   "pia-provision",
	Short: "Provision PIA VPN profiles for NetworkManager",
	Long: `pia-provision keeps the NetworkManager connection store in sync with
Private Internet Access's server directory. It fetches the current region
list, renders one OpenVPN connection profile per region, installs the PIA
certificate authority and tells NetworkManager to pick up the changes.

Run 'pia-provision setup' once to create a configuration file, then
'pia-provision provision' whenever you want to refresh the profiles.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a configuration file (default: search /etc/pia-provision, $HOME, .)")
}
