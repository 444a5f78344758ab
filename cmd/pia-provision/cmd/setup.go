package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/piatools/pia-provision/internal/provision/config"
	"github.com/piatools/pia-provision/internal/provision/credentials"
)

// setupCmd creates the configuration file and optionally stores credentials
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the pia-provision configuration",
	Long: `Create a default configuration file in your home directory and show the
resulting settings.

Examples:
  # Create the default configuration
  pia-provision setup

  # Also store your PIA credentials in the system keyring
  pia-provision setup --store-credentials`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Setting up pia-provision...\n\n")

		path, err := config.CreateDefaultConfig()
		if err != nil {
			if err.Error() == "config file already exists" {
				fmt.Printf("Configuration already exists\n")
				fmt.Printf("Edit %s to customize settings\n\n", path)
			} else {
				fmt.Printf("Failed to create configuration: %v\n", err)
				os.Exit(1)
			}
		} else {
			fmt.Printf("Created default configuration at %s\n\n", path)
		}

		cfg, err := config.NewLoader().Load()
		if err != nil {
			fmt.Printf("Failed to load configuration: %v\n", err)
			os.Exit(1)
		}

		if storeCreds, _ := cmd.Flags().GetBool("store-credentials"); storeCreds {
			if err := storeInKeyring(cmd.Context()); err != nil {
				fmt.Printf("Failed to store credentials: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Credentials stored in the system keyring\n")
			fmt.Printf("Set credential_source: keyring to use them\n\n")
		}

		fmt.Printf("Current Configuration:\n")
		fmt.Printf("=====================\n")
		fmt.Printf("Directory URL: %s\n", cfg.DirectoryURL)
		fmt.Printf("Store Dir: %s\n", cfg.StoreDir)
		fmt.Printf("CA Path: %s\n", cfg.CAPath)
		fmt.Printf("Embed Password: %t\n", cfg.EmbedPassword)
		fmt.Printf("Credential Source: %s\n", cfg.CredentialSource)
		fmt.Printf("Reload Mode: %s\n", cfg.ReloadMode)
		fmt.Printf("Log Level: %s\n", cfg.LogLevel)

		fmt.Printf("\nNext Steps:\n")
		fmt.Printf("===========\n")
		fmt.Printf("1. Review the configuration file\n")
		fmt.Printf("2. Provision profiles: sudo pia-provision provision\n")
		fmt.Printf("3. Pick a 'PIA - <region>' connection in NetworkManager\n\n")

		fmt.Printf("Tips:\n")
		fmt.Printf("   - Use PIA_PROVISION_* environment variables to override settings\n")
		fmt.Printf("   - Use --no-password to keep your password out of the profiles\n")
	},
}

// storeInKeyring prompts for credentials and saves them in the keyring.
func storeInKeyring(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	terminal := &credentials.Terminal{}
	creds, err := terminal.Credentials(ctx)
	if err != nil {
		return err
	}
	return (&credentials.Keyring{}).Store(creds)
}

func init() {
	rootCmd.AddCommand(setupCmd)

	setupCmd.Flags().Bool("store-credentials", false, "Prompt for PIA credentials and store them in the system keyring")
}
