package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/piatools/pia-provision/internal/provision"
	"github.com/piatools/pia-provision/internal/provision/config"
	"github.com/piatools/pia-provision/internal/provision/credentials"
	"github.com/piatools/pia-provision/internal/provision/platform"
	"github.com/piatools/pia-provision/internal/provision/store"
	"github.com/piatools/pia-provision/internal/shared/logger"
	"github.com/piatools/pia-provision/pkg/events"
)

// Exit codes: the caller can tell a run that changed nothing from one that
// left the store partially updated.
const (
	exitNothingChanged   = 1
	exitPartiallyChanged = 2
)

// provisionCmd runs the full provisioning pipeline
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Fetch the server directory and rebuild the connection profiles",
	Long: `Fetch the PIA server directory, render one NetworkManager profile per
region and replace the previously provisioned profiles in the connection
store. The PIA certificate authority is installed first and NetworkManager
is reloaded afterwards.

Examples:
  # Provision interactively (asks for username and password)
  sudo pia-provision provision

  # Provision for a known account
  sudo pia-provision provision --login p1234567

  # Keep the password out of the profiles; NetworkManager asks at connect time
  sudo pia-provision provision --login p1234567 --no-password

  # Refresh profiles without re-checking the OpenVPN plugin packages
  sudo pia-provision provision --skip-install`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)

		// Flag overrides
		if url, _ := cmd.Flags().GetString("directory-url"); url != "" {
			cfg.DirectoryURL = url
		}
		if dir, _ := cmd.Flags().GetString("store-dir"); dir != "" {
			cfg.StoreDir = dir
		}
		noPassword, _ := cmd.Flags().GetBool("no-password")
		if noPassword {
			cfg.EmbedPassword = false
		}

		log := logger.New(logger.Config{
			Level:     logger.LogLevel(cfg.LogLevel),
			Format:    logger.OutputFormat(cfg.LogFormat),
			Component: "provision",
		})

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if skip, _ := cmd.Flags().GetBool("skip-install"); !skip {
			ensurePlugin(ctx, log)
		}

		login, _ := cmd.Flags().GetString("login")
		creds := credentialProvider(cfg, login, noPassword)

		provisioner, err := provision.New(cfg, creds, log)
		if err != nil {
			fmt.Printf("Failed to set up provisioning: %v\n", err)
			os.Exit(exitNothingChanged)
		}

		provisioner.Events().Subscribe(provision.EventStageCompleted, func(ev events.Event) error {
			fmt.Printf("  ✓ %s\n", ev.Metadata()["stage"])
			return nil
		})

		fmt.Printf("Provisioning PIA profiles into %s\n", cfg.StoreDir)
		result, err := provisioner.Run(ctx)
		if err != nil {
			fmt.Printf("\nProvisioning failed: %v\n", err)

			var partial *store.PartialWriteError
			if errors.As(err, &partial) {
				fmt.Printf("Profiles written before the failure (%d):\n", len(partial.Written))
				for _, name := range partial.Written {
					fmt.Printf("  - %s\n", name)
				}
				os.Exit(exitPartiallyChanged)
			}
			os.Exit(exitNothingChanged)
		}

		fmt.Printf("\nProvisioned %d profiles (%d stale removed)\n",
			len(result.Written), len(result.Removed))
		if result.ReloadErr != nil {
			fmt.Printf("NetworkManager could not be reloaded: %v\n", result.ReloadErr)
			fmt.Printf("Reload it manually, e.g.: sudo systemctl restart NetworkManager.service\n")
		}
	},
}

// ensurePlugin makes sure the NetworkManager OpenVPN plugin is present.
// Detection failures only warn: on an unknown distribution the operator may
// have installed the plugin by other means.
func ensurePlugin(ctx context.Context, log *logger.Logger) {
	if err := platform.RequireRoot(); err != nil {
		fmt.Printf("Error: %v\n", err)
		fmt.Printf("Writing to the connection store requires root. Re-run with sudo,\n")
		fmt.Printf("or use --store-dir and --skip-install to provision elsewhere.\n")
		os.Exit(exitNothingChanged)
	}

	p, err := platform.Detect()
	if err != nil {
		log.Warn("distribution detection failed, skipping package install", "error", err)
		return
	}
	if !p.Supported() {
		log.Warn("no package table for this distribution, skipping package install",
			"distro", p.ID)
		return
	}

	fmt.Printf("Your distribution appears to be %s.\n", p.PrettyName)
	installer := platform.NewInstaller(p, platform.TerminalConfirm(os.Stdin, os.Stdout), log)
	if err := installer.InstallPlugin(ctx); err != nil {
		fmt.Printf("Package installation failed: %v\n", err)
		os.Exit(exitNothingChanged)
	}
}

// credentialProvider picks the credentials source for this run. A login
// given together with --no-password needs no prompting at all.
func credentialProvider(cfg *config.Config, login string, noPassword bool) credentials.Provider {
	if login != "" && noPassword {
		return credentials.Static{Creds: credentials.Credentials{Login: login}}
	}
	if login != "" {
		return &credentials.Terminal{Login: login}
	}
	if cfg.CredentialSource == "keyring" {
		return &credentials.Keyring{}
	}
	return &credentials.Terminal{}
}

// loadConfig loads configuration, honoring the persistent --config flag.
func loadConfig(cmd *cobra.Command) *config.Config {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.LoadWithPath(path)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(exitNothingChanged)
		}
		return cfg
	}

	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(exitNothingChanged)
	}
	return cfg
}

func init() {
	rootCmd.AddCommand(provisionCmd)

	provisionCmd.Flags().String("login", "", "PIA account login (skips the username prompt)")
	provisionCmd.Flags().Bool("no-password", false, "Do not embed the password; NetworkManager prompts at connect time")
	provisionCmd.Flags().String("directory-url", "", "Override the server directory URL")
	provisionCmd.Flags().String("store-dir", "", "Override the NetworkManager connection store directory")
	provisionCmd.Flags().Bool("skip-install", false, "Skip the OpenVPN plugin package check")
}
