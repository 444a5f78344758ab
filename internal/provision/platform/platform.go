// Package platform detects the host distribution and installs the
// NetworkManager OpenVPN plugin the synthesized profiles depend on.
package platform

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	sharederrors "github.com/piatools/pia-provision/internal/shared/errors"
	"github.com/piatools/pia-provision/internal/shared/logger"
)

const osReleasePath = "/etc/os-release"

// packageSet names the distribution packages providing the
// NetworkManager OpenVPN plugin, plus the command that installs them.
type packageSet struct {
	packages []string
	command  []string // package names are appended
}

// packageTable maps /etc/os-release IDs to their plugin packages. IDs are
// lowercase as os-release specifies.
var packageTable = map[string]packageSet{
	"fedora": {
		packages: []string{"NetworkManager-openvpn", "NetworkManager-openvpn-gnome"},
		command:  []string{"dnf", "install", "-y"},
	},
	"ubuntu": {
		packages: []string{"network-manager-openvpn", "network-manager-openvpn-gnome"},
		command:  []string{"apt-get", "install", "-y"},
	},
	"debian": {
		packages: []string{"network-manager-openvpn", "network-manager-openvpn-gnome"},
		command:  []string{"apt-get", "install", "-y"},
	},
	"linuxmint": {
		packages: []string{"network-manager-openvpn", "network-manager-openvpn-gnome"},
		command:  []string{"apt-get", "install", "-y"},
	},
	"elementary": {
		packages: []string{"network-manager-openvpn", "network-manager-openvpn-gnome"},
		command:  []string{"apt-get", "install", "-y"},
	},
	"kali": {
		packages: []string{"network-manager-openvpn", "network-manager-openvpn-gnome"},
		command:  []string{"apt-get", "install", "-y"},
	},
	"arch": {
		packages: []string{"networkmanager-openvpn"},
		command:  []string{"pacman", "-S", "--noconfirm"},
	},
	"manjaro": {
		packages: []string{"networkmanager-openvpn"},
		command:  []string{"pacman", "-S", "--noconfirm"},
	},
	"opensuse-leap": {
		packages: []string{"NetworkManager-openvpn", "NetworkManager-openvpn-gnome"},
		command:  []string{"zypper", "install", "-y"},
	},
	"opensuse-tumbleweed": {
		packages: []string{"NetworkManager-openvpn", "NetworkManager-openvpn-gnome"},
		command:  []string{"zypper", "install", "-y"},
	},
}

// Platform describes the detected host distribution.
type Platform struct {
	// ID is the os-release ID field, lowercased ("fedora", "ubuntu", ...).
	ID string
	// PrettyName is the os-release PRETTY_NAME, for operator-facing output.
	PrettyName string
}

// Detect reads /etc/os-release and identifies the distribution.
func Detect() (*Platform, error) {
	f, err := os.Open(osReleasePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sharederrors.ErrUnsupportedOS, err)
	}
	defer f.Close()
	return parseOSRelease(f)
}

// parseOSRelease extracts the fields we care about from os-release syntax:
// KEY=value lines, values optionally double-quoted.
func parseOSRelease(r io.Reader) (*Platform, error) {
	p := &Platform{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "ID":
			p.ID = strings.ToLower(value)
		case "PRETTY_NAME":
			p.PrettyName = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse os-release: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: os-release has no ID field", sharederrors.ErrUnsupportedOS)
	}
	return p, nil
}

// Supported reports whether a plugin package set is known for this
// distribution.
func (p *Platform) Supported() bool {
	_, ok := packageTable[p.ID]
	return ok
}

// ConfirmFunc asks the operator whether a package may be installed.
type ConfirmFunc func(pkg string) (bool, error)

// TerminalConfirm prompts on the given streams and accepts "y"/"yes".
func TerminalConfirm(in io.Reader, out io.Writer) ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(pkg string) (bool, error) {
		fmt.Fprintf(out, "Installing %s. OK? (y/n): ", pkg)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes", nil
	}
}

// Installer installs the NetworkManager plugin packages for one platform.
type Installer struct {
	platform *Platform
	confirm  ConfirmFunc
	logger   *logger.Logger

	// runCommand is swapped out in tests.
	runCommand func(ctx context.Context, name string, args ...string) error
}

// NewInstaller creates an installer. confirm is consulted once per package;
// nil means install without asking.
func NewInstaller(p *Platform, confirm ConfirmFunc, log *logger.Logger) *Installer {
	if log == nil {
		log = logger.NewDevelopment("platform")
	}
	return &Installer{
		platform: p,
		confirm:  confirm,
		logger:   log,
		runCommand: func(ctx context.Context, name string, args ...string) error {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Stdin = os.Stdin
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			return cmd.Run()
		},
	}
}

// InstallPlugin installs the OpenVPN plugin packages for the platform.
// A declined package aborts: the profiles are useless without the plugin.
func (i *Installer) InstallPlugin(ctx context.Context) error {
	set, ok := packageTable[i.platform.ID]
	if !ok {
		return fmt.Errorf("%w: %s", sharederrors.ErrUnsupportedOS, i.platform.ID)
	}

	for _, pkg := range set.packages {
		if i.confirm != nil {
			ok, err := i.confirm(pkg)
			if err != nil {
				return fmt.Errorf("failed to read confirmation: %w", err)
			}
			if !ok {
				return fmt.Errorf("%w: %s", sharederrors.ErrInstallDeclined, pkg)
			}
		}

		args := append(append([]string{}, set.command[1:]...), pkg)
		i.logger.Info("installing package", "package", pkg, "distro", i.platform.ID)
		if err := i.runCommand(ctx, set.command[0], args...); err != nil {
			return fmt.Errorf("failed to install %s: %w", pkg, err)
		}
	}
	return nil
}

// RequireRoot checks for effective uid 0. Writing under /etc needs it.
func RequireRoot() error {
	if os.Geteuid() != 0 {
		return sharederrors.ErrNotRoot
	}
	return nil
}
