// Package netreload tells NetworkManager to pick up freshly written
// connection profiles.
package netreload

import (
	"context"
	"os"
	"os/exec"

	"github.com/godbus/dbus/v5"

	sharederrors "github.com/piatools/pia-provision/internal/shared/errors"
	"github.com/piatools/pia-provision/internal/shared/logger"
)

// Reloader signals the network management daemon that its configuration
// changed. Implementations must be safe to call after a partial
// reconciliation: reloading a half-updated store is still better than
// serving stale profiles.
type Reloader interface {
	Reload(ctx context.Context) error
}

const (
	nmBusName    = "org.freedesktop.NetworkManager"
	nmObjectPath = "/org/freedesktop/NetworkManager"
	nmReload     = "org.freedesktop.NetworkManager.Reload"

	// reloadAll asks the daemon to reload everything it can; individual
	// flag bits select config-only or DNS-only reloads, which is narrower
	// than we want after rewriting the connection store.
	reloadAll = uint32(0)
)

// DBusReloader calls NetworkManager's Reload method over the system bus.
// This is the preferred path: no subprocess, no interface flap.
type DBusReloader struct {
	logger *logger.Logger
}

func NewDBusReloader(log *logger.Logger) *DBusReloader {
	if log == nil {
		log = logger.NewDevelopment("netreload")
	}
	return &DBusReloader{logger: log}
}

func (r *DBusReloader) Reload(ctx context.Context) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return sharederrors.NewReloadError("system bus connect", err)
	}
	defer conn.Close()

	obj := conn.Object(nmBusName, dbus.ObjectPath(nmObjectPath))
	if call := obj.CallWithContext(ctx, nmReload, 0, reloadAll); call.Err != nil {
		return sharederrors.NewReloadError("NetworkManager.Reload", call.Err)
	}

	r.logger.Info("NetworkManager reloaded", "via", "dbus")
	return nil
}

// ExecReloader restarts the daemon through the service manager, for hosts
// where the caller cannot reach the system bus. systemd is tried first,
// then OpenRC.
type ExecReloader struct {
	logger *logger.Logger

	// runCommand is swapped out in tests.
	runCommand func(ctx context.Context, name string, args ...string) error
}

func NewExecReloader(log *logger.Logger) *ExecReloader {
	if log == nil {
		log = logger.NewDevelopment("netreload")
	}
	return &ExecReloader{
		logger: log,
		runCommand: func(ctx context.Context, name string, args ...string) error {
			cmd := exec.CommandContext(ctx, name, args...)
			cmd.Stdout = os.Stdout
			cmd.Stderr = os.Stderr
			return cmd.Run()
		},
	}
}

func (r *ExecReloader) Reload(ctx context.Context) error {
	name, args := r.restartCommand()
	if err := r.runCommand(ctx, name, args...); err != nil {
		return sharederrors.NewReloadError(name, err)
	}
	r.logger.Info("NetworkManager restarted", "via", name)
	return nil
}

func (r *ExecReloader) restartCommand() (string, []string) {
	if _, err := os.Stat("/bin/systemctl"); err == nil {
		return "systemctl", []string{"restart", "NetworkManager.service"}
	}
	if _, err := exec.LookPath("systemctl"); err == nil {
		return "systemctl", []string{"restart", "NetworkManager.service"}
	}
	return "rc-service", []string{"NetworkManager", "restart"}
}

// NopReloader skips the reload step entirely, for --no-reload runs and
// containers without a network daemon.
type NopReloader struct {
	logger *logger.Logger
}

func NewNopReloader(log *logger.Logger) *NopReloader {
	if log == nil {
		log = logger.NewDevelopment("netreload")
	}
	return &NopReloader{logger: log}
}

func (r *NopReloader) Reload(ctx context.Context) error {
	r.logger.Info("skipping NetworkManager reload")
	return nil
}

// ForMode maps a configured reload mode to an implementation. Unknown
// values fall back to D-Bus, the mode that works on every mainstream
// distribution.
func ForMode(mode string, log *logger.Logger) Reloader {
	switch mode {
	case "exec":
		return NewExecReloader(log)
	case "none":
		return NewNopReloader(log)
	default:
		return NewDBusReloader(log)
	}
}
