package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"mangawatch/internal/daemonctl"
	"mangawatch/internal/daemonrun"
)

const daemonStartTimeout = 10 * time.Second

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newStartCommand(ctx),
		newStopCommand(ctx),
		newDaemonRunCommand(ctx),
	}
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the mangawatch daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.apiClient()
			if _, err := client.Status(cmd.Context()); err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is already running.")
				return nil
			}

			executable, err := resolveDaemonExecutable()
			if err != nil {
				return err
			}
			opts := daemonctl.LaunchOptions{LogLevel: logLevel}
			if ctx.configFlag != nil {
				opts.ConfigPath = *ctx.configFlag
			}
			if err := daemonctl.Launch(executable, opts); err != nil {
				return err
			}
			if err := daemonctl.WaitForAPI(cmd.Context(), client, daemonStartTimeout); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Daemon started.")
			return nil
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level for the launched daemon")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running mangawatch daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			signalled, err := daemonctl.Terminate(cfg)
			if err != nil {
				return err
			}
			if !signalled {
				fmt.Fprintln(cmd.OutOrStdout(), "No running daemon found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Stop signal sent.")
			return nil
		},
	}
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level override")
	return cmd
}

// resolveDaemonExecutable finds mangawatchd next to the CLI binary first,
// falling back to PATH.
func resolveDaemonExecutable() (string, error) {
	self, err := os.Executable()
	if err == nil {
		sibling := filepath.Join(filepath.Dir(self), "mangawatchd")
		if info, statErr := os.Stat(sibling); statErr == nil && !info.IsDir() {
			return sibling, nil
		}
	}
	path, err := exec.LookPath("mangawatchd")
	if err != nil {
		return "", fmt.Errorf("locate mangawatchd: %w", err)
	}
	return path, nil
}
