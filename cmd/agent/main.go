// agent watches a POS gateway's export directory and uploads new shift
// reports to the ingest backend.
//
// Usage:
//
//	agent start --config agent.toml
//	agent dry-run --config agent.toml
//	agent test-upload --config agent.toml --file /exports/shift1.xml
//	agent health --config agent.toml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/forecourtlabs/pos_backend/agent"
	"github.com/forecourtlabs/pos_backend/config"
	"github.com/spf13/cobra"
)

var configPath string

func newRuntime() (*agent.Runtime, error) {
	cfg, err := agent.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return agent.NewRuntime(cfg, config.GetLogger()), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "POS shift-report upload agent",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Watch the export directory and upload new files",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		return rt.Run(ctx, false)
	},
}

var dryRunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Log matching files without uploading anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		return rt.Run(ctx, true)
	},
}

var testUploadFile string

var testUploadCmd = &cobra.Command{
	Use:   "test-upload",
	Short: "Upload a single file and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		return rt.ProcessFile(ctx, testUploadFile)
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()
		if err := rt.Client.Health(ctx); err != nil {
			return fmt.Errorf("backend check failed: %w", err)
		}
		fmt.Println("Backend reachable")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "agent.toml", "path to the agent TOML config")
	testUploadCmd.Flags().StringVar(&testUploadFile, "file", "", "file to upload")
	_ = testUploadCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(startCmd, dryRunCmd, testUploadCmd, healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
