package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/seedlab/sprout/internal/docstore"
	"github.com/seedlab/sprout/internal/home"
)

var couchCmd = &cobra.Command{
	Use:   "couch",
	Short: "Manage the CouchDB container",
	Long: `Manage the CouchDB container lifecycle.

CouchDB is the source of truth for job records. The database runs in a
Docker container with data persisted to ~/.sprout/couchdb/.

Examples:
  sprout couch start   # Start the CouchDB container
  sprout couch stop    # Stop the container (data preserved)
  sprout couch status  # Check container status
  sprout couch logs    # View container logs`,
}

var couchStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the CouchDB container",
	Long: `Start the CouchDB container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.

Data is persisted to ~/.sprout/couchdb/.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getCouchManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting CouchDB...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start CouchDB: %w", err)
		}

		fmt.Printf("CouchDB is running at %s\n", mgr.URL())
		return nil
	},
}

var couchStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the CouchDB container",
	Long: `Stop the CouchDB container.

This stops the container but preserves data. Use 'sprout couch start'
to restart it later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getCouchManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping CouchDB...")
		if err := mgr.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop CouchDB: %w", err)
		}

		fmt.Println("CouchDB stopped")
		return nil
	},
}

var couchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show CouchDB container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getCouchManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case docstore.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("URL: %s\n", mgr.URL())

			username, password := mgr.Credentials()
			client := docstore.NewClient(docstore.ClientConfig{
				URL:      mgr.URL(),
				Username: username,
				Password: password,
			})
			if err := client.HealthCheck(ctx); err != nil {
				fmt.Printf("Health: unhealthy (%v)\n", err)
			} else {
				fmt.Println("Health: healthy")
			}
		case docstore.StatusStopped:
			fmt.Printf("Status: %s (use 'sprout couch start' to start)\n", status)
		case docstore.StatusNotFound:
			fmt.Printf("Status: %s (use 'sprout couch start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}

		return nil
	},
}

var couchLogsTail string

var couchLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show CouchDB container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getCouchManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(cmd.Context(), couchLogsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var couchRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the CouchDB container",
	Long: `Remove the CouchDB container.

This stops and removes the container. Data in ~/.sprout/couchdb/
is NOT deleted - only the container is removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getCouchManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing CouchDB container...")
		if err := mgr.Remove(cmd.Context()); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}

		fmt.Println("CouchDB container removed (data preserved)")
		return nil
	},
}

var couchWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for CouchDB to be ready",
	Long: `Wait for CouchDB to be ready to accept connections.

This is useful in scripts to ensure CouchDB is fully started
before running other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getCouchManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		fmt.Printf("Waiting for CouchDB (timeout: %s)...\n", timeout)

		if err := mgr.WaitReady(cmd.Context(), timeout); err != nil {
			return fmt.Errorf("CouchDB not ready: %w", err)
		}

		fmt.Println("CouchDB is ready")
		return nil
	},
}

func init() {
	couchCmd.AddCommand(couchStartCmd)
	couchCmd.AddCommand(couchStopCmd)
	couchCmd.AddCommand(couchStatusCmd)
	couchCmd.AddCommand(couchLogsCmd)
	couchCmd.AddCommand(couchRemoveCmd)
	couchCmd.AddCommand(couchWaitCmd)

	couchLogsCmd.Flags().StringVar(&couchLogsTail, "tail", "100", "Number of lines to show from the end")
	couchWaitCmd.Flags().Duration("timeout", 30*time.Second, "Timeout waiting for CouchDB")

	rootCmd.AddCommand(couchCmd)
}

// getCouchManager creates a DockerManager with the standard config.
func getCouchManager() (*docstore.DockerManager, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}

	dataPath := h.DataPath()
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return docstore.NewDockerManager(docstore.DockerConfig{
		DataPath: dataPath,
	})
}
