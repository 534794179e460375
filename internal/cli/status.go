package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/coinflow-app/coinflow/internal/daemon"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringP("config", "c", "", "Path to config file (default ~/.coinflow/config.toml)")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running daemon",
	Long:  `Check whether the local CoinFlow daemon is up and print its active configuration snapshots.`,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}
	base := "http://" + cfg.API.Addr()
	client := &http.Client{Timeout: 3 * time.Second}

	resp, err := client.Get(base + "/healthz")
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w", base, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon unhealthy: %s", resp.Status)
	}
	fmt.Fprintf(os.Stdout, "Daemon running at %s\n", base)

	resp, err = client.Get(base + "/api/config")
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	defer resp.Body.Close()

	var snapshot map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	out, _ := json.MarshalIndent(snapshot, "", "  ")
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
