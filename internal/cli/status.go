package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lunarc/sash/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether a sashd daemon is running",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	base := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	client := &http.Client{Timeout: 3 * time.Second}

	resp, err := client.Get(base + "/healthz")
	if err != nil {
		fmt.Println("sashd is not running")
		return nil
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("sashd responded with status %d\n", resp.StatusCode)
		return nil
	}

	fmt.Printf("sashd is running at %s\n", base)

	sessions, err := fetchSessionCount(client, base, cfg.Server.SharedSecret)
	if err == nil {
		fmt.Printf("live sessions: %d\n", sessions)
	}
	return nil
}

func fetchSessionCount(client *http.Client, base, secret string) (int, error) {
	body, _ := json.Marshal(map[string]any{
		"id":      "status",
		"method":  "session.list",
		"jsonrpc": "2.0",
	})

	req, err := http.NewRequest(http.MethodPost, base+"/rpc", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Sash-Secret", secret)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result struct {
			Sessions []string `json:"sessions"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return 0, err
	}
	return len(rpcResp.Result.Sessions), nil
}
