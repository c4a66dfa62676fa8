// Package cli implements reportctl, the operator command line for the
// report gateway HTTP API.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Build information (injected at compile time via ldflags)
var Version = "dev"

var (
	serverAddr string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:     "reportctl",
	Short:   "Manage report templates and data sources",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server",
		getEnv("LOANWATCH_SERVER", "http://localhost:8585"), "Report gateway base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output raw JSON")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(rescanCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(datasourceCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envelope mirrors the API response structure
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

var httpClient = &http.Client{Timeout: 60 * time.Second}

// apiCall performs a request against the gateway and unwraps the
// response envelope into out. A failed envelope becomes an error.
func apiCall(method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequest(method, serverAddr+"/api/v1"+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach gateway at %s: %w", serverAddr, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, truncate(raw, 200))
	}
	if !env.Success {
		return fmt.Errorf("%s", env.Error)
	}

	if jsonOutput {
		os.Stdout.Write(env.Data)
		fmt.Println()
		return nil
	}
	if out != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

// fetchDocument retrieves a rendered report, which is served as a raw
// document rather than a response envelope. Errors still arrive as
// envelopes and are unwrapped for display.
func fetchDocument(target string) ([]byte, error) {
	resp, err := httpClient.Get(target)
	if err != nil {
		return nil, fmt.Errorf("cannot reach gateway at %s: %w", serverAddr, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.Error != "" {
			return nil, fmt.Errorf("%s", env.Error)
		}
		return nil, fmt.Errorf("generation failed (%d): %s", resp.StatusCode, truncate(raw, 200))
	}

	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
