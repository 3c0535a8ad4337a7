package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lensgate/lensgate/internal/dispatch"
	"github.com/lensgate/lensgate/internal/output"
)

var (
	statusOutput string
	statusAddr   string
)

var statusClient = &http.Client{Timeout: 5 * time.Second}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dispatch status of a running server",
	Long: `Show the dispatch status of a running server: operating mode, rate gate
counts and the credential ring with exhaustion timestamps. Secrets are shown
as redacted suffixes only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(statusOutput)
		if err != nil {
			return err
		}

		addr := statusAddr
		if addr == "" {
			addr = fmt.Sprintf("http://%s:%d", viper.GetString("server.host"), viper.GetInt("server.port"))
		}

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, addr+"/v1/dispatch/status", nil)
		if err != nil {
			return err
		}

		resp, err := statusClient.Do(req)
		if err != nil {
			return fmt.Errorf("dispatch server unreachable at %s: %w", addr, err)
		}
		defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("dispatch server returned %s", resp.Status)
		}

		var status dispatch.Status
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return fmt.Errorf("decode status response: %w", err)
		}

		rendered, err := output.FormatStatus(format, status)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "Server base URL (default from server.host/server.port config)")
}
