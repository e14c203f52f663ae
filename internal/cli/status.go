package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/gojektech/heimdall/v6/httpclient"
	"github.com/harun/lineapi/internal/config"
	"github.com/harun/lineapi/internal/daemon"
	"github.com/harun/lineapi/pkg/webhook"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show webhook server status",
	Long:  `Show whether a lineapi server started with "lineapi serve" is running.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	pidFile := getPIDFilePath()

	if !daemon.IsRunning(pidFile) {
		fmt.Fprintln(out, "Status: stopped")
		return nil
	}

	pid, err := daemon.ReadPID(pidFile)
	if err != nil {
		return fmt.Errorf("failed to read PID file: %w", err)
	}

	fmt.Fprintf(out, "Status: running\n")
	fmt.Fprintf(out, "PID: %d\n", pid)
	if info, err := os.Stat(pidFile); err == nil {
		fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Since(info.ModTime())))
	}

	// Counters are best effort; the server may still be starting
	if cfg, err := loadConfig(); err == nil {
		if health, err := fetchHealth(cfg); err == nil {
			fmt.Fprintf(out, "Deliveries: %d accepted, %d rejected\n", health.Deliveries.Accepted, health.Deliveries.Rejected)
			for _, ks := range health.Events {
				fmt.Fprintf(out, "  %s: %d processed, %d duplicates\n", ks.Kind, ks.Processed, ks.Duplicates)
			}
		}
	}

	return nil
}

type healthReport struct {
	Status     string                `json:"status"`
	Deliveries webhook.DeliveryStats `json:"deliveries"`
	Events     []webhook.KindStats   `json:"events"`
}

// fetchHealth reads the running server's health route
func fetchHealth(cfg *config.Config) (*healthReport, error) {
	host := cfg.Webhook.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	url := "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Webhook.Port)) + webhook.HealthPath

	client := httpclient.NewClient(httpclient.WithHTTPTimeout(2 * time.Second))
	resp, err := client.Get(url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	defer resp.Body.Close()

	var report healthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode health report: %w", err)
	}
	return &report, nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
