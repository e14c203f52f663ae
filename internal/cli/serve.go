package cli

import (
	"fmt"

	"github.com/harun/lineapi/internal/daemon"
	"github.com/spf13/cobra"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long: `Run the webhook server in the foreground until SIGINT or SIGTERM.
Deliveries are verified, de-duplicated and dispatched. With a channel access
token the echo bot answers text messages; with NATS enabled every event is
relayed to <subject_prefix>.<kind>.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port, overrides the config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if servePort != 0 {
		cfg.Webhook.Port = servePort
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log, daemon.Options{PIDFile: getPIDFilePath()})
	if err != nil {
		return err
	}
	if err := d.Start(); err != nil {
		return err
	}

	return d.Wait()
}
