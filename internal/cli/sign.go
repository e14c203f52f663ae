package cli

import (
	"errors"
	"fmt"

	"github.com/harun/lineapi/pkg/webhook"
	"github.com/spf13/cobra"
)

var (
	signFile   string
	signSecret string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Compute the X-Line-Signature of a request body",
	Long: `Compute the X-Line-Signature header value for a webhook body, e.g. to
replay a captured delivery against a local server with curl. The body is
read from --file or stdin; the secret defaults to the configured channel secret.`,
	Args: cobra.NoArgs,
	RunE: runSign,
}

func init() {
	signCmd.Flags().StringVar(&signFile, "file", "", "request body file (default stdin)")
	signCmd.Flags().StringVar(&signSecret, "secret", "", "channel secret, overrides the config file")
	rootCmd.AddCommand(signCmd)
}

func runSign(cmd *cobra.Command, args []string) error {
	secret := signSecret
	if secret == "" {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		secret = cfg.Line.ChannelSecret
	}
	if secret == "" {
		return errors.New("channel secret is required (--secret or line.channel_secret)")
	}

	body, err := readInput(cmd, signFile)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), webhook.Sign(body, secret))
	return nil
}
