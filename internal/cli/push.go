package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harun/lineapi/pkg/flex"
	"github.com/harun/lineapi/pkg/messaging"
	"github.com/spf13/cobra"
)

var (
	pushTo      string
	pushText    string
	pushFlex    string
	pushAltText string
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Send a push message",
	Long: `Send a text or flex message to a user, group or room with the push API.
Requires a channel access token. A flex file may hold a full flex message or
a bare bubble or carousel, which is wrapped using --alt-text.`,
	Args: cobra.NoArgs,
	RunE: runPush,
}

func init() {
	pushCmd.Flags().StringVar(&pushTo, "to", "", "user, group or room id")
	pushCmd.Flags().StringVar(&pushText, "text", "", "text message")
	pushCmd.Flags().StringVar(&pushFlex, "flex", "", "flex JSON file")
	pushCmd.Flags().StringVar(&pushAltText, "alt-text", "Flex message", "alt text when --flex holds a bare container")
	_ = pushCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	messages, err := buildPushMessages(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	client, err := messaging.NewClient(messaging.Options{
		ChannelAccessToken: cfg.Line.ChannelAccessToken,
		APIBaseURL:         cfg.Line.APIBaseURL,
		DataAPIBaseURL:     cfg.Line.DataAPIBaseURL,
		Timeout:            cfg.APITimeout(),
		RetryCount:         cfg.Line.RetryCount,
		Logger:             log.GetZerolog(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.APITimeout()*time.Duration(cfg.Line.RetryCount+1))
	defer cancel()

	sent, err := client.PushMessage(ctx, pushTo, messages...)
	if err != nil {
		return fmt.Errorf("push failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, m := range sent.SentMessages {
		fmt.Fprintf(out, "sent %s\n", m.ID)
	}
	return nil
}

func buildPushMessages(cmd *cobra.Command) ([]messaging.Message, error) {
	var messages []messaging.Message

	if pushText != "" {
		messages = append(messages, messaging.TextMessage{Text: pushText})
	}

	if pushFlex != "" {
		data, err := readInput(cmd, pushFlex)
		if err != nil {
			return nil, err
		}
		v, err := flex.Decode(data)
		if err != nil {
			return nil, describeFlexError(cmd, err)
		}
		switch typed := v.(type) {
		case *flex.Message:
			messages = append(messages, typed)
		case flex.Container:
			messages = append(messages, flex.NewMessage(pushAltText, typed))
		}
	}

	if len(messages) == 0 {
		return nil, errors.New("nothing to send: use --text or --flex")
	}
	return messages, nil
}
