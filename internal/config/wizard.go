package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a wizard reading answers from in and writing prompts to out
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run asks for the channel credentials and webhook settings, starting
// from base (or the defaults when nil)
func (w *Wizard) Run(base *Config) (*Config, error) {
	fmt.Fprintln(w.out, "=== lineapi Configuration Wizard ===")
	fmt.Fprintln(w.out)

	cfg := DefaultConfig()
	if base != nil {
		copied := *base
		cfg = &copied
	}
	validator := NewValidator()

	fmt.Fprintln(w.out, "LINE channel (from the LINE Developers console):")
	fmt.Fprintln(w.out)

	for {
		secret, err := w.prompt("Channel secret", cfg.Line.ChannelSecret)
		if err != nil {
			return nil, err
		}
		if err := validator.ValidateChannelSecret(secret); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Line.ChannelSecret = secret
		break
	}

	for {
		token, err := w.prompt("Channel access token (press Enter to skip)", cfg.Line.ChannelAccessToken)
		if err != nil {
			return nil, err
		}
		if token == "" {
			break
		}
		if err := validator.ValidateChannelAccessToken(token); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Line.ChannelAccessToken = token
		break
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Webhook server:")

	for {
		answer, err := w.prompt("Port", strconv.Itoa(cfg.Webhook.Port))
		if err != nil {
			return nil, err
		}
		port, err := strconv.Atoi(answer)
		if err == nil {
			err = validator.ValidatePort(port)
		}
		if err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}
		cfg.Webhook.Port = port
		break
	}

	path, err := w.prompt("Path", cfg.Webhook.Path)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidatePath(path); err != nil {
		fmt.Fprintf(w.out, "Warning: %v, using default (%s)\n", err, cfg.Webhook.Path)
	} else {
		cfg.Webhook.Path = path
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Logging:")
	level, err := w.prompt("Log level (debug/info/warn/error)", cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateLogLevel(level); err != nil {
		fmt.Fprintf(w.out, "Warning: %v, using default (%s)\n", err, cfg.Logging.Level)
	} else {
		cfg.Logging.Level = level
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

// prompt prints label with its current value and returns the answer, or
// current when the answer is empty. Secrets are never echoed back.
func (w *Wizard) prompt(label, current string) (string, error) {
	shown := current
	if strings.Contains(strings.ToLower(label), "secret") || strings.Contains(strings.ToLower(label), "token") {
		shown = mask(current)
	}
	if shown != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", label, shown)
	} else {
		fmt.Fprintf(w.out, "%s: ", label)
	}

	answer, err := w.readLine()
	if err != nil {
		return "", err
	}
	if answer == "" {
		return current, nil
	}
	return answer, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
