package cli

import (
	"errors"
	"fmt"

	"github.com/harun/lineapi/pkg/flex"
	"github.com/spf13/cobra"
)

var flexCmd = &cobra.Command{
	Use:   "flex",
	Short: "Validate and format flex message JSON",
}

var flexValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a flex message, bubble or carousel",
	Long: `Check a flex message, bubble or carousel against the flex schema and
the layout rules. Use "-" to read stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runFlexValidate,
}

var flexPrintCmd = &cobra.Command{
	Use:   "print <file>",
	Short: "Validate and pretty-print flex JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlexPrint,
}

func init() {
	flexCmd.AddCommand(flexValidateCmd)
	flexCmd.AddCommand(flexPrintCmd)
	rootCmd.AddCommand(flexCmd)
}

func runFlexValidate(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	v, err := flex.Decode(data)
	if err != nil {
		return describeFlexError(cmd, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "valid %s\n", flexKind(v))
	return nil
}

func runFlexPrint(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	v, err := flex.Decode(data)
	if err != nil {
		return describeFlexError(cmd, err)
	}

	return flex.Print(cmd.OutOrStdout(), v)
}

// describeFlexError lists each validation problem on its own line
func describeFlexError(cmd *cobra.Command, err error) error {
	var verr *flex.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	out := cmd.ErrOrStderr()
	for _, problem := range verr.Problems {
		fmt.Fprintf(out, "  - %s\n", problem)
	}
	return fmt.Errorf("invalid flex JSON: %d problem(s)", len(verr.Problems))
}

func flexKind(v interface{}) string {
	switch v.(type) {
	case *flex.Message:
		return "flex message"
	case *flex.Bubble:
		return "bubble"
	case *flex.Carousel:
		return "carousel"
	default:
		return fmt.Sprintf("%T", v)
	}
}
