package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/phonebridge/internal/radio"
)

// OpcodeInfo describes one opcode for the opcodes command.
type OpcodeInfo struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"` // zero payload, usable as an --args template
}

// NewOpcodesCommand creates the opcodes command.
func NewOpcodesCommand(rootOpts *RootOptions) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "opcodes",
		Short: "List opcodes and their argument templates",
		Long: `List every opcode the bridge accepts, sorted by name, with the zero value
of its arguments. The template can be edited and passed to "call --args".

Examples:
  phonebridge opcodes
  phonebridge opcodes --filter CHANNEL --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := listOpcodes(filter)
			if err != nil {
				return err
			}
			out := NewOutputFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if out.Format == "json" {
				return out.Success(infos)
			}
			for _, info := range infos {
				fmt.Fprintf(out.Writer, "%-34s %s\n", info.Name, info.Args)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "only opcodes whose name contains this text")

	return cmd
}

func listOpcodes(filter string) ([]OpcodeInfo, error) {
	filter = strings.ToUpper(filter)
	infos := make([]OpcodeInfo, 0, len(radio.Opcodes()))
	for _, op := range radio.Opcodes() {
		if !strings.Contains(op.String(), filter) {
			continue
		}
		tmpl, err := json.Marshal(radio.NewPayload(op))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		infos = append(infos, OpcodeInfo{Name: op.String(), Args: tmpl})
	}
	return infos, nil
}
