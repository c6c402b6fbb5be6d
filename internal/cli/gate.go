package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/autosync/internal/gate"
	"github.com/roach88/autosync/internal/store"
)

// GateListResult holds the switches printed by gate list.
type GateListResult struct {
	Switches []store.Switch `json:"switches"`
}

// NewGateCommand creates the gate command and its set, get and list
// subcommands.
func NewGateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Manage per-organization feature gates",
		Long: `Set and query the feature switches that route an organization to the
legacy or the new representation. Gates never affect synchronization.`,
	}

	cmd.AddCommand(newGateSetCommand(rootOpts))
	cmd.AddCommand(newGateGetCommand(rootOpts))
	cmd.AddCommand(newGateListCommand(rootOpts))

	return cmd
}

func newGateSetCommand(rootOpts *RootOptions) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:           "set <organization> <feature> <on|off>",
		Short:         "Turn a feature on or off for an organization",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var active bool
			switch args[2] {
			case "on":
				active = true
			case "off":
			default:
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid state %q: must be on or off", args[2]))
			}
			return withGates(cmd, rootOpts, func(ctx context.Context, g *gate.Gates, f *OutputFormatter) error {
				org, feature := args[0], args[1]
				if !slices.Contains(gate.Features(), feature) {
					f.VerboseLog("%s is not a known feature", feature)
				}
				if err := g.Set(ctx, feature, org, active, note); err != nil {
					return WrapExitError(ExitFailure, "failed to set switch", err)
				}
				sw := store.Switch{Organization: org, Feature: feature, Active: active, Note: note}
				return f.Render(sw, func(w io.Writer) { fmt.Fprintln(w, gate.Describe(sw)) })
			})
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "free-form note stored with the switch")

	return cmd
}

func newGateGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <organization> <feature>",
		Short:         "Show whether a feature is active for an organization",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withGates(cmd, rootOpts, func(ctx context.Context, g *gate.Gates, f *OutputFormatter) error {
				org, feature := args[0], args[1]
				active, err := g.IsActive(ctx, feature, org)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read switch", err)
				}
				sw := store.Switch{Organization: org, Feature: feature, Active: active}
				return f.Render(sw, func(w io.Writer) { fmt.Fprintln(w, gate.Describe(sw)) })
			})
		},
	}
}

func newGateListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list [organization]",
		Short:         "List stored switches",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			org := ""
			if len(args) == 1 {
				org = args[0]
			}
			return withGates(cmd, rootOpts, func(ctx context.Context, g *gate.Gates, f *OutputFormatter) error {
				switches, err := g.List(ctx, org)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to list switches", err)
				}
				return f.Render(GateListResult{Switches: switches}, func(w io.Writer) {
					if len(switches) == 0 {
						fmt.Fprintln(w, "No switches set.")
					}
					for _, sw := range switches {
						fmt.Fprintln(w, gate.Describe(sw))
					}
				})
			})
		},
	}
}

// withGates opens the --db store for the duration of fn.
func withGates(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, g *gate.Gates, f *OutputFormatter) error) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, gate.New(st), newFormatter(opts, cmd))
}
