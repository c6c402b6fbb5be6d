package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/autosync/internal/engine"
	"github.com/roach88/autosync/internal/ir"
	"github.com/roach88/autosync/internal/query"
)

// BackfillResult holds the reports of one backfill invocation.
type BackfillResult struct {
	Reports []engine.BackfillReport `json:"reports"`
}

// NewBackfillCommand creates the backfill command.
func NewBackfillCommand(rootOpts *RootOptions) *cobra.Command {
	var where []string

	cmd := &cobra.Command{
		Use:   "backfill <type>...",
		Short: "Create missing counterparts for existing records",
		Long: `Re-save every record of the given entity types in bulk mode.

Records without a counterpart get one; linked counterparts are refreshed.
Hook failures are logged and leave the record unlinked. Storage failures
stop the run. --where field=value restricts the run to records whose field
holds that string; repeat it to combine conditions.

Exit codes:
  0 - Every type was processed
  1 - A type could not be backfilled
  2 - Command error (missing --db or --config, unreadable config)

Examples:
  autosync backfill legacy_address --db sync.db --config address.yaml
  autosync backfill legacy_address --where city=Berlin --db sync.db --config address.yaml
  autosync backfill legacy_address address --db sync.db --config address.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseWhere(where)
			if err != nil {
				return err
			}
			return runBackfill(cmd.Context(), rootOpts, args, filters, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&where, "where", nil, "only records whose field equals value (field=value)")

	return cmd
}

// parseWhere turns field=value flags into string equality filters.
func parseWhere(where []string) ([]query.Predicate, error) {
	filters := make([]query.Predicate, 0, len(where))
	for _, w := range where {
		field, value, ok := strings.Cut(w, "=")
		if !ok || field == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --where %q: want field=value", w))
		}
		filters = append(filters, query.Equals{Field: field, Value: ir.IRString(value)})
	}
	return filters, nil
}

func runBackfill(ctx context.Context, opts *RootOptions, types []string, filters []query.Predicate, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts, cmd)

	reg, err := opts.loadRegistry()
	if err != nil {
		return err
	}
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	eng := engine.New(st, reg, engine.WithLogger(opts.Logger(cmd.ErrOrStderr())))

	result := BackfillResult{Reports: make([]engine.BackfillReport, 0, len(types))}
	for _, typeName := range types {
		formatter.VerboseLog("Backfilling %s", typeName)
		report, err := eng.Backfill(ctx, typeName, filters...)
		if err != nil {
			result.Reports = append(result.Reports, report)
			_ = formatter.Failure(err, result)
			return WrapExitError(ExitFailure, fmt.Sprintf("backfill %s", typeName), err)
		}
		result.Reports = append(result.Reports, report)
	}

	return formatter.Render(result, func(w io.Writer) {
		for _, r := range result.Reports {
			fmt.Fprintf(w, "%s: processed %d, linked %d, refreshed %d, unlinked %d\n",
				r.Type, r.Processed, r.Linked, r.Refreshed, r.Unlinked)
		}
	})
}
