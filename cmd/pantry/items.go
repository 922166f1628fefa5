package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pantry/internal/core"
	"pantry/pkg/domain"
)

type itemFlags struct {
	quantity int
	weight   float64
	unit     string
	category string
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.quantity, "quantity", "q", 1, "number of units")
	cmd.Flags().Float64VarP(&f.weight, "weight", "w", 0, "weight of one unit")
	cmd.Flags().StringVarP(&f.unit, "unit", "u", "", "unit of weight (defaults to the configured unit)")
	cmd.Flags().StringVar(&f.category, "category", "", "Vegetable, Fruit or Dairy (defaults to the configured category)")
}

func (f *itemFlags) item(name string, defaults domain.FormDefaults) domain.Item {
	return defaults.Apply(domain.Item{
		Name:     name,
		Quantity: f.quantity,
		Weight:   f.weight,
		Unit:     domain.Unit(f.unit),
		Category: domain.Category(f.category),
	})
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var flags itemFlags
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add an item or merge it into the stored one",
		Example: `  pantry add apple --quantity 3 --weight 0.2 --unit kg --category Fruit
  pantry add milk -q 2 -w 1 -u L --category Dairy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, rootOpts, func(svc *core.Service) (core.Outcome, error) {
				return svc.Add(cmd.Context(), flags.item(args[0], rootOpts.Config.Defaults))
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var flags itemFlags
	cmd := &cobra.Command{
		Use:   "update NAME",
		Short: "Replace the fields of an existing item",
		Long:  "Replace quantity, weight, unit and category of an existing item. Updating an absent item changes nothing.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, rootOpts, func(svc *core.Service) (core.Outcome, error) {
				return svc.Update(cmd.Context(), flags.item(args[0], rootOpts.Config.Defaults))
			})
		},
	}
	flags.register(cmd)
	return cmd
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Take one unit of an item, deleting it at quantity one",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, rootOpts, func(svc *core.Service) (core.Outcome, error) {
				return svc.Remove(cmd.Context(), args[0])
			})
		},
	}
}

type changeOutput struct {
	Change     domain.Change      `json:"change"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

func runMutation(cmd *cobra.Command, rootOpts *RootOptions, fn func(*core.Service) (core.Outcome, error)) (err error) {
	svc, cleanup, err := rootOpts.openService(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cleanup(); err == nil {
			err = cerr
		}
	}()

	out, err := fn(svc)
	if err != nil {
		for _, v := range out.Result.Violations {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", v.Field, v.Message)
		}
		return err
	}
	return writeJSON(cmd.OutOrStdout(), changeOutput{Change: out.Change, Violations: out.Result.Violations})
}

type listFlags struct {
	search      string
	minQuantity int
	maxWeight   float64
	format      string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List items grouped by category",
		Example: `  pantry list --search app
  pantry list --min-quantity 2 --max-weight 1.5 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			criteria := domain.Criteria{Search: flags.search, MinQuantity: flags.minQuantity}
			if cmd.Flags().Changed("max-weight") {
				criteria.MaxWeight = domain.WeightBound(flags.maxWeight)
			}
			if flags.format != "table" && flags.format != "json" {
				return fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, flags.format)
			}

			svc, cleanup, err := rootOpts.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := cleanup(); err == nil {
					err = cerr
				}
			}()

			view, err := svc.List(cmd.Context(), criteria)
			if err != nil {
				return err
			}
			if flags.format == "json" {
				return writeJSON(cmd.OutOrStdout(), view)
			}
			return writeTable(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().StringVarP(&flags.search, "search", "s", "", "case-insensitive name substring")
	cmd.Flags().IntVar(&flags.minQuantity, "min-quantity", 0, "only items with at least this quantity")
	cmd.Flags().Float64Var(&flags.maxWeight, "max-weight", 0, "only items whose unit weight is at most this value")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "table", "output format: table or json")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, view domain.View) error {
	if view.Len() == 0 {
		_, err := fmt.Fprintln(w, "no items")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, g := range view.Groups {
		fmt.Fprintf(tw, "%s\n", g.Category)
		for _, it := range g.Items {
			fmt.Fprintf(tw, "  %s\t%d\t%g %s\n", it.Name, it.Quantity, it.Weight, it.Unit)
		}
	}
	return tw.Flush()
}
