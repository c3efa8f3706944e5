// Package commands is the command line interface of the scanner.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"hicv-scanner/config"
	"hicv-scanner/diagnostics"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "hicv-scanner",
	Short:         "hicv-scanner searches Holiday Inn Club member availability and records what it finds.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// queryFlags override the environment for the fields a run searches for.
type queryFlags struct {
	month    string
	year     int
	nights   int
	adults   int
	children int
	units    []string
	group    string
	headless bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.month, "month", "", "Month to search (name, short name or 1-12).")
	cmd.Flags().IntVar(&f.year, "year", 0, "Year to search.")
	cmd.Flags().IntVar(&f.nights, "nights", 0, "Length of stay in nights.")
	cmd.Flags().IntVar(&f.adults, "adults", 0, "Number of adults.")
	cmd.Flags().IntVar(&f.children, "children", -1, "Number of children.")
	cmd.Flags().StringSliceVar(&f.units, "unit-sizes", nil, "Unit sizes to select, e.g. \"Studio,1 Bedroom\".")
	cmd.Flags().StringVar(&f.group, "location-group", "", "Location group whose resorts are all selected.")
	cmd.Flags().BoolVar(&f.headless, "headless", true, "Run the browser without a window.")
}

// apply copies the flags that were set onto cfg and validates the result.
func (f *queryFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("month") {
		m, err := config.ParseMonth(f.month)
		if err != nil {
			return err
		}
		cfg.Month = m
	}
	if flags.Changed("year") {
		cfg.Year = f.year
	}
	if flags.Changed("nights") {
		cfg.Nights = f.nights
	}
	if flags.Changed("adults") {
		cfg.Adults = f.adults
	}
	if flags.Changed("children") {
		cfg.Children = f.children
	}
	if flags.Changed("unit-sizes") {
		cfg.UnitSizes = f.units
	}
	if flags.Changed("location-group") {
		cfg.LocationGroup = f.group
	}
	if flags.Changed("headless") {
		cfg.Headless = f.headless
	}
	return cfg.Validate()
}

// ExecuteContext runs the CLI and exits non-zero on failure. Stage failures
// point at the diagnostic snapshot they left behind.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var stageErr *diagnostics.StageError
		if errors.As(err, &stageErr) && stageErr.Artifact != "" {
			fmt.Fprintf(os.Stderr, "Diagnostics: %s.(png|html)\n", stageErr.Artifact)
		}
		os.Exit(1)
	}
}
