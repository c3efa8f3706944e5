package commands

import (
	"hicv-scanner/config"

	"github.com/spf13/cobra"
)

var monthFlags queryFlags
var monthDays int

func init() {
	monthFlags.register(monthCmd)
	monthCmd.Flags().IntVar(&monthDays, "days", 0, "Scan only the first n check-in days (0 scans all).")
	rootCmd.AddCommand(monthCmd)
}

var monthCmd = &cobra.Command{
	Use:   "month [--month <month>] [--year <year>] [--nights <n>] [--days <n>]",
	Short: "Searches every check-in day of a month, one pass per day.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("days") {
			cfg.ScanDays = monthDays
		}
		if err := monthFlags.apply(cmd, cfg); err != nil {
			return err
		}

		env, err := newEnvironment(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, cancel := env.withRunTimeout(cmd.Context())
		defer cancel()

		summaries, err := env.scanner.RunMonth(ctx, cfg.Month, cfg.Year, cfg.Nights, cfg.ScanDays)
		env.report(cmd.OutOrStdout(), summaries)
		return err
	},
}
