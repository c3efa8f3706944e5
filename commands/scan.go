package commands

import (
	"hicv-scanner/config"
	"hicv-scanner/models"

	"github.com/spf13/cobra"
)

var scanFlags queryFlags
var scanDay int

func init() {
	scanFlags.register(scanCmd)
	scanCmd.Flags().IntVar(&scanDay, "day", 0, "Check-in day of the month.")
	rootCmd.AddCommand(scanCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan [--month <month>] [--year <year>] [--day <day>] [--nights <n>]",
	Short: "Searches one check-in date and appends the results to the configured outputs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("day") {
			cfg.CheckInDay = scanDay
		}
		if err := scanFlags.apply(cmd, cfg); err != nil {
			return err
		}

		env, err := newEnvironment(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		ctx, cancel := env.withRunTimeout(cmd.Context())
		defer cancel()

		q := models.DateRangeQuery{Month: cfg.Month, Year: cfg.Year, CheckInDay: cfg.CheckInDay, Nights: cfg.Nights}
		env.logger.Info("Searching %s %d for %d nights", q.Caption(), q.CheckInDay, q.Nights)
		sum, err := env.scanner.Run(ctx, q)
		env.report(cmd.OutOrStdout(), []models.ScanSummary{sum})
		return err
	},
}
