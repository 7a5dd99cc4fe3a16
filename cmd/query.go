package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ethpandaops/ephemeris/pkg/query"
	"github.com/ethpandaops/ephemeris/pkg/swe"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	queryReq      query.Request
	queryObserver []float64
	queryFormat   string
)

//nolint:gochecknoglobals // Cobra commands are typically global
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Compute positions for a body",
	Long: `Computes equatorial positions for a body, or horizontal positions when an
observer is given. Segment files needed for the date range are hydrated first.`,
	Example: `  ephemeris query --body mars --year -2500 --month 3 --day 21
  ephemeris query --body moon --year 1066 --month 10 --day 14 --hour 9.5 \
    --observer 0.5,50.9,20 --steps 24 --step-days 0.041666 --format csv`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	flags := queryCmd.Flags()
	flags.StringVar(&queryReq.Body, "body", "sun", "body name (sun, moon, mercury ... pluto)")
	flags.IntVar(&queryReq.Year, "year", 2000, "year, astronomical numbering (0 is 1 BC)")
	flags.IntVar(&queryReq.Month, "month", 1, "month (1-12)")
	flags.IntVar(&queryReq.Day, "day", 1, "day of month")
	flags.Float64Var(&queryReq.Hour, "hour", 0, "fractional hour, UT")
	flags.IntVar(&queryReq.Steps, "steps", 1, "number of steps")
	flags.Float64Var(&queryReq.StepDays, "step-days", 1, "step size in days")
	flags.Float64SliceVar(&queryObserver, "observer", nil, "observer longitude,latitude[,altitude] for horizontal output")
	flags.StringVar(&queryFormat, "format", "table", "output format (table, csv, json)")
}

func runQuery(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	req := queryReq

	switch len(queryObserver) {
	case 0:
	case 2, 3:
		obs := swe.Observer{Longitude: queryObserver[0], Latitude: queryObserver[1]}
		if len(queryObserver) == 3 {
			obs.Altitude = queryObserver[2]
		}

		req.Observer = &obs
	default:
		return fmt.Errorf("--observer takes longitude,latitude[,altitude], got %d values", len(queryObserver))
	}

	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	core, err := openCore(ctx, config)
	if err != nil {
		return err
	}
	defer func() { _ = core.Close() }()

	rs, err := core.Orchestrator.Run(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	switch queryFormat {
	case "csv":
		return query.WriteCSV(out, rs)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(rs)
	default:
		return printResultTable(out, rs)
	}
}

func printResultTable(out io.Writer, rs *query.ResultSet) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if rs.Mode == query.ModeHorizontal {
		_, _ = fmt.Fprintln(w, "STEP\tDATE\tJD\tAZIMUTH\tALTITUDE\tAPPARENT\tDIST")
	} else {
		_, _ = fmt.Fprintln(w, "STEP\tDATE\tJD\tRA\tDEC\tDIST")
	}

	for i := range rs.Rows {
		row := &rs.Rows[i]

		switch {
		case row.Failed():
			_, _ = fmt.Fprintf(w, "%d\t%s\t%.6f\terror: %s\n", row.Step, row.Date, row.JulianDay, row.Error)
		case row.Horizontal != nil:
			_, _ = fmt.Fprintf(w, "%d\t%s\t%.6f\t%s\t%s\t%.4f\t%.8f\n",
				row.Step, row.Date, row.JulianDay,
				row.Horizontal.AzimuthDMS, row.Horizontal.AltitudeDMS,
				row.Horizontal.ApparentAltitude, row.Distance)
		case row.Equatorial != nil:
			_, _ = fmt.Fprintf(w, "%d\t%s\t%.6f\t%s\t%s\t%.8f\n",
				row.Step, row.Date, row.JulianDay,
				row.Equatorial.RAHMS, row.Equatorial.DecDMS, row.Distance)
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "\n%s calendar, %d segment(s), %d error row(s)\n", rs.Calendar, len(rs.Segments), rs.Errors())

	return nil
}
