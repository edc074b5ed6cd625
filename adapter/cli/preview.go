package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/felixgeelhaar/studiobook/internal/booking/application/queries"
	"github.com/felixgeelhaar/studiobook/internal/booking/application/services"
	"github.com/felixgeelhaar/studiobook/internal/booking/domain"
	"github.com/spf13/cobra"
)

var (
	previewDay      string
	previewTime     string
	previewDuration int
	previewFrom     string
	previewTo       string
	previewSkip     []string
	previewLocation string
	previewRooms    []int64
	previewStaff    []int64
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Preview a weekly series against existing bookings",
	Long: `Expand a weekly pattern and show which dates are free, skipped or
already booked. Nothing is written.

Examples:
  studiobook preview --day monday --time 10:00 --duration 60 \
    --from 2025-01-06 --to 2025-03-31 --room 1
  studiobook preview --day thu --time 18:30 --duration 90 \
    --from 2025-02-01 --to 2025-02-28 --room 2 --staff 4 --skip 2025-02-13`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireContainer()
		if err != nil {
			return err
		}

		pattern, err := domain.NewRecurrencePattern(domain.RecurrencePatternParams{
			DayOfWeek:       previewDay,
			TimeOfDay:       previewTime,
			DurationMinutes: previewDuration,
			IntervalStart:   previewFrom,
			IntervalEnd:     previewTo,
			SkipDates:       previewSkip,
			Location:        previewLocation,
		})
		if err != nil {
			return err
		}
		resources := previewResources(previewRooms, previewStaff)
		if len(resources) == 0 {
			return fmt.Errorf("at least one --room or --staff is required")
		}

		dates, err := a.Container.PreviewRecurrenceHandler.Handle(cmd.Context(), queries.PreviewRecurrenceQuery{
			Pattern:      pattern,
			ResourceKeys: resources,
		})
		if err != nil {
			return fmt.Errorf("failed to preview series: %w", err)
		}
		return printPreview(cmd.OutOrStdout(), dates, pattern)
	},
}

func previewResources(rooms, staff []int64) []domain.ResourceKey {
	keys := make([]domain.ResourceKey, 0, len(rooms)+len(staff))
	for _, id := range rooms {
		keys = append(keys, domain.RoomKey(id))
	}
	for _, id := range staff {
		keys = append(keys, domain.StaffKey(id))
	}
	return keys
}

func printPreview(out io.Writer, dates []services.DatePreview, pattern domain.RecurrencePattern) error {
	if len(dates) == 0 {
		fmt.Fprintln(out, "No dates in range.")
		return nil
	}

	loc := pattern.Location()
	free := 0
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tSTART\tEND\tSTATUS\tCONFLICT")
	for _, d := range dates {
		if d.Status == services.PreviewOK {
			free++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			d.Date,
			d.Window.Start.In(loc).Format("15:04"),
			d.Window.End.In(loc).Format("15:04"),
			d.Status,
			d.ConflictLabel,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d of %d dates can be booked.\n", free, len(dates))
	return nil
}

func init() {
	f := previewCmd.Flags()
	f.StringVar(&previewDay, "day", "", "weekday, e.g. monday or mon")
	f.StringVar(&previewTime, "time", "", "start time of day (HH:MM)")
	f.IntVar(&previewDuration, "duration", 60, "duration in minutes")
	f.StringVar(&previewFrom, "from", "", "first date of the interval (YYYY-MM-DD)")
	f.StringVar(&previewTo, "to", "", "last date of the interval (YYYY-MM-DD)")
	f.StringSliceVar(&previewSkip, "skip", nil, "dates to leave out (YYYY-MM-DD)")
	f.StringVar(&previewLocation, "location", "", "IANA time zone of the pattern (default UTC)")
	f.Int64SliceVar(&previewRooms, "room", nil, "room id (repeatable)")
	f.Int64SliceVar(&previewStaff, "staff", nil, "staff id (repeatable)")
	_ = previewCmd.MarkFlagRequired("day")
	_ = previewCmd.MarkFlagRequired("time")
	_ = previewCmd.MarkFlagRequired("from")
	_ = previewCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(previewCmd)
}
