package analyze

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/f1log-recorder-go/pkg/config"
	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing/stint"
	"github.com/mpapenbr/f1log-recorder-go/pkg/sink/sqlite"
)

func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <weekend-db>",
		Short: "prints per-driver stint and clean-lap summaries of a weekend database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analyzeFile(args[0])
		},
	}
	cmd.Flags().Float64Var(&config.WearPitThreshold,
		"wear-pit-threshold",
		stint.DefaultWearDropThreshold,
		"negative average wear delta between laps that indicates a tyre change")
	return cmd
}

func analyzeFile(filename string) error {
	dbSink := sqlite.NewSink(sqlite.WithFile(filename))
	defer dbSink.Close()

	sessions, err := dbSink.ReadSessions(model.WeekendAnchor{})
	if err != nil {
		return err
	}
	opts := stint.Options{WearDropThreshold: config.WearPitThreshold}
	for _, uid := range sessions {
		laps, err := dbSink.ReadLaps(model.WeekendAnchor{}, uid)
		if err != nil {
			return err
		}
		if len(laps) == 0 {
			continue
		}
		fmt.Printf("Session %d (%s), %d laps\n", uid, laps[0].SessionType, len(laps))
		byCar := lo.GroupBy(laps, func(rec model.CompletedLapRecord) int {
			return rec.CarIndex
		})
		carIndices := lo.Keys(byCar)
		slices.Sort(carIndices)
		for _, carIdx := range carIndices {
			printDriver(byCar[carIdx], opts)
		}
	}
	return nil
}

func printDriver(laps []model.CompletedLapRecord, opts stint.Options) {
	res := stint.Segment(laps, opts)
	fmt.Printf("  %s: %d laps, %d clean, %d stint(s)\n",
		laps[0].Driver, len(laps), len(res.CleanLaps), len(res.Stints))
	for i, st := range res.Stints {
		line := fmt.Sprintf("    stint %d: laps %d-%d on %s",
			i+1, st.StartLap, st.EndLap, st.Compound)
		if rep := stint.RepresentativeLap(st); rep != nil {
			line += fmt.Sprintf(", pace %s", formatLapTime(rep.LapTimeMs))
		}
		fmt.Println(line)
	}
}

func formatLapTime(ms int) string {
	return fmt.Sprintf("%d:%06.3f", ms/60000, float64(ms%60000)/1000.0)
}
