package replay

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/f1log-recorder-go/log"
	"github.com/mpapenbr/f1log-recorder-go/pkg/config"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing"
	"github.com/mpapenbr/f1log-recorder-go/pkg/sink"
	"github.com/mpapenbr/f1log-recorder-go/pkg/sink/sqlite"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/capture"
)

var pace string

func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <capture-file>",
		Short: "replays a capture file through the full processing pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return replayFile(args[0])
		},
	}
	cmd.Flags().StringVarP(&config.OutputDir,
		"output-dir",
		"o",
		".",
		"directory for the per-weekend database files")
	cmd.Flags().StringVar(&pace,
		"pace",
		"",
		"optional delay between datagrams, e.g. 10ms (default: full speed)")
	cmd.Flags().BoolVar(&config.DebugPackets,
		"debug-packets",
		false,
		"if true and log level is debug, every packet header is logged")
	return cmd
}

func replayFile(filename string) error {
	var delay time.Duration
	if pace != "" {
		var err error
		if delay, err = time.ParseDuration(pace); err != nil {
			return errors.Wrapf(err, "invalid pace %s", pace)
		}
	}

	reader, err := capture.NewReader(filename)
	if err != nil {
		return err
	}
	defer reader.Close()

	dbSink := sqlite.NewSink(sqlite.WithOutputDir(config.OutputDir))
	proc := processing.NewProcessor(
		processing.WithDebugPackets(config.DebugPackets))
	saver := sink.NewSaver(
		sink.WithStore(proc.Store()),
		sink.WithSink(dbSink))

	num := 0
	for {
		buf, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return errors.Wrapf(err, "after %d datagrams", num)
		}
		proc.ProcessDatagram(buf)
		num++
		if delay > 0 {
			time.Sleep(delay)
		}
	}

	proc.Shutdown()
	saver.Flush()
	if err := dbSink.Close(); err != nil {
		return err
	}
	log.Info("Replay finished", log.Int("datagrams", num))
	return nil
}
