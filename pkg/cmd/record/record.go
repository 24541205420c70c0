package record

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mpapenbr/f1log-recorder-go/log"
	"github.com/mpapenbr/f1log-recorder-go/pkg/config"
	"github.com/mpapenbr/f1log-recorder-go/pkg/live"
	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
	"github.com/mpapenbr/f1log-recorder-go/pkg/processing"
	"github.com/mpapenbr/f1log-recorder-go/pkg/sink"
	"github.com/mpapenbr/f1log-recorder-go/pkg/sink/sqlite"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry"
	"github.com/mpapenbr/f1log-recorder-go/pkg/telemetry/capture"
	"github.com/mpapenbr/f1log-recorder-go/pkg/utils"
)

//nolint:funlen // by design
func NewRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "records game telemetry into a per-weekend database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startRecorder()
		},
	}
	cmd.Flags().StringVarP(&config.UDPListenAddr,
		"listen-addr",
		"a",
		":20777",
		"UDP address to receive telemetry on")
	cmd.Flags().StringVarP(&config.OutputDir,
		"output-dir",
		"o",
		".",
		"directory for the per-weekend database files")
	cmd.Flags().StringVar(&config.AutoSaveInterval,
		"auto-save-interval",
		"30s",
		"interval for the best-effort auto-save")
	cmd.Flags().StringVar(&config.CaptureFile,
		"capture-file",
		"",
		"if set, raw datagrams are additionally written to this file")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"if set, completed laps are published to this NATS server")
	cmd.Flags().StringVar(&config.NatsSubjectPrefix,
		"nats-subject-prefix",
		"f1log.laps",
		"subject prefix for published lap records")
	cmd.Flags().BoolVar(&config.DebugPackets,
		"debug-packets",
		false,
		"if true and log level is debug, every packet header is logged")
	return cmd
}

//nolint:funlen,cyclop // by design
func startRecorder() error {
	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // by design
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	var telemetryCfg *config.Telemetry
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		var err error
		if telemetryCfg, err = config.SetupTelemetry(context.Background()); err != nil {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	var publisher *live.Publisher
	if config.NatsURL != "" {
		if addr := utils.ExtractFromNatsURL(config.NatsURL); addr != "" {
			if err := utils.WaitForTCP(addr, 15*time.Second); err != nil {
				log.Warn("NATS server not reachable", log.ErrorField(err))
			}
		}
		var err error
		publisher, err = live.NewPublisher(config.NatsURL,
			live.WithSubjectPrefix(config.NatsSubjectPrefix))
		if err != nil {
			log.Warn("Could not connect to NATS, live publishing disabled",
				log.ErrorField(err))
			publisher = nil
		}
	}

	dbSink := sqlite.NewSink(sqlite.WithOutputDir(config.OutputDir))
	var saver *sink.Saver
	proc := processing.NewProcessor(
		processing.WithDebugPackets(config.DebugPackets),
		processing.WithLapHook(func(rec model.CompletedLapRecord) {
			if publisher != nil {
				publisher.Publish(rec)
			}
		}),
		processing.WithSessionEndHook(func(sessionUID uint64) {
			saver.SaveNow()
		}),
		processing.WithReAnchorHook(func(anchor model.WeekendAnchor) {
			saver.ResetWeekend()
		}))
	saver = sink.NewSaver(
		sink.WithStore(proc.Store()),
		sink.WithSink(dbSink))

	var captureWriter *capture.Writer
	listenerOpts := []telemetry.ListenerOption{
		telemetry.WithListenAddr(config.UDPListenAddr),
	}
	if config.CaptureFile != "" {
		var err error
		captureWriter, err = capture.NewWriter(config.CaptureFile)
		if err != nil {
			return err
		}
		listenerOpts = append(listenerOpts, telemetry.WithCaptureWriter(captureWriter))
	}
	listener := telemetry.NewListener(proc.ProcessDatagram, listenerOpts...)

	interval, err := time.ParseDuration(config.AutoSaveInterval)
	if err != nil {
		log.Warn("Invalid auto-save interval, using 30s", log.ErrorField(err))
		interval = 30 * time.Second
	}

	ctxSaver, stopSaver := context.WithCancel(context.Background())
	defer stopSaver()
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		saver.Run(ctxSaver, interval)
	}()

	ctxListener, stopListener := context.WithCancel(context.Background())
	defer stopListener()
	errChan := make(chan error, 1)
	go func() {
		errChan <- listener.Listen(ctxListener)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case v := <-sigChan:
		log.Debug("Got signal ", log.Any("signal", v))
		// stop ingestion and wait for the receive loop before touching
		// processor state
		stopListener()
		<-errChan
	case err := <-errChan:
		if err != nil {
			stopSaver()
			wg.Wait()
			return err
		}
	}

	// orderly shutdown: close windows, final save, release resources
	proc.Shutdown()
	stopSaver()
	wg.Wait()
	if captureWriter != nil {
		if err := captureWriter.Close(); err != nil {
			log.Error("closing capture file failed", log.ErrorField(err))
		}
	}
	if publisher != nil {
		publisher.Close()
	}
	if err := dbSink.Close(); err != nil {
		log.Error("closing database failed", log.ErrorField(err))
	}
	if telemetryCfg != nil {
		telemetryCfg.Shutdown()
	}
	log.Info("Recorder terminated")
	return nil
}
