package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/navdata-relay/internal/mavros"
	"github.com/roman-kulish/navdata-relay/internal/navdata"
	"github.com/roman-kulish/navdata-relay/internal/rosbridge"
	"github.com/roman-kulish/navdata-relay/internal/scheduler"
	"github.com/roman-kulish/navdata-relay/internal/storage"
	"github.com/roman-kulish/navdata-relay/internal/telemetry"
	"github.com/roman-kulish/navdata-relay/internal/transport"
)

// Run relays telemetry until ctx is done. It returns an error when startup
// fails: the destination cannot be resolved, the bridge cannot be reached or
// the stream rate handshake does not complete in time. No packet is sent in
// any of those cases.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	variant := config.Variant()

	encoder, err := navdata.NewEncoder(variant)
	if err != nil {
		return fmt.Errorf("creating encoder: %w", err)
	}

	state := telemetry.New(
		telemetry.WithLogger(logger),
		telemetry.WithInitialStatus(variant.InitialStatus()),
	)

	sender, err := transport.NewUDPSender(ctx, config.Navdata.Destination, config.Navdata.Port, transport.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating navdata socket: %w", err)
	}
	defer sender.Close()

	handshakeTimeout := time.Duration(config.Rosbridge.HandshakeTimeout)

	dialCtx, cancelDial := context.WithTimeout(ctx, handshakeTimeout)
	bridge, err := rosbridge.Dial(dialCtx, config.Rosbridge.URL, rosbridge.WithLogger(logger))
	cancelDial()
	if err != nil {
		return fmt.Errorf("connecting to rosbridge: %w", err)
	}
	defer bridge.Close()

	inbound, err := mavros.Bind(bridge, &config.Mavros, logger)
	if err != nil {
		return fmt.Errorf("subscribing to mavros: %w", err)
	}

	options := []func(*scheduler.Scheduler){
		scheduler.WithLogger(logger),
		scheduler.WithPeriod(variant.Period(config.Navdata.Rate)),
		scheduler.WithHandshakeTimeout(handshakeTimeout),
		scheduler.WithDebugEvery(config.Navdata.DebugEvery),
	}

	var recorder *Recorder
	if config.Recorder.Enabled {
		store, dbPath, err := createStorage(&config.Recorder)
		if err != nil {
			return fmt.Errorf("creating flight recorder: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close flight recorder", slog.Any("error", err))
			}
			logRecorderFile(logger, dbPath)
		}()

		destination := net.JoinHostPort(config.Navdata.Destination, strconv.Itoa(config.Navdata.Port))
		sessionID, err := store.CreateSession(ctx, string(variant), destination, config)
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}

		recorder = NewRecorder(store, sessionID, logger,
			WithQueueSize(config.Recorder.QueueSize),
			WithMaxBatchSize(config.Recorder.MaxBatchSize),
			WithFlushInterval(time.Duration(config.Recorder.FlushInterval)),
		)
		recorder.Start()
		defer recorder.Close()

		options = append(options, scheduler.WithObserver(recorder))
	}

	negotiator := mavros.NewNegotiator(bridge, config.Mavros, mavros.WithLogger(logger))
	sched := scheduler.New(state, encoder, sender, negotiator, options...)

	if err = sched.Start(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	relay := NewRelay(state, inbound, logger)
	relay.Start(ctx)

	go watchBridge(ctx, bridge, logger)

	if err = sched.Run(ctx); err != nil {
		return err
	}

	cancel()
	relay.Wait()

	stats, sent := sched.Stats(), sender.Stats()
	logger.Info("navdata relay stopped",
		slog.String("packets", humanize.Comma(int64(stats.Ticks))),
		slog.String("sendFailures", humanize.Comma(int64(stats.SendFailure))),
		slog.String("bytesSent", humanize.Bytes(sent.Bytes)),
		slog.String("updates", humanize.Comma(int64(relay.Updates()))),
		slog.String("rejectedUpdates", humanize.Comma(int64(relay.Rejected()))),
		slog.String("droppedUpdates", humanize.Comma(int64(inbound.Dropped()))),
	)

	if recorder != nil {
		recorder.Close()
		logger.Info("flight recorder stopped",
			slog.String("stored", humanize.Comma(int64(recorder.Stored()))),
			slog.String("dropped", humanize.Comma(int64(recorder.Dropped()))),
		)
	}

	return nil
}

// watchBridge logs the loss of the bridge connection. Streaming carries on
// with the last known telemetry.
func watchBridge(ctx context.Context, bridge *rosbridge.Client, logger *slog.Logger) {
	select {
	case <-ctx.Done():
	case <-bridge.Done():
		if ctx.Err() == nil {
			logger.Error("lost connection to rosbridge, relaying last known telemetry", slog.Any("error", bridge.Err()))
		}
	}
}

func createStorage(config *RecorderConfig) (*storage.SqliteStore, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	dbPath := config.DataDirectory
	if dbPath == "" {
		dbPath = defaultDataDirectory
	}
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(wd, dbPath)
	}

	stat, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("storage directory '%s' does not exist: %w", dbPath, err)
		}
		return nil, "", fmt.Errorf("checking storage directory '%s': %w", dbPath, err)
	}
	if !stat.IsDir() {
		return nil, "", fmt.Errorf("invalid storage directory '%s'", dbPath)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("navdata_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))

	return storage.NewSqliteStore(dbPath), dbPath, nil
}

func logRecorderFile(logger *slog.Logger, dbPath string) {
	stat, err := os.Stat(dbPath)
	if err != nil {
		return
	}
	logger.Info("flight recording saved", slog.String("path", dbPath), slog.String("size", humanize.Bytes(uint64(stat.Size()))))
}
