package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/navdata-relay/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	return plotSession(ctx, store, config, logger)
}

func plotSession(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) error {
	session, err := store.Session(ctx, config.SessionID)
	if err != nil {
		return fmt.Errorf("loading session %d: %w", config.SessionID, err)
	}

	summary, err := store.Summary(ctx, config.SessionID)
	if err != nil {
		return err
	}

	start, end := summary.First, summary.Last
	if config.From != nil && config.From.After(start) {
		start = *config.From
	}
	if config.To != nil && config.To.Before(end) {
		end = *config.To
	}
	if end.Before(start) {
		return fmt.Errorf("session %d has no records between %s and %s: %w",
			config.SessionID, start.Format(time.DateTime), end.Format(time.DateTime), storage.ErrNoData)
	}

	logger.Info("session",
		slog.Int64("id", session.ID),
		slog.String("variant", session.Variant),
		slog.String("destination", session.Destination),
		slog.String("started", humanize.Time(session.StartTime)),
		slog.String("records", humanize.Comma(summary.Records)),
		slog.String("failed", humanize.Comma(summary.Dropped())),
		slog.Duration("duration", summary.Duration()),
	)

	iter, err := store.ReadNavdata(ctx, config.SessionID, storage.WithTimeRange(start.UTC(), end.UTC()))
	if err != nil {
		return err
	}
	defer iter.Close()

	trace := NewFlightTrace(session, start, end, config.Width, config.Height)
	for iter.Next(ctx) {
		trace.Update(iter.Current())
	}
	if err = iter.Error(); err != nil {
		return err
	}
	if trace.Records == 0 {
		return fmt.Errorf("session %d: %w", config.SessionID, storage.ErrNoData)
	}

	bounds := trace.Bounds()
	if config.Verbose {
		logger.Info("finished reading records",
			slog.Group("stats",
				slog.String("minTimestamp", start.In(config.TimeZone).Format(time.DateTime)),
				slog.String("maxTimestamp", end.In(config.TimeZone).Format(time.DateTime)),
				slog.String("records", humanize.Comma(trace.Records)),
				slog.String("minAltitude", fmt.Sprintf("%0.1fm", bounds.Min)),
				slog.String("maxAltitude", fmt.Sprintf("%0.1fm", bounds.Max)),
				slog.String("meanAltitude", fmt.Sprintf("%0.1fm", bounds.Mean)),
			))
	}

	renderer, err := NewTraceRenderer(RenderConfig{
		Location:      config.TimeZone,
		ColorTheme:    config.Theme,
		NoAnnotations: config.NoAnnotations,
	})
	if err != nil {
		return fmt.Errorf("creating trace renderer: %w", err)
	}

	logger.Info("rendering flight trace",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", trace.Width),
			slog.Int("height", trace.Height),
		))

	img, err := renderer.Render(trace)
	if err != nil {
		return fmt.Errorf("rendering flight trace: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}

	err = encodeImage(out, img, config.Format)
	return errors.Join(err, out.Close())
}

func encodeImage(w io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{
			Quality: 98,
		})
	default:
		return png.Encode(w, img)
	}
}
