package app

import (
	"context"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/navdata-relay/internal/flight"
	"github.com/roman-kulish/navdata-relay/internal/storage"
	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

func recordFlight(t *testing.T, dbPath string, records int) int64 {
	t.Helper()

	store := storage.NewSqliteStore(dbPath)
	defer store.Close()

	ctx := context.Background()
	id, err := store.CreateSession(ctx, "demo", "127.0.0.1:5554", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	batch := make([]flight.Record, 0, records)
	for i := 0; i < records; i++ {
		r := record(t0.Add(time.Duration(i)*100*time.Millisecond), int32(i/10), uint32(100-i/10), telemetry.FlagFlying, true)
		r.SessionID = id
		r.Navdata.Sequence = uint32(i)
		batch = append(batch, *r)
	}
	if err = store.StoreNavdata(ctx, batch); err != nil {
		t.Fatalf("StoreNavdata failed: %v", err)
	}

	return id
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "flight.sqlite")
	id := recordFlight(t, dbPath, 600)

	config := NewConfig()
	config.DBPath = dbPath
	config.SessionID = id
	config.OutputFile = filepath.Join(dir, "flight.png")
	config.TimeZone = time.UTC
	config.Width, config.Height = 300, 200

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := Run(context.Background(), config, logger); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	f, err := os.Open(config.OutputFile)
	if err != nil {
		t.Fatalf("Expected an output image: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Output is not a PNG: %v", err)
	}
	if size := img.Bounds().Size(); size.X != 300+defaultLeftBorder+defaultRightBorder || size.Y != 200+defaultTopBorder+defaultBottomBorder {
		t.Errorf("Unexpected image size %v", size)
	}
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "flight.sqlite")
	id := recordFlight(t, dbPath, 10)

	after := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"missing database", func(c *Config) { c.DBPath = filepath.Join(dir, "missing.sqlite") }, os.ErrNotExist},
		{"missing session", func(c *Config) { c.SessionID = id + 1 }, storage.ErrNoData},
		{"empty range", func(c *Config) { c.From = &after }, storage.ErrNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewConfig()
			config.DBPath = dbPath
			config.SessionID = id
			config.OutputFile = filepath.Join(dir, tt.name+".png")
			tt.modify(config)

			if err := Run(context.Background(), config, logger); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}
