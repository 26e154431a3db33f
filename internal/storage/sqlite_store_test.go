package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/navdata-relay/internal/flight"
	"github.com/roman-kulish/navdata-relay/internal/telemetry"
)

func newStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "navdata.sqlite"))
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func records(sessionID int64, start time.Time, n int) []flight.Record {
	out := make([]flight.Record, n)
	for i := range out {
		out[i] = flight.Record{
			SessionID: sessionID,
			Timestamp: start.Add(time.Duration(i) * 100 * time.Millisecond),
			Sent:      i%4 != 3,
			Navdata: telemetry.Snapshot{
				Header:       telemetry.Header,
				Status:       telemetry.FlagFlying,
				Sequence:     uint32(i),
				Tag:          telemetry.TagDemo,
				Size:         telemetry.PacketSize,
				ControlState: telemetry.ControlFlying,
				Battery:      uint32(100 - i),
				Theta:        0.25,
				Altitude:     int32(i * 10),
				Vx:           1.5,
			},
		}
	}
	return out
}

func TestSqliteStore_Sessions(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	cfg := map[string]any{"variant": "demo", "rate": 15}
	id, err := s.CreateSession(ctx, "demo", "192.168.1.2:5554", cfg)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err = s.CreateSession(ctx, "demo", "192.168.1.3:5554", nil); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	sess, err := s.Session(ctx, id)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if sess.Variant != "demo" || sess.Destination != "192.168.1.2:5554" {
		t.Errorf("Unexpected session %+v", sess)
	}
	if sess.Config == nil || *sess.Config != `{"rate":15,"variant":"demo"}` {
		t.Errorf("Unexpected config %v", sess.Config)
	}
	if sess.StartTime.IsZero() {
		t.Errorf("Expected start time to be set")
	}

	all, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(all) != 2 || all[1].Config != nil {
		t.Errorf("Unexpected sessions %+v", all)
	}

	if _, err = s.Session(ctx, 42); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData for unknown session, got %v", err)
	}
}

func TestSqliteStore_NavdataRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, err := s.CreateSession(ctx, "demo", "127.0.0.1:5554", nil)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	want := records(id, start, 25)

	if err = s.StoreNavdata(ctx, want[:10]); err != nil {
		t.Fatalf("StoreNavdata failed: %v", err)
	}
	if err = s.StoreNavdata(ctx, want[10:]); err != nil {
		t.Fatalf("StoreNavdata failed: %v", err)
	}
	if err = s.StoreNavdata(ctx, nil); err != nil {
		t.Fatalf("Storing an empty batch should be a no-op: %v", err)
	}

	r, err := s.ReadNavdata(ctx, id, WithBatchSize(7))
	if err != nil {
		t.Fatalf("ReadNavdata failed: %v", err)
	}
	defer r.Close()

	if r.Session().ID != id {
		t.Errorf("Expected session %d, got %d", id, r.Session().ID)
	}

	var got []flight.Record
	for r.Next(ctx) {
		got = append(got, *r.Current())
	}
	if err = r.Error(); err != nil {
		t.Fatalf("Reader error: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("Expected %d records, got %d", len(want), len(got))
	}
	for i := range want {
		if !got[i].Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("Record %d: expected timestamp %s, got %s", i, want[i].Timestamp, got[i].Timestamp)
		}
		if got[i].Navdata != want[i].Navdata || got[i].Sent != want[i].Sent {
			t.Errorf("Record %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestSqliteStore_ReaderFilters(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, _ := s.CreateSession(ctx, "demo", "127.0.0.1:5554", nil)
	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	if err := s.StoreNavdata(ctx, records(id, start, 20)); err != nil {
		t.Fatalf("StoreNavdata failed: %v", err)
	}

	tests := []struct {
		name  string
		opts  []ReaderOption
		first uint32
		count int
	}{
		{"sequence range", []ReaderOption{WithSequenceRange(5, 9)}, 5, 5},
		{"time range", []ReaderOption{WithTimeRange(start.Add(time.Second), start.Add(1500 * time.Millisecond))}, 10, 6},
		{"both", []ReaderOption{WithSequenceRange(0, 11), WithTimeRange(start.Add(time.Second), start.Add(time.Hour))}, 10, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := s.ReadNavdata(ctx, id, tt.opts...)
			if err != nil {
				t.Fatalf("ReadNavdata failed: %v", err)
			}
			defer r.Close()

			var seqs []uint32
			for r.Next(ctx) {
				seqs = append(seqs, r.Current().Navdata.Sequence)
			}
			if err = r.Error(); err != nil {
				t.Fatalf("Reader error: %v", err)
			}
			if len(seqs) != tt.count || seqs[0] != tt.first {
				t.Errorf("Expected %d records from %d, got %v", tt.count, tt.first, seqs)
			}
		})
	}

	if _, err := s.ReadNavdata(ctx, id, WithSequenceRange(9, 5)); err == nil {
		t.Errorf("Expected inverted sequence range to be rejected")
	}
	if _, err := s.ReadNavdata(ctx, 999); !errors.Is(err, ErrNoData) {
		t.Errorf("Expected ErrNoData for unknown session, got %v", err)
	}
}

func TestSqliteStore_Summary(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	id, _ := s.CreateSession(ctx, "demo", "127.0.0.1:5554", nil)
	if _, err := s.Summary(ctx, id); !errors.Is(err, ErrNoData) {
		t.Fatalf("Expected ErrNoData for empty session, got %v", err)
	}

	start := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	if err := s.StoreNavdata(ctx, records(id, start, 8)); err != nil {
		t.Fatalf("StoreNavdata failed: %v", err)
	}

	sum, err := s.Summary(ctx, id)
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if sum.Records != 8 || sum.Sent != 6 || sum.Dropped() != 2 {
		t.Errorf("Unexpected counts %+v", sum)
	}
	if !sum.First.Equal(start) || sum.Duration() != 700*time.Millisecond {
		t.Errorf("Unexpected time span %s - %s", sum.First, sum.Last)
	}
	if sum.MinAltitude != 0 || sum.MaxAltitude != 70 {
		t.Errorf("Unexpected altitude range %d - %d", sum.MinAltitude, sum.MaxAltitude)
	}
}

func TestSqliteStore_Close(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "navdata.sqlite"))
	if _, err := s.CreateSession(context.Background(), "demo", "127.0.0.1:5554", nil); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second close should be a no-op, got %v", err)
	}
}
