package poller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"enteliwatch/internal/alerting"
	"enteliwatch/internal/config"
	"enteliwatch/internal/gateway"
	"enteliwatch/internal/storage"
)

type fakeReader struct {
	values map[string]string
	name   string
}

func (r *fakeReader) PresentValue(ctx context.Context, objectRef string) (gateway.Value, error) {
	raw, ok := r.values[objectRef]
	if !ok {
		return gateway.Value{}, errors.New("object offline")
	}
	return gateway.ValueFromRaw(json.RawMessage(raw)), nil
}

func (r *fakeReader) DeviceName(ctx context.Context) (string, error) {
	return r.name, nil
}

type fakeStore struct {
	snapshots []storage.PointSnapshot
	err       error
}

func (s *fakeStore) UpsertSnapshot(ctx context.Context, snapshot storage.PointSnapshot) error {
	if s.err != nil {
		return s.err
	}
	s.snapshots = append(s.snapshots, snapshot)
	return nil
}

func (s *fakeStore) ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]storage.PointSnapshot, error) {
	return s.snapshots, nil
}

func (s *fakeStore) ListRecentSnapshots(ctx context.Context, limit int) ([]storage.PointSnapshot, error) {
	return s.snapshots, nil
}

func (s *fakeStore) MarkSnapshotErrored(ctx context.Context, bucket time.Time, errMsg string) error {
	return nil
}

func (s *fakeStore) CountSnapshots(ctx context.Context) (int64, error) {
	return int64(len(s.snapshots)), nil
}

type fakeNotifier struct {
	notes []alerting.Notification
	err   error
}

func (n *fakeNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	if n.err != nil {
		return n.err
	}
	n.notes = append(n.notes, note)
	return nil
}

func pollerConfig() *config.Config {
	return &config.Config{
		Gateway: config.GatewayConfig{Host: "gw", Site: "MainSite", Device: "301"},
		Points: config.PointsConfig{
			Temperature:  "analog-input,301001",
			ZoneSetpoint: "analog-value,1",
			SystemMode:   "multi-state-value,2",
			PeakSavings:  "binary-value,2025",
			FanStatus:    "binary-output,1",
		},
		Alerting: config.AlertingConfig{
			Enabled:    true,
			ComfortMin: 65,
			ComfortMax: 80,
			Cooldown:   30 * time.Minute,
			Channels:   []string{"telegram"},
		},
	}
}

func healthyReader() *fakeReader {
	return &fakeReader{
		values: map[string]string{
			"analog-input,301001": `72.4`,
			"analog-value,1":      `70`,
			"multi-state-value,2": `{"enumerated": {"value": 1}}`,
			"binary-value,2025":   `"inactive"`,
			"binary-output,1":     `"active"`,
		},
		name: "Rooftop AHU",
	}
}

func bucketAt(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2025, 7, 11, 12, 0, 0, 0, time.UTC)
}

func TestProcessBucketStoresCompleteSnapshot(t *testing.T) {
	store := &fakeStore{}
	p := New(pollerConfig(), nil, healthyReader(), store, &fakeNotifier{}, zerolog.Nop())

	if err := p.ProcessBucket(context.Background(), bucketAt(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.snapshots) != 1 {
		t.Fatalf("expected one stored snapshot, got %d", len(store.snapshots))
	}

	snap := store.snapshots[0]
	if snap.Status != "complete" {
		t.Fatalf("status = %q", snap.Status)
	}
	if snap.Temperature == nil || *snap.Temperature != 72.4 {
		t.Fatalf("temperature = %v", snap.Temperature)
	}
	if snap.ZoneSetpoint == nil || *snap.ZoneSetpoint != 70 {
		t.Fatalf("zone setpoint = %v", snap.ZoneSetpoint)
	}
	if snap.SystemMode == nil || *snap.SystemMode != "Heating" {
		t.Fatalf("system mode = %v", snap.SystemMode)
	}
	if snap.PeakSavings == nil || *snap.PeakSavings {
		t.Fatalf("peak savings = %v", snap.PeakSavings)
	}
	if snap.FanStatus == nil || !*snap.FanStatus {
		t.Fatalf("fan status = %v", snap.FanStatus)
	}
	if snap.Error != nil {
		t.Fatalf("complete snapshot must carry no error, got %q", *snap.Error)
	}
}

func TestProcessBucketPartialWhenSecondaryPointDown(t *testing.T) {
	reader := healthyReader()
	delete(reader.values, "binary-output,1")
	store := &fakeStore{}
	p := New(pollerConfig(), nil, reader, store, &fakeNotifier{}, zerolog.Nop())

	if err := p.ProcessBucket(context.Background(), bucketAt(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := store.snapshots[0]
	if snap.Status != "partial" {
		t.Fatalf("status = %q", snap.Status)
	}
	if snap.FanStatus != nil {
		t.Fatalf("unreadable point must stay nil, got %v", snap.FanStatus)
	}
	if snap.Error == nil {
		t.Fatal("partial snapshot must record which points failed")
	}
}

func TestProcessBucketErroredWhenTemperatureDown(t *testing.T) {
	reader := healthyReader()
	delete(reader.values, "analog-input,301001")
	store := &fakeStore{}
	p := New(pollerConfig(), nil, reader, store, &fakeNotifier{}, zerolog.Nop())

	if err := p.ProcessBucket(context.Background(), bucketAt(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.snapshots[0].Status != "errored" {
		t.Fatalf("status = %q", store.snapshots[0].Status)
	}
}

func TestComfortAlertAboveBand(t *testing.T) {
	reader := healthyReader()
	reader.values["analog-input,301001"] = `83.2`
	notifier := &fakeNotifier{}
	p := New(pollerConfig(), nil, reader, &fakeStore{}, notifier, zerolog.Nop())

	if err := p.ProcessBucket(context.Background(), bucketAt(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("expected one alert, got %d", len(notifier.notes))
	}

	note := notifier.notes[0]
	if note.Direction != "above" {
		t.Fatalf("direction = %q", note.Direction)
	}
	if note.Temperature != 83.2 {
		t.Fatalf("temperature = %v", note.Temperature)
	}
	if note.DeviceName != "Rooftop AHU" {
		t.Fatalf("device name = %q", note.DeviceName)
	}
	if note.SiteName != "MainSite" {
		t.Fatalf("site name = %q", note.SiteName)
	}
}

func TestComfortAlertCooldown(t *testing.T) {
	reader := healthyReader()
	reader.values["analog-input,301001"] = `60.0`
	notifier := &fakeNotifier{}
	p := New(pollerConfig(), nil, reader, &fakeStore{}, notifier, zerolog.Nop())

	bucket := bucketAt(t)
	if err := p.ProcessBucket(context.Background(), bucket); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.ProcessBucket(context.Background(), bucket.Add(5*time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("second alert inside cooldown must be suppressed, got %d", len(notifier.notes))
	}
	if notifier.notes[0].Direction != "below" {
		t.Fatalf("direction = %q", notifier.notes[0].Direction)
	}
}

func TestNoAlertInsideBand(t *testing.T) {
	notifier := &fakeNotifier{}
	p := New(pollerConfig(), nil, healthyReader(), &fakeStore{}, notifier, zerolog.Nop())

	if err := p.ProcessBucket(context.Background(), bucketAt(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatalf("in-band temperature must not alert, got %d", len(notifier.notes))
	}
}

func TestFailureStreakAlertFiresOnce(t *testing.T) {
	reader := healthyReader()
	delete(reader.values, "analog-input,301001")
	notifier := &fakeNotifier{}
	p := New(pollerConfig(), nil, reader, &fakeStore{}, notifier, zerolog.Nop())

	bucket := bucketAt(t)
	for i := 0; i < 5; i++ {
		if err := p.ProcessBucket(context.Background(), bucket.Add(time.Duration(i)*5*time.Minute)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("availability alert must fire exactly once per streak, got %d", len(notifier.notes))
	}
	if notifier.notes[0].Direction != "unavailable" {
		t.Fatalf("direction = %q", notifier.notes[0].Direction)
	}
}

func TestFailureStreakResetsOnSuccess(t *testing.T) {
	reader := healthyReader()
	delete(reader.values, "analog-input,301001")
	notifier := &fakeNotifier{}
	p := New(pollerConfig(), nil, reader, &fakeStore{}, notifier, zerolog.Nop())

	bucket := bucketAt(t)
	for i := 0; i < 2; i++ {
		if err := p.ProcessBucket(context.Background(), bucket); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	reader.values["analog-input,301001"] = `72.4`
	if err := p.ProcessBucket(context.Background(), bucket); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.failureStreak != 0 {
		t.Fatalf("successful read must reset the streak, got %d", p.failureStreak)
	}
	if len(notifier.notes) != 0 {
		t.Fatalf("streak below threshold must not alert, got %d", len(notifier.notes))
	}
}

func TestFailedNotifyDoesNotStartCooldown(t *testing.T) {
	reader := healthyReader()
	reader.values["analog-input,301001"] = `83.2`
	notifier := &fakeNotifier{err: errors.New("telegram down")}
	p := New(pollerConfig(), nil, reader, &fakeStore{}, notifier, zerolog.Nop())

	if err := p.ProcessBucket(context.Background(), bucketAt(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.lastAlert.IsZero() {
		t.Fatal("failed delivery must leave the cooldown clock untouched")
	}
}
