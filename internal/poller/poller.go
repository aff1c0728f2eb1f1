// Package poller periodically snapshots the monitored points and, when
// configured, persists them and evaluates the comfort band.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"enteliwatch/internal/alerting"
	"enteliwatch/internal/config"
	"enteliwatch/internal/gateway"
	"enteliwatch/internal/metrics"
	"enteliwatch/internal/scheduler"
	"enteliwatch/internal/storage"
)

// PointReader reads present values from the gateway.
type PointReader interface {
	PresentValue(ctx context.Context, objectRef string) (gateway.Value, error)
	DeviceName(ctx context.Context) (string, error)
}

// Poller orchestrates scheduled snapshots, persistence, and alerting.
type Poller struct {
	scheduler *scheduler.Scheduler
	reader    PointReader
	store     storage.SnapshotStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	points     config.PointsConfig
	comfortMin float64
	comfortMax float64
	cooldown   time.Duration
	channels   []string
	alertsOn   bool
	siteName   string

	locker  storage.AdvisoryLocker
	lockKey int64

	lastAlert     time.Time
	failureStreak int
}

// failureAlertThreshold is how many consecutive buckets the zone
// temperature may be unreadable before an availability alert fires.
const failureAlertThreshold = 3

// New constructs the snapshot poller.
func New(cfg *config.Config, sched *scheduler.Scheduler, reader PointReader, store storage.SnapshotStore, notifier alerting.Notifier, logger zerolog.Logger) *Poller {
	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Poller{
		scheduler:  sched,
		reader:     reader,
		store:      store,
		notifier:   notifier,
		logger:     logger.With().Str("component", "poller").Logger(),
		points:     cfg.Points,
		comfortMin: cfg.Alerting.ComfortMin,
		comfortMax: cfg.Alerting.ComfortMax,
		cooldown:   cfg.Alerting.Cooldown,
		channels:   cfg.Alerting.Channels,
		alertsOn:   cfg.Alerting.Enabled,
		siteName:   cfg.SiteDisplayName(),
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned polling loop.
func (p *Poller) Run(ctx context.Context) error {
	if p.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return p.scheduler.Run(ctx, p.ProcessBucket)
}

// ProcessBucket executes the sampling logic for one time bucket,
// skipping buckets another replica already holds the lock for.
func (p *Poller) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := p.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		p.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return p.executeBucket(ctx, bucket)
}

func (p *Poller) executeBucket(ctx context.Context, bucket time.Time) error {
	snapshot := p.collectSnapshot(ctx, bucket)

	if snapshot.Temperature == nil {
		metrics.PollsTotal.WithLabelValues("errored").Inc()
		p.failureStreak++
	} else {
		metrics.PollsTotal.WithLabelValues("complete").Inc()
		p.failureStreak = 0
	}

	if p.store != nil {
		if err := p.store.UpsertSnapshot(ctx, snapshot); err != nil {
			p.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to upsert snapshot")
		}
	}

	event := p.logger.Info().Time("bucket", bucket).Str("status", snapshot.Status)
	if snapshot.Temperature != nil {
		event = event.Float64("temperature", *snapshot.Temperature)
	}
	event.Msg("snapshot recorded")

	if p.alertsOn && p.notifier != nil {
		if snapshot.Temperature != nil {
			p.evaluateComfort(ctx, bucket, *snapshot.Temperature)
		} else if p.failureStreak == failureAlertThreshold {
			p.alertFailureStreak(ctx, bucket)
		}
	}

	return nil
}

// alertFailureStreak fires once when the streak crosses the threshold;
// further failed buckets stay quiet until a successful read resets it.
func (p *Poller) alertFailureStreak(ctx context.Context, bucket time.Time) {
	note := alerting.Notification{
		Bucket:        bucket,
		SiteName:      p.siteName,
		ComfortMin:    p.comfortMin,
		ComfortMax:    p.comfortMax,
		Direction:     "unavailable",
		Channels:      p.channels,
		AdditionalMsg: fmt.Sprintf("Zone temperature unreadable for %d consecutive buckets.", p.failureStreak),
	}
	if err := p.notifier.Notify(ctx, note); err != nil {
		p.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch availability alert")
	}
}

// collectSnapshot reads every configured point. Per-point failures
// leave the field nil; the snapshot itself always succeeds.
func (p *Poller) collectSnapshot(ctx context.Context, bucket time.Time) storage.PointSnapshot {
	snapshot := storage.PointSnapshot{
		Bucket:    bucket,
		Status:    "complete",
		CreatedAt: time.Now().UTC(),
	}

	var failures []string

	snapshot.Temperature = p.readFloat(ctx, p.points.Temperature, &failures)
	if p.points.UseDualSetpoints {
		snapshot.HeatingSetpoint = p.readFloat(ctx, p.points.HeatingSetpoint, &failures)
		snapshot.CoolingSetpoint = p.readFloat(ctx, p.points.CoolingSetpoint, &failures)
	} else {
		snapshot.ZoneSetpoint = p.readFloat(ctx, p.points.ZoneSetpoint, &failures)
	}

	if mode, ok := p.readMode(ctx, &failures); ok {
		snapshot.SystemMode = &mode
	}
	snapshot.PeakSavings = p.readTruthy(ctx, p.points.PeakSavings, &failures)
	snapshot.FanStatus = p.readTruthy(ctx, p.points.FanStatus, &failures)

	if len(failures) > 0 {
		msg := fmt.Sprintf("points unavailable: %v", failures)
		snapshot.Error = &msg
		if snapshot.Temperature == nil {
			snapshot.Status = "errored"
		} else {
			snapshot.Status = "partial"
		}
	}

	return snapshot
}

func (p *Poller) readFloat(ctx context.Context, objectRef string, failures *[]string) *float64 {
	if objectRef == "" {
		return nil
	}
	value, err := p.reader.PresentValue(ctx, objectRef)
	if err != nil {
		p.logger.Debug().Err(err).Str("object", objectRef).Msg("present-value read failed")
		*failures = append(*failures, objectRef)
		return nil
	}
	number, ok := value.Float()
	if !ok {
		*failures = append(*failures, objectRef)
		return nil
	}
	return &number
}

func (p *Poller) readTruthy(ctx context.Context, objectRef string, failures *[]string) *bool {
	if objectRef == "" {
		return nil
	}
	value, err := p.reader.PresentValue(ctx, objectRef)
	if err != nil {
		p.logger.Debug().Err(err).Str("object", objectRef).Msg("present-value read failed")
		*failures = append(*failures, objectRef)
		return nil
	}
	truthy := value.Truthy()
	return &truthy
}

func (p *Poller) readMode(ctx context.Context, failures *[]string) (string, bool) {
	if p.points.SystemMode == "" {
		return "", false
	}
	value, err := p.reader.PresentValue(ctx, p.points.SystemMode)
	if err != nil {
		p.logger.Debug().Err(err).Str("object", p.points.SystemMode).Msg("present-value read failed")
		*failures = append(*failures, p.points.SystemMode)
		return "", false
	}
	return MapSystemMode(value), true
}

// MapSystemMode translates the multi-state mode value into its display
// name. Unknown states render as Unknown rather than guessing.
func MapSystemMode(value gateway.Value) string {
	number, ok := value.Int()
	if !ok {
		return "Unknown"
	}
	switch number {
	case 1:
		return "Heating"
	case 2:
		return "Cooling"
	case 3:
		return "Deadband"
	}
	return "Deadband"
}

func (p *Poller) evaluateComfort(ctx context.Context, bucket time.Time, temperature float64) {
	var direction string
	switch {
	case temperature > p.comfortMax:
		direction = "above"
	case temperature < p.comfortMin:
		direction = "below"
	default:
		return
	}

	if p.cooldown > 0 && !p.lastAlert.IsZero() && time.Since(p.lastAlert) < p.cooldown {
		p.logger.Debug().Time("bucket", bucket).Msg("comfort alert suppressed by cooldown")
		return
	}

	deviceName, err := p.reader.DeviceName(ctx)
	if err != nil {
		deviceName = ""
	}

	note := alerting.Notification{
		Bucket:      bucket,
		DeviceName:  deviceName,
		SiteName:    p.siteName,
		Temperature: temperature,
		ComfortMin:  p.comfortMin,
		ComfortMax:  p.comfortMax,
		Direction:   direction,
		Channels:    p.channels,
	}
	if err := p.notifier.Notify(ctx, note); err != nil {
		p.logger.Error().Err(err).Time("bucket", bucket).Msg("failed to dispatch alert")
		return
	}
	p.lastAlert = time.Now()
}

func (p *Poller) acquireLock(ctx context.Context) (func(), bool, error) {
	if p.lockKey == 0 || p.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := p.locker.TryAdvisoryLock(ctx, p.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
