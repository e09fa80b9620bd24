package storm

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/rampart/internal/alert"
)

// Outcome is the result of a post-persist storm evaluation.
type Outcome struct {
	Detected bool
	Count    int64
}

// MetaAlertSink persists the synthetic meta-alert a storm produces.
// *alert.Store satisfies it.
type MetaAlertSink interface {
	Persist(ctx context.Context, a *alert.Alert) error
}

// Notifier is told about newly detected storms. Optional.
type Notifier interface {
	StormDetected(ctx context.Context, tenantID, deviceID string, count int64)
}

// Detector composes the rate counter and suppression gate to decide when
// a device has crossed into a storm.
type Detector struct {
	counter  *Counter
	gate     *Gate
	alerts   MetaAlertSink
	logger   log.Logger
	metrics  *Metrics
	notifier Notifier
	now      func() time.Time
}

// NewDetector creates a Detector. metrics and notifier may be nil.
func NewDetector(counter *Counter, gate *Gate, alerts MetaAlertSink, logger log.Logger, metrics *Metrics, notifier Notifier) *Detector {
	if logger == nil {
		logger = log.Nop()
	}
	return &Detector{
		counter:  counter,
		gate:     gate,
		alerts:   alerts,
		logger:   logger,
		metrics:  metrics,
		notifier: notifier,
		now:      time.Now,
	}
}

// OnAlertPersisted runs once per successfully persisted device-scoped
// alert. It is strictly best-effort: every cache or persistence failure is
// logged and swallowed, because the triggering alert is already stored and
// a missed storm is acceptable where a blocked ingestion is not.
func (d *Detector) OnAlertPersisted(ctx context.Context, tenantID, deviceID string) Outcome {
	count, err := d.counter.Incr(ctx, tenantID, deviceID)
	if err != nil {
		d.fail(ctx, err, "storm counter increment failed", deviceID)
		return Outcome{}
	}

	if count <= Threshold {
		return Outcome{}
	}

	active, err := d.gate.IsActive(ctx, tenantID, deviceID)
	if err != nil {
		d.fail(ctx, err, "suppression check failed", deviceID)
		return Outcome{}
	}
	if active {
		// Storm already reported for this device; one meta-alert per
		// suppression window.
		return Outcome{}
	}

	if err := d.alerts.Persist(ctx, d.metaAlert(tenantID, deviceID, count)); err != nil {
		d.fail(ctx, err, "meta-alert persistence failed", deviceID)
		return Outcome{}
	}

	if err := d.gate.Activate(ctx, tenantID, deviceID); err != nil {
		d.fail(ctx, err, "suppression activation failed", deviceID)
	}

	d.logger.Warn(ctx, "alert storm detected",
		"tenant_id", tenantID,
		"device_id", deviceID,
		"alert_count", count,
	)
	if d.metrics != nil {
		d.metrics.Detected.Inc()
	}
	if d.notifier != nil {
		d.notifier.StormDetected(ctx, tenantID, deviceID, count)
	}

	return Outcome{Detected: true, Count: count}
}

func (d *Detector) metaAlert(tenantID, deviceID string, count int64) *alert.Alert {
	now := d.now()
	return &alert.Alert{
		ID:           ulid.Make().String(),
		TenantID:     tenantID,
		DeviceID:     deviceID,
		SourceSystem: "rampart",
		AlertType:    alert.TypeStorm,
		Severity:     alert.SeverityHigh,
		Status:       alert.StatusOpen,
		Message: fmt.Sprintf(
			"Alert storm detected on device %s: %d alerts within the last 5 minutes; new alerts for this device are suppressed for 15 minutes",
			deviceID, count,
		),
		Metadata: map[string]any{
			"alertCount":         count,
			"windowSeconds":      int(Window.Seconds()),
			"suppressionSeconds": int(Suppression.Seconds()),
		},
		CreatedAt:  now,
		DetectedAt: now,
	}
}

func (d *Detector) fail(ctx context.Context, err error, msg, deviceID string) {
	d.logger.Error(ctx, err, msg, "device_id", deviceID)
	if d.metrics != nil {
		d.metrics.Errors.Inc()
	}
}
