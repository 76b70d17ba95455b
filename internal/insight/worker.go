package insight

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/iayvob/palboti-backend/internal/model"
)

// dedupWindow suppresses a repeat of the same insight kind and title while
// a recent unacknowledged copy exists
const dedupWindow = time.Hour

// Worker periodically collects a fleet snapshot, runs the generator and
// stores new insights
type Worker struct {
	ctx       context.Context
	cancel    context.CancelFunc
	db        *gorm.DB
	generator Generator
	logger    *logrus.Entry
	interval  time.Duration
}

// Config holds the configuration for the insight worker
type Config struct {
	DB          *gorm.DB
	Generator   Generator
	Logger      *logrus.Entry
	IntervalSec int
}

// NewWorker creates a new insight worker
func NewWorker(cfg *Config) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	generator := cfg.Generator
	if generator == nil {
		generator = RuleBased{}
	}
	return &Worker{
		ctx:       ctx,
		cancel:    cancel,
		db:        cfg.DB,
		generator: generator,
		logger:    cfg.Logger.WithField("component", "insight-worker"),
		interval:  time.Duration(cfg.IntervalSec) * time.Second,
	}
}

// Start begins the periodic insight runs
func (w *Worker) Start() {
	w.logger.Info("Starting insight worker...")
	ticker := time.NewTicker(w.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.run()
			case <-w.ctx.Done():
				w.logger.Info("Stopping insight worker...")
				return
			}
		}
	}()
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.cancel()
}

func (w *Worker) run() {
	snapshot, err := w.collect()
	if err != nil {
		w.logger.Errorf("Failed to collect fleet snapshot: %v", err)
		return
	}

	drafts, err := w.generator.Generate(w.ctx, snapshot)
	if err != nil {
		w.logger.Errorf("Insight generation failed: %v", err)
		return
	}

	stored := 0
	for _, draft := range drafts {
		created, err := w.store(draft)
		if err != nil {
			w.logger.Errorf("Failed to store insight %q: %v", draft.Title, err)
			continue
		}
		if created {
			stored++
		}
	}

	if stored > 0 {
		w.logger.Infof("Stored %d new insights", stored)
	}
}

// collect gathers the aggregate numbers every rule works from
func (w *Worker) collect() (FleetSnapshot, error) {
	var snapshot FleetSnapshot

	if err := w.db.Find(&snapshot.Robots).Error; err != nil {
		return snapshot, err
	}

	if err := w.db.Model(&model.Task{}).
		Where("status = ?", model.TaskStatusPending).
		Count(&snapshot.PendingTasks).Error; err != nil {
		return snapshot, err
	}

	dayStart := time.Now().Truncate(24 * time.Hour)
	if err := w.db.Model(&model.Task{}).
		Where("status = ? AND completed_at >= ?", model.TaskStatusCompleted, dayStart).
		Count(&snapshot.CompletedToday).Error; err != nil {
		return snapshot, err
	}

	if err := w.db.Model(&model.Product{}).
		Where("status = ?", model.ProductStatusStored).
		Count(&snapshot.ProductsStored).Error; err != nil {
		return snapshot, err
	}

	var zones []model.Zone
	if err := w.db.Find(&zones).Error; err != nil {
		return snapshot, err
	}
	snapshot.ZoneOccupancy = make(map[string]ZoneOccupancy, len(zones))
	for _, zone := range zones {
		var used int64
		if err := w.db.Model(&model.Slot{}).
			Where("zone_id = ? AND product_id IS NOT NULL", zone.ID).
			Count(&used).Error; err != nil {
			return snapshot, err
		}
		snapshot.ZoneOccupancy[zone.ID] = ZoneOccupancy{
			Used:     int(used),
			Capacity: zone.Capacity,
		}
	}

	return snapshot, nil
}

// store persists a draft unless a recent unacknowledged copy already
// exists. Returns whether a row was created.
func (w *Worker) store(draft Draft) (bool, error) {
	var count int64
	since := time.Now().Add(-dedupWindow)
	if err := w.db.Model(&model.Insight{}).
		Where("kind = ? AND title = ? AND acknowledged = ? AND created_at >= ?",
			draft.Kind, draft.Title, false, since).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	metadata, err := marshalMetadata(draft.Metadata)
	if err != nil {
		return false, err
	}

	row := model.Insight{
		Kind:     draft.Kind,
		Severity: draft.Severity,
		Title:    draft.Title,
		Body:     draft.Body,
		Metadata: datatypes.JSON(metadata),
	}
	if err := w.db.Create(&row).Error; err != nil {
		return false, err
	}
	return true, nil
}
