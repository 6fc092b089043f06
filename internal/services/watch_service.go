package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"db-premigrate/internal/models"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"
)

const checkTimeout = 2 * time.Minute

// WatchService periodically diagnoses the database ahead of an upgrade
// window. It only reads.
type WatchService struct {
	db            *sql.DB
	repairService *RepairService
	logger        hclog.Logger

	mutex         sync.RWMutex
	isRunning     bool
	cron          *cron.Cron
	cronSchedule  string
	lastRunTime   time.Time
	nextRunTime   time.Time
	lastDiagnosis *models.Diagnosis
	lastError     string

	cancelInitial context.CancelFunc
	initialDone   chan struct{}
}

func NewWatchService(db *sql.DB, repairService *RepairService, cronSchedule string, logger hclog.Logger) *WatchService {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &WatchService{
		db:            db,
		repairService: repairService,
		logger:        logger.Named("watch"),
		cron:          cron.New(),
		cronSchedule:  cronSchedule,
	}
}

// Start schedules the periodic check and runs a first one right away.
func (s *WatchService) Start() error {
	return s.start(true)
}

func (s *WatchService) start(runNow bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.isRunning {
		return fmt.Errorf("watch already running")
	}

	s.logger.Info("starting watch", "schedule", s.cronSchedule)

	s.cron = cron.New()
	entryID, err := s.cron.AddFunc(s.cronSchedule, func() {
		if _, err := s.Trigger(context.Background()); err != nil {
			s.logger.Error("scheduled check failed", "error", err)
		}
		s.updateNextRun()
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.isRunning = true

	entries := s.cron.Entries()
	if len(entries) > 0 {
		s.nextRunTime = entries[0].Next
		s.logger.Info("next check scheduled", "at", s.nextRunTime.Format("2006-01-02 15:04:05"))
	}

	if runNow {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		s.cancelInitial = cancel
		s.initialDone = done

		go func() {
			defer close(done)
			s.logger.Info("running initial check")
			if _, err := s.Trigger(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("initial check failed", "error", err)
			}
		}()
	}

	s.logger.Info("watch started", "entry_id", entryID)
	return nil
}

func (s *WatchService) Stop() error {
	s.mutex.Lock()
	if !s.isRunning {
		s.mutex.Unlock()
		return fmt.Errorf("watch is not running")
	}
	c := s.cron
	cancel, done := s.cancelInitial, s.initialDone
	s.cancelInitial, s.initialDone = nil, nil
	s.isRunning = false
	s.nextRunTime = time.Time{}
	s.mutex.Unlock()

	// Running jobs take the mutex, so wait for them without holding it.
	if cancel != nil {
		cancel()
		<-done
	}
	<-c.Stop().Done()
	s.logger.Info("watch stopped")

	return nil
}

// UpdateSchedule replaces the cron schedule. A running watch is restarted on
// the new schedule without an extra immediate check.
func (s *WatchService) UpdateSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.mutex.Lock()
	if schedule == s.cronSchedule {
		s.mutex.Unlock()
		return nil
	}
	s.cronSchedule = schedule
	running := s.isRunning
	s.mutex.Unlock()

	s.logger.Info("schedule updated", "schedule", schedule, "restart", running)
	if !running {
		return nil
	}

	if err := s.Stop(); err != nil {
		return err
	}
	return s.start(false)
}

func (s *WatchService) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.isRunning
}

// Trigger runs a diagnosis immediately and records the outcome.
func (s *WatchService) Trigger(ctx context.Context) (*models.Diagnosis, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	started := time.Now()
	diagnosis, err := s.repairService.Diagnose(ctx, s.db)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err != nil {
		// A check cut short by Stop is not a result.
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.lastRunTime = started
		s.lastError = err.Error()
		return nil, err
	}
	s.lastRunTime = started
	s.lastError = ""
	s.lastDiagnosis = diagnosis

	if diagnosis.Clean() {
		s.logger.Info("database is clean", "sequences", diagnosis.SequenceCount)
	} else {
		s.logger.Warn("database needs repair before upgrade",
			"orphan_act_window_views", diagnosis.OrphanActWindowViews,
			"legacy_columns", len(diagnosis.LegacyColumns))
	}
	return diagnosis, nil
}

func (s *WatchService) updateNextRun() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isRunning {
		return
	}
	entries := s.cron.Entries()
	if len(entries) > 0 {
		s.nextRunTime = entries[0].Next
	}
}

func (s *WatchService) GetStatus() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var lastRun, nextRun string
	if !s.lastRunTime.IsZero() {
		lastRun = s.lastRunTime.Format("2006-01-02 15:04:05")
	}
	if !s.nextRunTime.IsZero() {
		nextRun = s.nextRunTime.Format("2006-01-02 15:04:05")
	}

	status := map[string]interface{}{
		"isRunning":    s.isRunning,
		"cronSchedule": s.cronSchedule,
		"lastRun":      lastRun,
		"nextRun":      nextRun,
	}
	if s.lastDiagnosis != nil {
		d := *s.lastDiagnosis
		status["diagnosis"] = d
		status["clean"] = d.Clean()
	}
	if s.lastError != "" {
		status["error"] = s.lastError
	}
	return status
}
