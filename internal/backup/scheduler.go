package backup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mkarpov/otpvault/internal/envelope"
	"github.com/mkarpov/otpvault/internal/models"
)

// DebounceWindow is the quiet period that collapses bursts of
// mutations into one backup.
const DebounceWindow = 5 * time.Minute

// Trigger outcomes.
type Status string

const (
	// StatusCompleted means a backup was written by this call.
	StatusCompleted Status = "completed"
	// StatusScheduled means a debounce timer was armed or re-armed.
	StatusScheduled Status = "scheduled"
	// StatusSkipped means an execution was already in flight.
	StatusSkipped Status = "skipped"
)

// TriggerResult reports what a trigger call did.
type TriggerResult struct {
	Status Status `json:"status"`
	// Delay is how long until the armed timer fires, for scheduled results.
	Delay time.Duration `json:"delay,omitempty"`
	// Key is the written backup key, for completed results.
	Key string `json:"key,omitempty"`
}

// Config holds the scheduler's retention settings.
type Config struct {
	// MaxBackups bounds the number of retained backups. 0 is unlimited.
	MaxBackups int
	// AutoCleanup runs retention after every successful backup.
	AutoCleanup bool
	// Window overrides DebounceWindow; zero keeps the default.
	// Only tests shorten it.
	Window time.Duration
}

// Scheduler decides when a backup actually executes. It is a debounced
// single-flight state machine: Idle, PendingDebounce (an armed timer)
// or Executing. State is private to the instance; construct one and
// pass it to every call site that needs to trigger a backup.
type Scheduler struct {
	repo  *Repository
	codec *envelope.Codec
	log   *zap.Logger
	cfg   Config

	mu        sync.Mutex
	timer     *time.Timer
	executing bool
	lastRun   time.Time

	now func() time.Time
}

// NewScheduler creates a scheduler writing through repo.
func NewScheduler(repo *Repository, codec *envelope.Codec, log *zap.Logger, cfg Config) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Window <= 0 {
		cfg.Window = DebounceWindow
	}
	return &Scheduler{
		repo:  repo,
		codec: codec,
		log:   log,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Trigger asks for a backup of the given collection snapshot.
//
// The snapshot is captured at trigger time: when several mutations land
// inside one debounce window, each trigger re-arms the timer with its
// own snapshot, so the backup eventually written reflects the most
// recent trigger rather than the state at execution time.
//
// An in-flight execution makes the call a no-op ("skipped"). Immediate
// triggers, and triggers arriving after a full quiet window, execute
// synchronously. Everything else arms or re-arms the timer.
func (s *Scheduler) Trigger(ctx context.Context, secrets []models.SecretRecord, reason string, immediate bool) (TriggerResult, error) {
	s.mu.Lock()
	if s.executing {
		s.mu.Unlock()
		s.log.Info("backup already in progress, skipping trigger", zap.String("reason", reason))
		return TriggerResult{Status: StatusSkipped}, nil
	}

	elapsed := s.now().Sub(s.lastRun)
	if immediate || elapsed >= s.cfg.Window {
		s.executing = true
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.mu.Unlock()

		key, err := s.execute(ctx, secrets, reason)

		s.mu.Lock()
		s.executing = false
		s.mu.Unlock()
		if err != nil {
			return TriggerResult{}, err
		}
		return TriggerResult{Status: StatusCompleted, Key: key}, nil
	}

	// Re-arming always cancels the previous timer first, so at most
	// one pending timer exists per scheduler.
	delay := s.cfg.Window - elapsed
	if s.timer != nil {
		s.timer.Stop()
	}
	snapshot := make([]models.SecretRecord, len(secrets))
	copy(snapshot, secrets)
	s.timer = time.AfterFunc(delay, func() {
		s.fire(snapshot, reason)
	})
	s.mu.Unlock()

	s.log.Info("backup scheduled",
		zap.String("reason", reason), zap.Duration("delay", delay))
	return TriggerResult{Status: StatusScheduled, Delay: delay}, nil
}

// Notify satisfies the secret store's notifier contract. It runs the
// trigger and logs failures; by the time a deferred execution fails
// the originating request has already been answered, so there is no
// caller left to surface the error to.
func (s *Scheduler) Notify(ctx context.Context, secrets []models.SecretRecord, reason string, immediate bool) {
	if _, err := s.Trigger(ctx, secrets, reason, immediate); err != nil {
		s.log.Error("backup trigger failed",
			zap.String("reason", reason), zap.Error(err))
	}
}

// fire runs when the debounce timer elapses.
func (s *Scheduler) fire(secrets []models.SecretRecord, reason string) {
	s.mu.Lock()
	if s.executing {
		s.mu.Unlock()
		s.log.Info("backup already in progress, timer fire skipped")
		return
	}
	s.executing = true
	s.timer = nil
	s.mu.Unlock()

	if _, err := s.execute(context.Background(), secrets, reason); err != nil {
		s.log.Error("scheduled backup failed",
			zap.String("reason", reason), zap.Error(err))
	}

	s.mu.Lock()
	s.executing = false
	s.mu.Unlock()
}

// execute builds the backup payload, writes it and kicks off retention
// cleanup. Write errors propagate to the caller; cleanup runs detached
// and only ever logs.
func (s *Scheduler) execute(ctx context.Context, secrets []models.SecretRecord, reason string) (string, error) {
	if secrets == nil {
		secrets = []models.SecretRecord{}
	}
	nowT := s.now()
	payload := models.BackupPayload{
		Timestamp: nowT.Unix(),
		Version:   models.BackupFormatVersion,
		Count:     len(secrets),
		Reason:    reason,
		Secrets:   secrets,
	}

	content, err := s.codec.Encrypt(payload)
	if err != nil {
		return "", err
	}
	key := Key(nowT)
	if err := s.repo.Put(ctx, key, content); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.lastRun = s.now()
	s.mu.Unlock()

	s.log.Info("backup written",
		zap.String("key", key),
		zap.String("reason", reason),
		zap.Int("records", len(secrets)))

	if s.cfg.AutoCleanup {
		go func() {
			if err := s.repo.Cleanup(context.Background(), s.cfg.MaxBackups); err != nil {
				s.log.Error("backup retention cleanup failed", zap.Error(err))
			}
		}()
	}
	return key, nil
}
