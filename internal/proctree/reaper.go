package proctree

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tessera/internal/logging"
)

const (
	defaultPollInterval = 30 * time.Millisecond
	defaultGrace        = 5 * time.Second
)

// Report summarizes a reap.
type Report struct {
	Matched []Record
	Killed  []int
	// Remaining lists pids still present after the forced kill.
	Remaining []int
}

// Reaper terminates launcher-owned descendants of a root process.
type Reaper struct {
	lister   Lister
	signaler Signaler
	poll     time.Duration
	grace    time.Duration
	logger   *slog.Logger
}

// NewReaper builds a Reaper. Zero durations fall back to 30ms polling and a 5s grace.
func NewReaper(lister Lister, signaler Signaler, poll, grace time.Duration, logger *slog.Logger) *Reaper {
	if poll <= 0 {
		poll = defaultPollInterval
	}
	if grace < 0 {
		grace = defaultGrace
	}
	return &Reaper{
		lister:   lister,
		signaler: signaler,
		poll:     poll,
		grace:    grace,
		logger:   logging.NewComponentLogger(logger, "reaper"),
	}
}

// NewSystemReaper uses the host process table and signals.
func NewSystemReaper(poll, grace time.Duration, logger *slog.Logger) *Reaper {
	return NewReaper(SystemLister(), SystemSignaler(), poll, grace, logger)
}

// ReapTree terminates matching descendants of root and waits for them to go
// away. Individual failures are logged, never returned.
func (r *Reaper) ReapTree(ctx context.Context, root int, m Matcher) Report {
	logger := logging.WithContext(ctx, r.logger)
	var report Report

	records, err := r.lister.List(ctx)
	if err != nil {
		logging.WarnWithContext(logger, "process enumeration failed; nothing reaped", "reap_list_failed",
			logging.Error(err),
			logging.Int("root_pid", root),
			logging.String(logging.FieldErrorHint, "stop mongod and the worker manually"),
		)
		return report
	}
	report.Matched = Select(records, root, m)
	if len(report.Matched) == 0 {
		logger.Debug("no descendants to reap", logging.Int("root_pid", root))
		return report
	}

	pending := make(map[int]bool, len(report.Matched))
	for _, rec := range report.Matched {
		pending[rec.PID] = true
		if err := r.signaler.Terminate(rec.PID); err != nil {
			if errors.Is(err, ErrNoProcess) {
				delete(pending, rec.PID)
				continue
			}
			logger.Debug("terminate failed", logging.Int("pid", rec.PID), logging.Error(err))
		}
	}
	logger.Info("terminating process tree",
		logging.Int("root_pid", root),
		logging.Int("matched", len(report.Matched)),
		logging.String(logging.FieldEventType, "reap_started"),
	)

	r.await(ctx, pending, r.grace)

	if len(pending) > 0 {
		for pid := range pending {
			if err := r.signaler.Kill(pid); err != nil && !errors.Is(err, ErrNoProcess) {
				logger.Debug("kill failed", logging.Int("pid", pid), logging.Error(err))
				continue
			}
			report.Killed = append(report.Killed, pid)
		}
		r.await(ctx, pending, r.grace)
		for pid := range pending {
			report.Remaining = append(report.Remaining, pid)
		}
	}

	if len(report.Remaining) > 0 {
		logging.WarnWithContext(logger, "processes survived reaping", "reap_incomplete",
			logging.Any("pids", report.Remaining),
			logging.String(logging.FieldErrorHint, "stop the listed processes manually"),
		)
	} else {
		logger.Info("process tree reaped",
			logging.Int("root_pid", root),
			logging.Int("forced", len(report.Killed)),
			logging.String(logging.FieldEventType, "reap_completed"),
		)
	}
	return report
}

// await polls until every pending pid is gone, the window elapses or ctx ends.
// Gone pids are removed from pending.
func (r *Reaper) await(ctx context.Context, pending map[int]bool, window time.Duration) {
	deadline := time.Now().Add(window)
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		r.prune(ctx, pending)
		if len(pending) == 0 || !time.Now().Before(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Reaper) prune(ctx context.Context, pending map[int]bool) {
	records, err := r.lister.List(ctx)
	if err != nil {
		return
	}
	alive := make(map[int]bool, len(records))
	for _, rec := range records {
		if !rec.Zombie {
			alive[rec.PID] = true
		}
	}
	for pid := range pending {
		if !alive[pid] {
			delete(pending, pid)
		}
	}
}
