// Package scheduler runs the housekeeping sweeps: the job deadline watchdog,
// retention purge of finished jobs, and stale cookie-file cleanup.
package scheduler

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"phone_lister/config"
	"phone_lister/orchestrator"
)

const (
	jobRetention    = 24 * time.Hour
	cookieRetention = 7 * 24 * time.Hour
)

type Scheduler struct {
	cfg  *config.Config
	orch *orchestrator.Orchestrator
	cron *cron.Cron
}

func New(cfg *config.Config, orch *orchestrator.Orchestrator) *Scheduler {
	return &Scheduler{
		cfg:  cfg,
		orch: orch,
		cron: cron.New(),
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 1m", s.sweepOverdue); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 1h", s.sweepFinished); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 4 * * *", s.sweepCookies); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("Housekeeping sweeps started (deadline watchdog, job retention %s, cookie retention %s)", jobRetention, cookieRetention)
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// sweepOverdue is the backstop for the per-job deadline context.
func (s *Scheduler) sweepOverdue() {
	s.orch.CancelOverdue(s.cfg.JobDeadline)
}

func (s *Scheduler) sweepFinished() {
	if n := s.orch.Store().Purge(jobRetention); n > 0 {
		log.Printf("Purged %d finished jobs older than %s", n, jobRetention)
	}
}

// sweepCookies drops cookie files that have not been refreshed within the
// retention window; they would only trigger the fresh-login fallback anyway.
func (s *Scheduler) sweepCookies() {
	entries, err := os.ReadDir(s.cfg.CookieDir)
	if err != nil {
		return
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "_cookies.json") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > cookieRetention {
			if err := os.Remove(filepath.Join(s.cfg.CookieDir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		log.Printf("Removed %d stale cookie files", removed)
	}
}
