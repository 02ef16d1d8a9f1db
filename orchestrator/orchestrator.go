// Package orchestrator accepts batch jobs, groups rows by platform, runs one
// worker per (job, platform) group, and drains step events into the job
// record. Rows inside a group run serially to respect the platform's rate
// limit; groups and jobs run concurrently up to the global worker cap.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"phone_lister/auth"
	"phone_lister/browser"
	"phone_lister/codes"
	"phone_lister/config"
	"phone_lister/logging"
	"phone_lister/mail"
	"phone_lister/models"
	"phone_lister/obs"
	"phone_lister/poster"
	"phone_lister/storage"
)

// RowInput is one listing bound for one platform, as handed over by the
// ingress or the batch reader.
type RowInput struct {
	Platform string
	Listing  models.ListingRecord
}

type Orchestrator struct {
	cfg     *config.Config
	store   *storage.JobStore
	journal *storage.SQLiteJournal   // may be nil
	archive *storage.PostgresArchive // may be nil
	codes   *codes.Store
	mail    mail.Retriever // may be nil

	sem chan struct{} // global worker cap, one slot per running group

	mu        sync.Mutex
	cancels   map[string]context.CancelFunc
	postTimes map[string][]time.Time // per-platform posts in the last hour
	seeded    map[string]bool        // platforms whose postTimes were seeded from the archive
	platMu    map[string]*sync.Mutex // one browser session per platform at a time
}

func New(cfg *config.Config, store *storage.JobStore, journal *storage.SQLiteJournal, archive *storage.PostgresArchive, codeStore *codes.Store, retriever mail.Retriever) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		journal:   journal,
		archive:   archive,
		codes:     codeStore,
		mail:      retriever,
		sem:       make(chan struct{}, cfg.WorkerCap),
		cancels:   make(map[string]context.CancelFunc),
		postTimes: make(map[string][]time.Time),
		seeded:    make(map[string]bool),
		platMu:    make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) Store() *storage.JobStore {
	return o.store
}

// Submit registers a job and starts it in the background. An empty jobID
// gets a generated one. A job with no rows is terminal immediately.
func (o *Orchestrator) Submit(ctx context.Context, jobID string, rows []RowInput) (string, error) {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	if _, exists := o.store.Get(jobID); exists {
		return "", fmt.Errorf("job %s already exists", jobID)
	}

	job := &models.Job{
		ID:        jobID,
		Status:    models.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	for i, in := range rows {
		if _, ok := o.cfg.Platforms[in.Platform]; !ok {
			return "", fmt.Errorf("unknown platform %q in row %d", in.Platform, i)
		}
		job.Rows = append(job.Rows, models.Row{
			Index:    i,
			Platform: in.Platform,
			Listing:  in.Listing,
			Status:   models.RowPending,
		})
	}
	o.store.Put(job)

	if len(job.Rows) == 0 {
		o.store.SetJobStatus(jobID, models.JobCompleted)
		o.mirrorJob(jobID)
		return jobID, nil
	}

	jobCtx, cancel := context.WithTimeout(context.Background(), o.cfg.JobDeadline)
	o.mu.Lock()
	o.cancels[jobID] = cancel
	o.mu.Unlock()

	go o.runJob(jobCtx, jobID)
	return jobID, nil
}

// RunSync drives a job to completion, for batch mode. Returns the final job
// record.
func (o *Orchestrator) RunSync(ctx context.Context, jobID string, rows []RowInput) (*models.Job, error) {
	id, err := o.Submit(ctx, jobID, rows)
	if err != nil {
		return nil, err
	}
	for {
		job, ok := o.store.Get(id)
		if !ok {
			return nil, fmt.Errorf("job %s disappeared", id)
		}
		if job.Status == models.JobCompleted || job.Status == models.JobCancelled {
			return job, nil
		}
		select {
		case <-ctx.Done():
			o.Cancel(id)
			return o.Status(id)
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// SubmitCode routes a manual 2FA code to the waiting worker. Invalid codes
// are rejected synchronously without touching the store. An empty platform
// delivers to every slot the job is currently waiting on.
func (o *Orchestrator) SubmitCode(jobID, platform, code string) error {
	if !codes.Valid(code) {
		return fmt.Errorf("code does not match ^[A-Z0-9]{4,8}$")
	}
	if !o.codes.Submit(jobID, platform, code) {
		return fmt.Errorf("no pending 2fa wait for job %s", jobID)
	}
	return nil
}

func (o *Orchestrator) Status(jobID string) (*models.Job, error) {
	job, ok := o.store.Get(jobID)
	if !ok {
		return nil, fmt.Errorf("unknown job %s", jobID)
	}
	return job, nil
}

// Cancel signals the running state machines; they observe it at every state
// transition and page interaction. Outstanding rows end Failed(cancelled).
func (o *Orchestrator) Cancel(jobID string) {
	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

// CancelOverdue enforces the overall job deadline from the outside; the
// per-job context normally fires first, this is the sweep's backstop.
func (o *Orchestrator) CancelOverdue(deadline time.Duration) {
	for _, job := range o.store.RunningJobs() {
		if job.StartedAt != nil && time.Since(*job.StartedAt) > deadline {
			log.Printf("job %s exceeded deadline, cancelling", job.ID)
			o.Cancel(job.ID)
		}
	}
}

func (o *Orchestrator) runJob(ctx context.Context, jobID string) {
	defer func() {
		o.mu.Lock()
		if cancel, ok := o.cancels[jobID]; ok {
			cancel()
			delete(o.cancels, jobID)
		}
		o.mu.Unlock()
		o.codes.Clear(jobID)
	}()

	o.store.SetJobStatus(jobID, models.JobRunning)
	job, _ := o.store.Get(jobID)

	groups := make(map[string][]int)
	for _, row := range job.Rows {
		groups[row.Platform] = append(groups[row.Platform], row.Index)
	}

	var wg sync.WaitGroup
	for platform, indexes := range groups {
		wg.Add(1)
		go func(platform string, indexes []int) {
			defer wg.Done()
			select {
			case o.sem <- struct{}{}:
				defer func() { <-o.sem }()
			case <-ctx.Done():
				o.failRemaining(jobID, indexes, "Cancelled", "cancelled before start")
				return
			}
			o.runGroup(ctx, jobID, platform, indexes)
		}(platform, indexes)
	}
	wg.Wait()

	if ctx.Err() != nil {
		o.failRemainingAll(jobID, "Cancelled", "job cancelled")
		o.store.SetJobStatus(jobID, models.JobCancelled)
		obs.CountJob("cancelled")
	} else {
		o.store.SetJobStatus(jobID, models.JobCompleted)
		if final, ok := o.store.Get(jobID); ok && final.Succeeded() {
			obs.CountJob("succeeded")
		} else {
			obs.CountJob("failed")
		}
	}
	o.mirrorJob(jobID)
}

// platformLock serializes group workers on one platform: two jobs never
// drive the same marketplace account concurrently.
func (o *Orchestrator) platformLock(platform string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.platMu[platform]; !ok {
		o.platMu[platform] = &sync.Mutex{}
	}
	return o.platMu[platform]
}

func (o *Orchestrator) runGroup(ctx context.Context, jobID, platform string, indexes []int) {
	jl := logging.JobLogger{JobID: jobID, Platform: platform}
	desc := o.cfg.Platforms[platform]

	lock := o.platformLock(platform)
	lock.Lock()
	defer lock.Unlock()
	if ctx.Err() != nil {
		o.failRemaining(jobID, indexes, "Cancelled", "job cancelled")
		return
	}
	o.seedRateLimit(ctx, platform)

	creds, err := o.cfg.CredentialsFor(platform)
	if err != nil {
		jl.Printf("credentials missing, failing group: %v", err)
		o.failRemaining(jobID, indexes, "ConfigurationMissing", err.Error())
		return
	}

	events := make(chan models.StepEvent, 128)
	var drain sync.WaitGroup
	drain.Add(1)
	go func() {
		defer drain.Done()
		for ev := range events {
			o.store.AppendStep(jobID, ev)
			obs.CountStep(platform, ev.Label)
			if o.journal != nil {
				o.journal.RecordStep(jobID, ev)
			}
		}
	}()
	defer func() {
		close(events)
		drain.Wait()
	}()

	session, err := browser.Open(o.cfg.Browser, platform)
	if err != nil {
		jl.Printf("session open failed: %v", err)
		o.failRemaining(jobID, indexes, "InteractionFailed", "browser session: "+err.Error())
		return
	}
	defer func() { session.Close() }()

	authCtl := &auth.Controller{
		Mail:        o.mail,
		Codes:       o.codes,
		Recipient:   o.cfg.Mail.Recipient,
		CookieDir:   o.cfg.CookieDir,
		TFAWait:     o.cfg.TFAWait,
		TFAAttempts: o.cfg.TFAAttempts,
	}
	machine := poster.New(session, desc, authCtl, creds, jobID, events)

	for n, idx := range indexes {
		if ctx.Err() != nil {
			o.failRemaining(jobID, indexes[n:], "Cancelled", "job cancelled")
			return
		}
		if n > 0 {
			if err := o.rateLimit(ctx, desc); err != nil {
				o.failRemaining(jobID, indexes[n:], "Cancelled", "job cancelled")
				return
			}
		}

		job, _ := o.store.Get(jobID)
		row := job.Rows[idx]
		o.setRow(jobID, idx, models.RowRunning, "", "")

		start := time.Now()
		result := machine.Run(ctx, &row.Listing)

		// One retry on a fresh session for retryable failures only.
		if result.Status == models.RowFailed && result.Retryable && ctx.Err() == nil {
			jl.Printf("row %d retrying on fresh session", idx)
			session.Close()
			session, err = browser.Open(o.cfg.Browser, platform)
			if err != nil {
				jl.Printf("retry session open failed: %v", err)
			} else {
				machine = poster.New(session, desc, authCtl, creds, jobID, events)
				result = machine.Run(ctx, &row.Listing)
			}
		}

		o.setRow(jobID, idx, result.Status, result.Kind, result.Reason)
		obs.ObserveRow(platform, string(result.Status), time.Since(start))
		o.recordPost(platform)
		jl.Printf("row %d done: %s %s", idx, result.Status, result.Reason)

		// Credential rejection ends the whole platform group in this job.
		if result.Kind == "AuthFailed" || result.Kind == "TwoFactorFailed" {
			if n+1 < len(indexes) {
				jl.Printf("auth failed, skipping %d remaining rows", len(indexes)-n-1)
				o.failRemaining(jobID, indexes[n+1:], result.Kind, "skipped: "+result.Reason)
			}
			return
		}
	}
}

// seedRateLimit primes the in-memory post history from the archive, so a
// restarted process cannot overshoot a platform's hourly cap. Best effort
// and once per platform.
func (o *Orchestrator) seedRateLimit(ctx context.Context, platform string) {
	if o.archive == nil {
		return
	}
	o.mu.Lock()
	already := o.seeded[platform]
	o.seeded[platform] = true
	o.mu.Unlock()
	if already {
		return
	}

	qctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	times, err := o.archive.RecentPlatformTimes(qctx, platform, time.Hour)
	if err != nil {
		log.Printf("rate limit seed %s: %v", platform, err)
		return
	}
	if len(times) == 0 {
		return
	}

	o.mu.Lock()
	o.postTimes[platform] = prune(append(times, o.postTimes[platform]...), time.Hour)
	o.mu.Unlock()
	log.Printf("rate limit %s: seeded %d recent posts from archive", platform, len(times))
}

// rateLimit enforces the inter-listing delay and the hourly cap for one
// platform, both descriptor-driven.
func (o *Orchestrator) rateLimit(ctx context.Context, desc *models.PlatformDescriptor) error {
	if err := browser.Sleep(ctx, time.Duration(desc.InterListingDelaySeconds())*time.Second); err != nil {
		return err
	}

	for {
		wait := o.hourlyWait(desc)
		if wait <= 0 {
			return nil
		}
		log.Printf("rate limit %s: waiting %s", desc.ID, wait.Round(time.Second))
		if err := browser.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// hourlyWait reports how long the next post must wait for the platform's
// hourly cap, pruning expired entries as a side effect.
func (o *Orchestrator) hourlyWait(desc *models.PlatformDescriptor) time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	times := prune(o.postTimes[desc.ID], time.Hour)
	o.postTimes[desc.ID] = times
	if len(times) >= desc.MaxListingsPerHour() {
		return time.Until(times[0].Add(time.Hour))
	}
	return 0
}

func (o *Orchestrator) recordPost(platform string) {
	o.mu.Lock()
	o.postTimes[platform] = append(prune(o.postTimes[platform], time.Hour), time.Now())
	o.mu.Unlock()
}

func prune(times []time.Time, window time.Duration) []time.Time {
	cutoff := time.Now().Add(-window)
	var out []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func (o *Orchestrator) setRow(jobID string, idx int, status models.RowStatus, kind, reason string) {
	if err := o.store.SetRowStatus(jobID, idx, status, kind, reason); err != nil {
		log.Printf("row status write rejected: %v", err)
		return
	}
	if status.Terminal() {
		if job, ok := o.store.Get(jobID); ok && idx < len(job.Rows) {
			row := job.Rows[idx]
			if o.journal != nil {
				o.journal.RecordRow(jobID, &row)
			}
			if o.archive != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				o.archive.ArchiveRow(ctx, jobID, &row)
				cancel()
			}
		}
	}
}

func (o *Orchestrator) failRemaining(jobID string, indexes []int, kind, reason string) {
	for _, idx := range indexes {
		job, ok := o.store.Get(jobID)
		if !ok || idx >= len(job.Rows) {
			continue
		}
		if job.Rows[idx].Status.Terminal() {
			continue
		}
		o.setRow(jobID, idx, models.RowFailed, kind, reason)
	}
}

func (o *Orchestrator) failRemainingAll(jobID, kind, reason string) {
	job, ok := o.store.Get(jobID)
	if !ok {
		return
	}
	var indexes []int
	for _, row := range job.Rows {
		indexes = append(indexes, row.Index)
	}
	o.failRemaining(jobID, indexes, kind, reason)
}

func (o *Orchestrator) mirrorJob(jobID string) {
	if o.journal == nil {
		return
	}
	if job, ok := o.store.Get(jobID); ok {
		o.journal.RecordJob(job)
	}
}
