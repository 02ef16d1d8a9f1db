// Package poster is the per-platform posting state machine: one instance per
// (job, listing), sequencing Auth → Navigate → Fill → Submit → Classify →
// Verify against a platform descriptor. Platform differences are data; this
// is the only code path.
package poster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"phone_lister/auth"
	"phone_lister/browser"
	"phone_lister/classify"
	"phone_lister/config"
	"phone_lister/logging"
	"phone_lister/mapper"
	"phone_lister/models"
	"phone_lister/verify"
)

// Verifier confirms a submitted listing against the platform's inventory
// pages. Injected so outcome handling is testable without a browser.
type Verifier func(ctx context.Context, s *browser.Session, desc *models.PlatformDescriptor, listing *models.ListingRecord) (bool, error)

type Machine struct {
	session *browser.Session
	desc    *models.PlatformDescriptor
	auth    *auth.Controller
	creds   config.Credentials
	jobID   string
	events  chan<- models.StepEvent
	log     logging.JobLogger
	verify  Verifier

	// alertText is written from playwright's dialog event goroutine.
	alertMu    sync.Mutex
	alertText  string
	dialogOnce sync.Once

	loggedIn bool
}

func New(session *browser.Session, desc *models.PlatformDescriptor, authCtl *auth.Controller, creds config.Credentials, jobID string, events chan<- models.StepEvent) *Machine {
	return &Machine{
		session: session,
		desc:    desc,
		auth:    authCtl,
		creds:   creds,
		jobID:   jobID,
		events:  events,
		log:     logging.JobLogger{JobID: jobID, Platform: desc.ID},
		verify:  verify.Verify,
	}
}

// Result is the terminal outcome of one row attempt.
type Result struct {
	Status    models.RowStatus
	Kind      string
	Reason    string
	Retryable bool
}

// Run executes the full posting sequence for one listing. Any error below
// the classifier surfaces as a Failed result with its error kind; the
// orchestrator decides on retries.
func (m *Machine) Run(ctx context.Context, listing *models.ListingRecord) Result {
	// Planning is pure and runs before any browser action, so an unmappable
	// required field costs nothing.
	ops, err := mapper.Plan(listing, m.desc)
	if err != nil {
		return m.fail(err)
	}

	if err := m.authenticate(ctx); err != nil {
		return m.fail(err)
	}

	if err := m.navigate(ctx, listing, ops); err != nil {
		return m.fail(err)
	}

	if err := m.fill(ctx, ops); err != nil {
		return m.fail(err)
	}
	m.emitShot("form_filled", "")

	if err := m.submit(ctx); err != nil {
		return m.fail(err)
	}

	outcome := m.classifySnapshot(ctx)
	m.emit("outcome_classified", outcome.Verdict.String()+": "+strings.Join(outcome.Reasons, "; "))

	return m.finalize(ctx, listing, outcome)
}

func (m *Machine) authenticate(ctx context.Context) error {
	if m.loggedIn {
		return nil
	}
	emit := func(label, note string) { m.emit(label, note) }
	if err := m.auth.Login(ctx, m.session, m.desc, m.creds, m.jobID, emit); err != nil {
		m.emitShot("login_failed", err.Error())
		return err
	}
	m.loggedIn = true
	return nil
}

// finalize applies the anti-hallucination rule: a Verified or PendingReview
// verdict still has to survive the independent inventory scan, and Unknown
// is failure, never success.
func (m *Machine) finalize(ctx context.Context, listing *models.ListingRecord, outcome classify.Outcome) Result {
	switch outcome.Verdict {
	case classify.Rejected:
		reason := strings.Join(outcome.Reasons, "; ")
		m.emitShot("listing_rejected", reason)
		return Result{Status: models.RowRejected, Kind: "SubmissionRejected", Reason: reason}

	case classify.Unknown:
		m.emitShot("no_success_indicators", "")
		return Result{Status: models.RowFailed, Kind: "NotVerified", Reason: "no clear success indicators"}

	case classify.Verified:
		found, err := m.verify(ctx, m.session, m.desc, listing)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return m.fail(fmt.Errorf("%w: during verification", models.ErrCancelled))
			}
			m.log.Printf("inventory scan error: %v", err)
		}
		if found {
			m.emitShot("listing_verified", "")
			return Result{Status: models.RowVerified}
		}
		m.emitShot("verification_missed", "success banner shown but listing absent from inventory")
		return Result{Status: models.RowFailed, Kind: "NotVerified", Reason: "submission appeared successful but inventory verification failed"}

	case classify.PendingReview:
		reason := strings.Join(outcome.Reasons, "; ")
		found, err := m.verify(ctx, m.session, m.desc, listing)
		if err != nil && errors.Is(err, context.Canceled) {
			return m.fail(fmt.Errorf("%w: during verification", models.ErrCancelled))
		}
		if found {
			m.emitShot("listing_verified", "verified while "+reason)
			return Result{Status: models.RowVerified, Reason: "verified; platform reported " + reason}
		}
		m.emit("pending_review", reason)
		return Result{Status: models.RowPendingReview, Reason: reason}
	}

	return Result{Status: models.RowFailed, Kind: "NotVerified", Reason: "unclassifiable outcome"}
}

func (m *Machine) fail(err error) Result {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", models.ErrCancelled, err)
	}
	kind := models.Kind(err)
	status := models.RowFailed
	if errors.Is(err, models.ErrSubmissionRejected) {
		status = models.RowRejected
	}
	m.emitShot("row_failed", err.Error())
	m.log.Printf("row failed (%s): %v", kind, err)
	return Result{Status: status, Kind: kind, Reason: err.Error(), Retryable: models.Retryable(err)}
}

// emit publishes a note-only step event.
func (m *Machine) emit(label, note string) {
	m.publish(models.StepEvent{Label: label, Timestamp: time.Now().UTC(), Note: note})
}

// emitShot attaches a screenshot; capture failure degrades to note-only.
func (m *Machine) emitShot(label, note string) {
	var shot string
	if m.session != nil {
		shot = browser.Screenshot(m.session.Page(), label)
	}
	m.publish(models.StepEvent{Label: label, Timestamp: time.Now().UTC(), Screenshot: shot, Note: note})
}

// setAlert and takeAlert guard the dialog text crossing goroutines.
func (m *Machine) setAlert(text string) {
	m.alertMu.Lock()
	m.alertText = text
	m.alertMu.Unlock()
}

func (m *Machine) takeAlert() string {
	m.alertMu.Lock()
	defer m.alertMu.Unlock()
	return m.alertText
}

func (m *Machine) publish(ev models.StepEvent) {
	select {
	case m.events <- ev:
	default:
		// Never block posting on a slow reader.
		m.log.Printf("step event channel full, dropped %s", ev.Label)
	}
}
