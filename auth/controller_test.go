package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"phone_lister/codes"
	"phone_lister/models"
)

// fakeRetriever scripts the mailbox and records every baseline it is asked
// to search from.
type fakeRetriever struct {
	mu     sync.Mutex
	code   string
	after  int // attempts that must fail before code is returned
	calls  int
	sinces []time.Time
}

func (f *fakeRetriever) Fetch(ctx context.Context, policy models.TwoFactorPolicy, recipient string, since time.Time) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sinces = append(f.sinces, since)
	if f.code != "" && f.calls > f.after {
		return f.code, true
	}
	return "", false
}

func testController(retriever *fakeRetriever) (*Controller, *[]string) {
	var labels []string
	c := &Controller{
		Codes:       codes.NewStore(),
		Recipient:   "ops@example.com",
		TFAWait:     20 * time.Millisecond,
		TFAAttempts: 3,
		RetryDelay:  time.Millisecond,
	}
	if retriever != nil {
		c.Mail = retriever
	}
	return c, &labels
}

func emitInto(labels *[]string) Emit {
	return func(label, note string) { *labels = append(*labels, label) }
}

func descWithMode(mode string) *models.PlatformDescriptor {
	return &models.PlatformDescriptor{
		ID:        "acme",
		TwoFactor: models.TwoFactorPolicy{Mode: mode},
	}
}

func TestObtainCodeEmailSuccess(t *testing.T) {
	r := &fakeRetriever{code: "483920"}
	c, labels := testController(r)

	code, err := c.obtainCode(context.Background(), descWithMode("email"), "job1", time.Now(), emitInto(labels))
	if err != nil {
		t.Fatalf("obtainCode: %v", err)
	}
	if code != "483920" {
		t.Fatalf("code = %q", code)
	}
	if len(*labels) == 0 || (*labels)[0] != "2fa_wait_email" {
		t.Fatalf("expected 2fa_wait_email first, got %v", *labels)
	}
}

func TestObtainCodeEmailModeFails(t *testing.T) {
	r := &fakeRetriever{}
	c, labels := testController(r)

	baseline := time.Now().Add(-time.Minute)
	_, err := c.obtainCode(context.Background(), descWithMode("email"), "job1", baseline, emitInto(labels))
	if !errors.Is(err, models.ErrTwoFactorFailed) {
		t.Fatalf("expected ErrTwoFactorFailed, got %v", err)
	}
	if r.calls != c.TFAAttempts {
		t.Fatalf("expected %d mailbox attempts, got %d", c.TFAAttempts, r.calls)
	}
	for i, s := range r.sinces {
		if !s.Equal(baseline) {
			t.Fatalf("attempt %d searched from %v, want the login baseline %v", i, s, baseline)
		}
	}
}

func TestObtainCodeEitherFallsBackToManual(t *testing.T) {
	r := &fakeRetriever{} // mailbox never produces a code
	c, labels := testController(r)
	c.TFAAttempts = 1
	c.TFAWait = 300 * time.Millisecond

	// The operator side: submit once the slot is waiting.
	go func() {
		for i := 0; i < 400; i++ {
			if c.Codes.Submit("job1", "acme", "771824") {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	code, err := c.obtainCode(context.Background(), descWithMode("either"), "job1", time.Now(), emitInto(labels))
	if err != nil {
		t.Fatalf("obtainCode: %v", err)
	}
	if code != "771824" {
		t.Fatalf("code = %q", code)
	}

	sawManual := false
	for _, l := range *labels {
		if l == "2fa_wait_manual" {
			sawManual = true
		}
	}
	if !sawManual {
		t.Fatalf("expected 2fa_wait_manual in %v", *labels)
	}
}

func TestObtainCodeManualTimeout(t *testing.T) {
	c, labels := testController(nil)
	c.TFAWait = 10 * time.Millisecond

	_, err := c.obtainCode(context.Background(), descWithMode("manual"), "job1", time.Now(), emitInto(labels))
	if !errors.Is(err, models.ErrTwoFactorFailed) {
		t.Fatalf("expected ErrTwoFactorFailed, got %v", err)
	}
}

func TestObtainCodeManualDelivery(t *testing.T) {
	c, labels := testController(nil)
	c.TFAWait = 300 * time.Millisecond

	go func() {
		for i := 0; i < 100; i++ {
			// Fan-out path: the operator does not know which platform asked.
			if c.Codes.Submit("job1", "", "559001") {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	code, err := c.obtainCode(context.Background(), descWithMode("manual"), "job1", time.Now(), emitInto(labels))
	if err != nil {
		t.Fatalf("obtainCode: %v", err)
	}
	if code != "559001" {
		t.Fatalf("code = %q", code)
	}
}

func TestObtainCodeNoMode(t *testing.T) {
	c, labels := testController(nil)
	if _, err := c.obtainCode(context.Background(), descWithMode("sms"), "job1", time.Now(), emitInto(labels)); !errors.Is(err, models.ErrTwoFactorFailed) {
		t.Fatalf("expected ErrTwoFactorFailed for unsupported mode, got %v", err)
	}
}

func TestFetchEmailCodeRetriesFromSameBaseline(t *testing.T) {
	r := &fakeRetriever{code: "662913", after: 2}
	c, _ := testController(r)

	baseline := time.Now().Add(-time.Minute)
	code, ok := c.fetchEmailCode(context.Background(), descWithMode("email"), baseline)
	if !ok || code != "662913" {
		t.Fatalf("fetchEmailCode = %q, %v", code, ok)
	}
	if r.calls != 3 {
		t.Fatalf("expected the code on attempt 3, got %d calls", r.calls)
	}
	for i, s := range r.sinces {
		if !s.Equal(baseline) {
			t.Fatalf("attempt %d searched from %v, want %v", i, s, baseline)
		}
	}
}

func TestFetchEmailCodeCancelled(t *testing.T) {
	r := &fakeRetriever{}
	c, _ := testController(r)
	c.TFAWait = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := c.fetchEmailCode(ctx, descWithMode("email"), time.Now()); ok {
		t.Fatal("cancelled context must not produce a code")
	}
}
