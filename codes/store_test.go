package codes

import (
	"testing"
	"time"
)

func TestValid(t *testing.T) {
	good := []string{"483920", "AB12CD", " 7261 ", "abc123"}
	for _, c := range good {
		if !Valid(c) {
			t.Fatalf("expected %q valid", c)
		}
	}
	bad := []string{"", "123", "123456789", "12 34", "ab-cd1"}
	for _, c := range bad {
		if Valid(c) {
			t.Fatalf("expected %q invalid", c)
		}
	}
}

func TestSubmitUnblocksWaiter(t *testing.T) {
	s := NewStore()
	s.Prepare("job1", "acme")

	got := make(chan string, 1)
	go func() {
		code, ok := s.Wait("job1", "acme", 5*time.Second)
		if !ok {
			got <- ""
			return
		}
		got <- code
	}()

	// Give the waiter a moment to block.
	time.Sleep(20 * time.Millisecond)
	if st := s.Status("job1", "acme"); st != StatusWaiting {
		t.Fatalf("expected waiting, got %s", st)
	}
	if !s.Submit("job1", "acme", " 483920 ") {
		t.Fatal("submit rejected")
	}

	select {
	case code := <-got:
		if code != "483920" {
			t.Fatalf("expected 483920, got %q", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never released")
	}

	// Slot consumed.
	if st := s.Status("job1", "acme"); st != StatusUnknown {
		t.Fatalf("expected slot gone, got %s", st)
	}
}

func TestPerPlatformSlots(t *testing.T) {
	s := NewStore()
	s.Prepare("job1", "acme")
	s.Prepare("job1", "beta")

	acme := make(chan string, 1)
	beta := make(chan string, 1)
	go func() {
		code, _ := s.Wait("job1", "acme", 5*time.Second)
		acme <- code
	}()
	go func() {
		code, _ := s.Wait("job1", "beta", 5*time.Second)
		beta <- code
	}()

	time.Sleep(20 * time.Millisecond)
	if !s.Submit("job1", "acme", "111111") {
		t.Fatal("acme submit rejected")
	}
	if !s.Submit("job1", "beta", "222222") {
		t.Fatal("beta submit rejected")
	}

	select {
	case code := <-acme:
		if code != "111111" {
			t.Fatalf("acme waiter got %q", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("acme waiter never released")
	}
	select {
	case code := <-beta:
		if code != "222222" {
			t.Fatalf("beta waiter got %q", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("beta waiter never released")
	}
}

func TestSubmitWithoutPlatformFansOut(t *testing.T) {
	s := NewStore()
	s.Prepare("job1", "acme")
	s.Prepare("job1", "beta")
	s.Prepare("job2", "acme")

	if !s.Submit("job1", "", "483920") {
		t.Fatal("fan-out submit rejected")
	}
	if code, ok := s.FetchAndClear("job1", "acme"); !ok || code != "483920" {
		t.Fatalf("acme slot: %q ok=%v", code, ok)
	}
	if code, ok := s.FetchAndClear("job1", "beta"); !ok || code != "483920" {
		t.Fatalf("beta slot: %q ok=%v", code, ok)
	}
	// Another job's slot is untouched.
	if st := s.Status("job2", "acme"); st != StatusWaiting {
		t.Fatalf("job2 slot: %s", st)
	}
}

func TestWaitTimeout(t *testing.T) {
	s := NewStore()
	s.Prepare("job1", "acme")
	if code, ok := s.Wait("job1", "acme", 30*time.Millisecond); ok {
		t.Fatalf("expected timeout, got %q", code)
	}
}

func TestSubmitWithoutPrepare(t *testing.T) {
	s := NewStore()
	if s.Submit("nope", "acme", "483920") {
		t.Fatal("submit should fail with no prepared slot")
	}
	if s.Submit("nope", "", "483920") {
		t.Fatal("fan-out submit should fail with no prepared slots")
	}
}

func TestSubmitInvalidCode(t *testing.T) {
	s := NewStore()
	s.Prepare("job1", "acme")
	if s.Submit("job1", "acme", "bad code!") {
		t.Fatal("invalid code accepted")
	}
	if st := s.Status("job1", "acme"); st != StatusWaiting {
		t.Fatalf("slot should still be waiting, got %s", st)
	}
}

func TestClearReleasesAllJobWaiters(t *testing.T) {
	s := NewStore()
	s.Prepare("job1", "acme")
	s.Prepare("job1", "beta")

	done := make(chan bool, 2)
	for _, platform := range []string{"acme", "beta"} {
		go func(platform string) {
			_, ok := s.Wait("job1", platform, 5*time.Second)
			done <- ok
		}(platform)
	}

	time.Sleep(20 * time.Millisecond)
	s.Clear("job1")

	for i := 0; i < 2; i++ {
		select {
		case ok := <-done:
			if ok {
				t.Fatal("cleared waiter should not receive a code")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter not released by Clear")
		}
	}
}

func TestSecondSubmitKeepsFirstCode(t *testing.T) {
	s := NewStore()
	s.Prepare("job1", "acme")
	s.Submit("job1", "acme", "111111")
	s.Submit("job1", "acme", "222222")
	code, ok := s.FetchAndClear("job1", "acme")
	if !ok || code != "111111" {
		t.Fatalf("expected first code kept, got %q ok=%v", code, ok)
	}
}
