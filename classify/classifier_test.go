package classify

import "testing"

func TestFailureBeatsSuccess(t *testing.T) {
	// The lying-success page: green banner plus inline validation errors.
	out := Classify(Snapshot{
		URL:        "https://trade.example/offers/new",
		Banners:    []string{"Success! Your offer was received."},
		ErrorNodes: []string{"Price is required"},
	})
	if out.Verdict != Rejected {
		t.Fatalf("expected Rejected, got %s (%v)", out.Verdict, out.Reasons)
	}
}

func TestReviewBeatsSuccess(t *testing.T) {
	out := Classify(Snapshot{
		URL:      "https://trade.example/offers/confirmation",
		Banners:  []string{"Thank you! Your listing was submitted for review."},
		PageText: "Your listing will appear after moderation.",
	})
	if out.Verdict != PendingReview {
		t.Fatalf("expected PendingReview, got %s (%v)", out.Verdict, out.Reasons)
	}
}

func TestSuccessKeyword(t *testing.T) {
	out := Classify(Snapshot{
		URL:     "https://trade.example/offers/new",
		Banners: []string{"Listing posted"},
	})
	if out.Verdict != Verified {
		t.Fatalf("expected Verified, got %s (%v)", out.Verdict, out.Reasons)
	}
}

func TestSuccessURLHintAlone(t *testing.T) {
	out := Classify(Snapshot{
		URL:      "https://trade.example/my-listings",
		PageText: "Your offers",
	})
	if out.Verdict != Verified {
		t.Fatalf("expected Verified from URL hint, got %s (%v)", out.Verdict, out.Reasons)
	}
}

func TestAlertTextIsChecked(t *testing.T) {
	out := Classify(Snapshot{
		URL:       "https://trade.example/offers/new",
		AlertText: "Submission failed: model not recognized",
	})
	if out.Verdict != Rejected {
		t.Fatalf("expected Rejected from alert, got %s (%v)", out.Verdict, out.Reasons)
	}
}

func TestInlineErrorClass(t *testing.T) {
	out := Classify(Snapshot{
		URL:        "https://trade.example/offers/new",
		ErrorNodes: []string{"has-error"},
		PageText:   "Post your offer",
	})
	if out.Verdict != Rejected {
		t.Fatalf("expected Rejected from has-error node, got %s", out.Verdict)
	}
}

func TestUnknownIsDefault(t *testing.T) {
	out := Classify(Snapshot{
		URL:      "https://trade.example/offers/new",
		PageText: "Post your offer",
	})
	if out.Verdict != Unknown {
		t.Fatalf("expected Unknown, got %s (%v)", out.Verdict, out.Reasons)
	}
	if len(out.Reasons) != 1 || out.Reasons[0] != "no clear success indicators" {
		t.Fatalf("unexpected reasons %v", out.Reasons)
	}
}
