package mail

import "testing"

func TestExtractCodePlatformPatternWins(t *testing.T) {
	body := "Ref 20260901. Your login code is: X7K2P9 and expires in 10 minutes."
	code := ExtractCode(body, `code is[: ]+([A-Z0-9]{6})`)
	if code != "X7K2P9" {
		t.Fatalf("expected X7K2P9, got %q", code)
	}
}

func TestExtractCodeGenericFallback(t *testing.T) {
	body := "Your verification code is 483920. Do not share it."
	if code := ExtractCode(body, ""); code != "483920" {
		t.Fatalf("expected 483920, got %q", code)
	}
}

func TestExtractCodeBadPlatformPatternFallsBack(t *testing.T) {
	body := "Use 58213 to continue."
	if code := ExtractCode(body, `([unclosed`); code != "58213" {
		t.Fatalf("expected 58213 despite broken pattern, got %q", code)
	}
}

func TestExtractCodeSkipsBlacklist(t *testing.T) {
	body := "Enter 1234 or your personal code 7781 at the prompt."
	if code := ExtractCode(body, ""); code != "7781" {
		t.Fatalf("expected 7781, got %q", code)
	}
}

func TestExtractCodeNoMatch(t *testing.T) {
	if code := ExtractCode("No numbers here, just words.", ""); code != "" {
		t.Fatalf("expected empty, got %q", code)
	}
}

func TestAcceptCode(t *testing.T) {
	if AcceptCode("TEST") {
		t.Fatal("blacklisted code accepted")
	}
	if AcceptCode("12") {
		t.Fatal("too-short code accepted")
	}
	if !AcceptCode(" x7k2p9 ") {
		t.Fatal("valid code rejected")
	}
}
