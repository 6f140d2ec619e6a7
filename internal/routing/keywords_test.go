package routing

import "testing"

func TestScoreAgenticKeywords_ClampsToOne(t *testing.T) {
	score := scoreAgenticKeywords("search for the latest recent current calculate run execute fetch today's date")
	if score != 1 {
		t.Fatalf("expected clamp to 1, got %f", score)
	}
}

func TestScoreAgenticKeywords_NoMatch(t *testing.T) {
	if got := scoreAgenticKeywords("hello, how are you?"); got != 0 {
		t.Fatalf("expected 0, got %f", got)
	}
}

func TestScoreAgenticKeywords_SingleMatch(t *testing.T) {
	if got := scoreAgenticKeywords("please search for cats"); got != 0.4 {
		t.Fatalf("expected 0.4, got %f", got)
	}
}
