package tools

import (
	"context"
	"strings"
	"testing"
)

func TestCalculator_BasicArithmetic(t *testing.T) {
	c := Calculator{}
	cases := map[string]string{
		"2 + 2":        "2 + 2 = 4",
		"10 / 4":       "10 / 4 = 2.5",
		"2 ^ 10":       "2 ** 10 = 1024",
		"7 % 3":        "7 % 3 = 1",
		"(1 + 2) * 3":  "(1 + 2) * 3 = 9",
		"-5 + 3":       "-5 + 3 = -2",
	}
	for input, want := range cases {
		got, err := c.Run(context.Background(), input)
		if err != nil {
			t.Fatalf("Run(%q): %v", input, err)
		}
		if got != want {
			t.Errorf("Run(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCalculator_DivisionByZero(t *testing.T) {
	c := Calculator{}
	got, err := c.Run(context.Background(), "1 / 0")
	if err != nil {
		t.Fatalf("Run returned error instead of message: %v", err)
	}
	if !strings.HasPrefix(got, "Could not evaluate") {
		t.Fatalf("got %q, want a could-not-evaluate message", got)
	}
}

func TestCalculator_StripsSurroundingWords(t *testing.T) {
	c := Calculator{}
	got, err := c.Run(context.Background(), "what is 12 * 4?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "12 * 4 = 48" {
		t.Fatalf("got %q", got)
	}
}

func TestCalculator_NoExpressionFound(t *testing.T) {
	c := Calculator{}
	got, err := c.Run(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(got, "no arithmetic expression found") {
		t.Fatalf("got %q", got)
	}
}
