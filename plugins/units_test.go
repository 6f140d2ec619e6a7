package plugins

import (
	"context"
	"testing"
)

func TestUnitsTool_LengthConversion(t *testing.T) {
	u := UnitsTool{}
	got, err := u.Run(context.Background(), "convert 1 km to m")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "1 km = **1000 m**"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestUnitsTool_TemperatureConversion(t *testing.T) {
	u := UnitsTool{}
	got, err := u.Run(context.Background(), "72f to c")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "72°F = **22.22°C**"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestUnitsTool_IncompatibleUnits(t *testing.T) {
	u := UnitsTool{}
	got, err := u.Run(context.Background(), "convert 5 miles to pounds")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != "Can't convert between incompatible units: 'miles' and 'pounds'" {
		t.Fatalf("got %q", got)
	}
}

func TestUnitsTool_UsageFallback(t *testing.T) {
	u := UnitsTool{}
	got, err := u.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got == "" {
		t.Fatal("expected usage message")
	}
}
