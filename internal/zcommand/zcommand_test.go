package zcommand

import "testing"

func TestParse_NoPrefix(t *testing.T) {
	z := Parse("hello there")
	if z.Active {
		t.Fatalf("expected inactive, got %+v", z)
	}
	if z.Message != "hello there" {
		t.Errorf("message = %q", z.Message)
	}
}

func TestParse_RouteAlias(t *testing.T) {
	z := Parse("z: code write fizzbuzz")
	if !z.Active {
		t.Fatal("expected active directive")
	}
	if z.Route != "code" {
		t.Errorf("route = %q, want code", z.Route)
	}
	if z.Message != "write fizzbuzz" {
		t.Errorf("message = %q", z.Message)
	}
}

func TestParse_ChainedDirectives(t *testing.T) {
	z := Parse("z: complex,search what happened in the news today?")
	if z.Route != "large" {
		t.Errorf("route = %q, want large", z.Route)
	}
	if len(z.Tools) != 1 || z.Tools[0] != "web_search" {
		t.Errorf("tools = %v", z.Tools)
	}
}

func TestParse_LiteralModel(t *testing.T) {
	z := Parse("z: llama3:8b Explain quantum entanglement")
	if z.Model != "llama3:8b" {
		t.Errorf("model = %q", z.Model)
	}
	if z.Message != "Explain quantum entanglement" {
		t.Errorf("message = %q", z.Message)
	}
}

func TestParse_CalcConsumesRemainder(t *testing.T) {
	z := Parse("z: calc 2**16 + 3**10")
	if len(z.Tools) != 1 || z.Tools[0] != "calculator" {
		t.Fatalf("tools = %v", z.Tools)
	}
	if z.ToolInput != "2**16 + 3**10" {
		t.Errorf("tool input = %q", z.ToolInput)
	}
}

func TestParse_Help(t *testing.T) {
	z := Parse("z: help")
	if !z.IsHelp {
		t.Fatal("expected help")
	}
	if z.Message != HelpText {
		t.Error("expected help text as message")
	}
}

func TestParse_CaseInsensitivePrefix(t *testing.T) {
	z := Parse("Z: SIMPLE hello")
	if z.Route != "fast" {
		t.Errorf("route = %q, want fast", z.Route)
	}
}

func TestParse_UnknownTokenBecomesMessage(t *testing.T) {
	z := Parse("z: yo what's up")
	if z.Route != "" || len(z.Tools) != 0 || z.Model != "" {
		t.Fatalf("expected no directives matched, got %+v", z)
	}
	if z.Message != "yo what's up" {
		t.Errorf("message = %q", z.Message)
	}
}
