// Package plugins holds BeigeBox's example tool plugins. Go has no
// runtime equivalent of importing an arbitrary .py file dropped into a
// directory, so instead of scanning a filesystem at startup each plugin is
// an ordinary Go type in this package, listed once in All (plugins.go) and
// registered into the tool registry by cmd/beigebox at startup. This keeps
// the donor's per-plugin enable/disable-by-config behavior and its
// "drop in and it's registered" spirit, without literal dynamic code
// loading.
package plugins

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DiceTool rolls dice using standard RPG notation: "d20", "3d6", "4d6 drop
// lowest", or a coin flip.
type DiceTool struct {
	// rand is overridable for deterministic tests.
	rand *rand.Rand
}

// ToolName overrides the registry name (the donor's PLUGIN_NAME = "dice").
func (DiceTool) ToolName() string { return "dice" }

var (
	dropLowestPattern = regexp.MustCompile(`(\d+)d(\d+)\s+drop\s+low`)
	diceNotationPattern = regexp.MustCompile(`(\d+)?d(\d+)`)
)

// Run implements tools.Tool.
func (d *DiceTool) Run(_ context.Context, query string) (string, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	r := d.source()

	if strings.Contains(q, "coin") || strings.Contains(q, "flip") ||
		strings.Contains(q, "heads") || strings.Contains(q, "tails") {
		if r.Intn(2) == 0 {
			return "\U0001FA99 Heads", nil
		}
		return "\U0001FA99 Tails", nil
	}

	if m := dropLowestPattern.FindStringSubmatch(q); m != nil {
		count := clampInt(atoiOr(m[1], 1), 1, 20)
		sides := clampInt(atoiOr(m[2], 6), 1, 1000)
		rolls := make([]int, count)
		for i := range rolls {
			rolls[i] = r.Intn(sides) + 1
		}
		sorted := append([]int(nil), rolls...)
		sortInts(sorted)
		kept := sorted[1:]
		sum := 0
		for _, v := range kept {
			sum += v
		}
		return fmt.Sprintf("\U0001F3B2 %dd%d drop lowest: rolled %v → kept %v = **%d**",
			count, sides, sorted, kept, sum), nil
	}

	if m := diceNotationPattern.FindStringSubmatch(q); m != nil {
		count := clampInt(atoiOr(m[1], 1), 1, 20)
		sides := clampInt(atoiOr(m[2], 6), 1, 10000)
		rolls := make([]int, count)
		total := 0
		for i := range rolls {
			rolls[i] = r.Intn(sides) + 1
			total += rolls[i]
		}
		if count == 1 {
			return fmt.Sprintf("\U0001F3B2 d%d: **%d**", sides, rolls[0]), nil
		}
		return fmt.Sprintf("\U0001F3B2 %dd%d: %v = **%d**", count, sides, rolls, total), nil
	}

	return fmt.Sprintf("\U0001F3B2 d20: **%d**", r.Intn(20)+1), nil
}

func (d *DiceTool) source() *rand.Rand {
	if d.rand != nil {
		return d.rand
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
