package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidewater/toolroute/internal/classify"
)

// wordsPerMinute is the reading speed assumed by calculate_reading_time.
const wordsPerMinute = 200

// RegisterBuiltins installs the native text-statistics tools. They are
// simple-tier: deterministic, side-effect-free, and fast. A tool the
// registry already knows keeps its existing descriptor, so operator
// config can re-tier a builtin.
func RegisterBuiltins(reg *classify.Registry, l *Local) error {
	builtins := map[string]ToolFunc{
		"word_count":             wordCount,
		"calculate_reading_time": readingTime,
		"keyword_density":        keywordDensity,
	}
	for name, fn := range builtins {
		l.Register(name, fn)
		if _, ok := reg.Lookup(name); ok {
			continue
		}
		if err := reg.Register(classify.Descriptor{Name: name, Tier: classify.TierSimple}); err != nil {
			return err
		}
	}
	return nil
}

type textParams struct {
	Text string `json:"text"`
}

func decodeText(params json.RawMessage) (string, error) {
	var p textParams
	if err := json.Unmarshal(params, &p); err != nil {
		return "", fmt.Errorf("decode params: %w", err)
	}
	return p.Text, nil
}

func wordCount(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	text, err := decodeText(params)
	if err != nil {
		return nil, err
	}
	words := strings.Fields(text)
	return json.Marshal(map[string]any{
		"words":      len(words),
		"characters": len([]rune(text)),
	})
}

func readingTime(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	text, err := decodeText(params)
	if err != nil {
		return nil, err
	}
	words := len(strings.Fields(text))
	minutes := words / wordsPerMinute
	if words%wordsPerMinute != 0 || words == 0 {
		minutes++
	}
	return json.Marshal(map[string]any{
		"words":   words,
		"minutes": minutes,
	})
}

type densityParams struct {
	Text string `json:"text"`
	Top  int    `json:"top"`
}

func keywordDensity(_ context.Context, params json.RawMessage) (json.RawMessage, error) {
	var p densityParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	if p.Top <= 0 {
		p.Top = 10
	}

	counts := make(map[string]int)
	total := 0
	for _, w := range strings.Fields(strings.ToLower(p.Text)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if w == "" {
			continue
		}
		counts[w]++
		total++
	}

	type kw struct {
		Word    string  `json:"word"`
		Count   int     `json:"count"`
		Density float64 `json:"density"`
	}
	out := make([]kw, 0, len(counts))
	for w, n := range counts {
		d := 0.0
		if total > 0 {
			d = float64(n) / float64(total)
		}
		out = append(out, kw{Word: w, Count: n, Density: d})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	if len(out) > p.Top {
		out = out[:p.Top]
	}

	return json.Marshal(map[string]any{
		"total":    total,
		"keywords": out,
	})
}
