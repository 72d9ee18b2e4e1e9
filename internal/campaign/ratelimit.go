package campaign

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

var ErrNoThroughput = fmt.Errorf("%w: rate limit declares no positive throughput", domain.ErrInvalidInput)

// DefaultPresetName is used when a campaign does not pick a preset.
const DefaultPresetName = "standard"

var defaultPresets = []domain.RateLimitPreset{
	{
		Name:        "conservative",
		Description: "Warm-up pace for new or low-reputation numbers",
		RateLimitConfig: domain.RateLimitConfig{
			MessagesPerSecond: 1,
			MessagesPerMinute: 30,
			MessagesPerHour:   1000,
			MessagesPerDay:    10000,
			BurstSize:         1,
		},
	},
	{
		Name:        DefaultPresetName,
		Description: "Balanced pace for established numbers",
		RateLimitConfig: domain.RateLimitConfig{
			MessagesPerSecond: 5,
			MessagesPerMinute: 200,
			MessagesPerHour:   6000,
			MessagesPerDay:    50000,
			BurstSize:         5,
		},
	},
	{
		Name:        "aggressive",
		Description: "High throughput for verified business accounts",
		RateLimitConfig: domain.RateLimitConfig{
			MessagesPerSecond: 20,
			MessagesPerMinute: 1000,
			MessagesPerHour:   30000,
			MessagesPerDay:    300000,
			BurstSize:         20,
		},
	},
}

// DefaultPresets returns a copy of the built-in presets.
func DefaultPresets() []domain.RateLimitPreset {
	out := make([]domain.RateLimitPreset, len(defaultPresets))
	copy(out, defaultPresets)
	return out
}

// MergePresets overlays extra on base by case-insensitive name. Presets only
// present in extra are appended; the result is sorted by name.
func MergePresets(base, extra []domain.RateLimitPreset) []domain.RateLimitPreset {
	byName := make(map[string]domain.RateLimitPreset, len(base)+len(extra))
	for _, p := range base {
		byName[strings.ToLower(p.Name)] = p
	}
	for _, p := range extra {
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		if p.Name == "" {
			continue
		}
		byName[p.Name] = p
	}

	out := make([]domain.RateLimitPreset, 0, len(byName))
	for _, p := range byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// FindPreset looks a preset up by case-insensitive name.
func FindPreset(presets []domain.RateLimitPreset, name string) (domain.RateLimitPreset, bool) {
	for _, p := range presets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return domain.RateLimitPreset{}, false
}

// EffectiveRate returns the sustainable messages per second: the minimum of
// the per-second, per-minute and per-hour ceilings expressed per second.
// Windows with a non-positive value are treated as undeclared.
func EffectiveRate(cfg domain.RateLimitConfig) (float64, error) {
	rate := math.Inf(1)
	if cfg.MessagesPerSecond > 0 {
		rate = math.Min(rate, float64(cfg.MessagesPerSecond))
	}
	if cfg.MessagesPerMinute > 0 {
		rate = math.Min(rate, float64(cfg.MessagesPerMinute)/60)
	}
	if cfg.MessagesPerHour > 0 {
		rate = math.Min(rate, float64(cfg.MessagesPerHour)/3600)
	}
	if math.IsInf(rate, 1) {
		return 0, ErrNoThroughput
	}
	return rate, nil
}

// CalculateETA projects how long sending to totalRecipients takes at the
// effective rate of cfg, starting at now.
func CalculateETA(totalRecipients int, cfg domain.RateLimitConfig, now time.Time) (domain.ETA, error) {
	if totalRecipients < 0 {
		return domain.ETA{}, fmt.Errorf("%w: negative recipient count %d", domain.ErrInvalidInput, totalRecipients)
	}

	rate, err := EffectiveRate(cfg)
	if err != nil {
		return domain.ETA{}, err
	}

	seconds := float64(totalRecipients) / rate

	return domain.ETA{
		Recipients:      totalRecipients,
		EffectiveRate:   rate,
		DurationSeconds: seconds,
		Formatted:       FormatDuration(seconds),
		CompletionTime:  now.Add(secondsToDuration(seconds)),
	}, nil
}

// secondsToDuration saturates at the largest time.Duration (about 292 years).
func secondsToDuration(seconds float64) time.Duration {
	ns := seconds * float64(time.Second)
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

// FormatDuration renders seconds in the largest unit below the next one up,
// rounded to the nearest whole unit: 45s, 2m, 2h, 2d. 23.9 hours renders as
// "24h", not "1d".
func FormatDuration(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.0fs", math.Round(seconds))
	case seconds < 3600:
		return fmt.Sprintf("%.0fm", math.Round(seconds/60))
	case seconds < 86400:
		return fmt.Sprintf("%.0fh", math.Round(seconds/3600))
	default:
		return fmt.Sprintf("%.0fd", math.Round(seconds/86400))
	}
}
