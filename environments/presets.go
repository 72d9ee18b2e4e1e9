package environments

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/onurcolak/messaging-dashboard/internal/campaign"
	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

type presetsFile struct {
	Presets []domain.RateLimitPreset `yaml:"presets"`
}

// LoadRateLimitPresets returns the built-in presets overlaid with the ones
// declared in the YAML file at path. An empty path yields the built-ins.
//
//	presets:
//	  - name: nightly
//	    description: Slow overnight drip
//	    messages_per_second: 1
//	    messages_per_minute: 20
//	    burst_size: 1
func LoadRateLimitPresets(path string) ([]domain.RateLimitPreset, error) {
	if path == "" {
		return campaign.DefaultPresets(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate limit presets: %w", err)
	}

	var file presetsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rate limit presets %s: %w", path, err)
	}

	for _, p := range file.Presets {
		if _, err := campaign.EffectiveRate(p.RateLimitConfig); err != nil {
			return nil, fmt.Errorf("preset %q: %w", p.Name, err)
		}
	}

	return campaign.MergePresets(campaign.DefaultPresets(), file.Presets), nil
}
