package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed default_site.yaml
var defaultSiteYAML []byte

// Site holds the shop content and UI tuning shared by every behavior.
type Site struct {
	Name              string                   `yaml:"name"`
	Greeting          string                   `yaml:"greeting"`
	ThinkingText      string                   `yaml:"thinking_text"`
	SystemInstruction string                   `yaml:"system_instruction"`
	QuickQuestions    []string                 `yaml:"quick_questions"`
	InventorySeed     []domain.InventoryRecord `yaml:"inventory_seed"`
	Sentiment         SentimentKeywords        `yaml:"sentiment"`
	Takeaway          TakeawayConfig           `yaml:"takeaway"`
	Nav               NavConfig                `yaml:"nav"`
	Reveal            RevealConfig             `yaml:"reveal"`
}

// SentimentKeywords are matched case-insensitively against feedback notes.
type SentimentKeywords struct {
	Positive []string `yaml:"positive_keywords"`
	Neutral  []string `yaml:"neutral_keywords"`
}

// TakeawayConfig configures the takeaway order counter.
type TakeawayConfig struct {
	UnitPrice int      `yaml:"unit_price"`
	Items     []string `yaml:"items"`
}

// NavConfig configures the mobile navigation toggle.
type NavConfig struct {
	DesktopBreakpoint int `yaml:"desktop_breakpoint"`
}

// RevealConfig configures scroll-fade reveal.
type RevealConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// LoadSite reads site content from path, or the embedded default when path is empty.
func LoadSite(path string) (*Site, error) {
	data := defaultSiteYAML
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read site config: %w", err)
		}
		data = raw
	}
	return ParseSite(data)
}

// ParseSite decodes YAML site content and validates it.
func ParseSite(data []byte) (*Site, error) {
	var site Site
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parse site config: %w", err)
	}
	site.SystemInstruction = strings.TrimSpace(site.SystemInstruction)
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("invalid site config: %w", err)
	}
	return &site, nil
}

// Validate checks the site content for values the behaviors depend on.
func (s *Site) Validate() error {
	if s.Greeting == "" {
		return fmt.Errorf("greeting cannot be empty")
	}
	if s.ThinkingText == "" {
		return fmt.Errorf("thinking_text cannot be empty")
	}
	if s.Takeaway.UnitPrice < 0 {
		return fmt.Errorf("takeaway.unit_price must be >= 0")
	}
	if s.Nav.DesktopBreakpoint <= 0 {
		return fmt.Errorf("nav.desktop_breakpoint must be > 0")
	}
	if s.Reveal.Threshold < 0 || s.Reveal.Threshold > 1 {
		return fmt.Errorf("reveal.threshold must be within [0, 1]")
	}
	seen := make(map[string]struct{}, len(s.InventorySeed))
	for _, rec := range s.InventorySeed {
		key := strings.ToLower(rec.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("inventory_seed has duplicate item %q", rec.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}
