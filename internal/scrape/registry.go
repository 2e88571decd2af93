package scrape

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/portals.yaml
var portalsYAML embed.FS

// Registry holds the configuration for all supported portals.
type Registry struct {
	Portals []PortalConfig `yaml:"portals"`
}

// PortalConfig defines one portal adapter. The same pager/extractor code
// runs every portal; only this data differs between them.
type PortalConfig struct {
	Key        string `yaml:"key"`
	Label      string `yaml:"label"`
	ListURL    string `yaml:"list_url"`
	Driver     string `yaml:"driver"` // "browser" or "static"
	RegionHint string `yaml:"region_hint,omitempty"`

	// Multi-tenant families: hostname suffixes that identify a tenant of
	// this platform, plus the canonical listing path appended per tenant.
	FamilyDomains []string `yaml:"family_domains,omitempty"`
	FamilyPath    string   `yaml:"family_path,omitempty"`

	Selectors  ListSelectorConfig `yaml:"selectors"`
	Labels     DetailLabelConfig  `yaml:"labels,omitempty"`
	Pagination PaginationConfig   `yaml:"pagination,omitempty"`

	// Selectors polled for before extraction; first match wins.
	ListWait   []string `yaml:"list_wait,omitempty"`
	DetailWait []string `yaml:"detail_wait,omitempty"`

	// Text fragments that identify an authentication wall on detail pages.
	LoginMarkers []string `yaml:"login_markers,omitempty"`
}

// ListSelectorConfig addresses the cells of one list row.
type ListSelectorConfig struct {
	Row       string `yaml:"row"`
	Link      string `yaml:"link,omitempty"`
	Title     string `yaml:"title,omitempty"`
	Agency    string `yaml:"agency,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Posted    string `yaml:"posted,omitempty"`
	Closing   string `yaml:"closing,omitempty"`
	Reference string `yaml:"reference,omitempty"`
}

// DetailLabelConfig lists candidate label strings per enrichment field,
// matched case-insensitively against detail-page label/value structures.
type DetailLabelConfig struct {
	Reference     []string `yaml:"reference,omitempty"`
	Buyer         []string `yaml:"buyer,omitempty"`
	ProjectType   []string `yaml:"project_type,omitempty"`
	AgreementType []string `yaml:"agreement_type,omitempty"`
	City          []string `yaml:"city,omitempty"`
	Region        []string `yaml:"region,omitempty"`
	Posted        []string `yaml:"posted,omitempty"`
	Closing       []string `yaml:"closing,omitempty"`
}

// PaginationConfig describes how a portal advances its result set.
type PaginationConfig struct {
	Mode     string `yaml:"mode,omitempty"` // "click" or "none"
	Next     string `yaml:"next,omitempty"` // CSS selector for the next control
	Scroll   bool   `yaml:"scroll,omitempty"`
	MaxPages int    `yaml:"max_pages,omitempty"`
}

// LoadRegistry reads the embedded portals.yaml. The path parameter is a
// filesystem fallback for local development and is otherwise ignored.
func LoadRegistry(path string) (*Registry, error) {
	data, err := portalsYAML.ReadFile("config/portals.yaml")
	if err != nil {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	// Expand environment variables within the YAML content (e.g. ${LIST_URL})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}

	return &reg, nil
}

// Get returns the portal config for a key. An unknown key is a
// configuration error and fatal for the run.
func (r *Registry) Get(key string) (PortalConfig, error) {
	for _, p := range r.Portals {
		if p.Key == key {
			return p, nil
		}
	}
	return PortalConfig{}, fmt.Errorf("unknown portal source %q", key)
}

// Keys lists all configured portal keys in registry order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.Portals))
	for _, p := range r.Portals {
		keys = append(keys, p.Key)
	}
	return keys
}
