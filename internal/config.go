package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Canonical column names shared by the pipeline stages
const (
	ColDateKey              = "Date_Key"
	ColFundCode             = "Fund_Code"
	ColFundName             = "Fund_Name"
	ColSectorCode           = "Sector_Code"
	ColSectorClassification = "Sector_Classification"
	ColGeography            = "Geography"
	ColAllocation           = "Allocation"
	ColPortfolio            = "Portfolio"
	ColCISManager           = "CIS_Manager"
	ColFundOfFunds          = "Fund_of_Funds"
	ColManagementStyle      = "Management_Style"
	ColRetailInstitutional  = "Retail_Institutional"
	ColThirdParty           = "Third_Party"
)

// HeaderRule rewrites header text matching Pattern (a regex) with Replace
type HeaderRule struct {
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`

	regex *regexp.Regexp `yaml:"-"`
}

// Rename replaces a legacy header fragment with its canonical form
type Rename struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Shorthand replaces sentinel values of one column with a canonical placeholder.
// Missing cells count as the "NAN" sentinel.
type Shorthand struct {
	Column  string            `yaml:"column"`
	Replace map[string]string `yaml:"replace"`
}

// SectorExclusion drops analysis rows by sector classification.
// Plain strings in YAML are matched case-insensitively as whole values;
// objects with a pattern are matched as case-insensitive regexes.
type SectorExclusion struct {
	Value   string `yaml:"value,omitempty"`
	Pattern string `yaml:"pattern,omitempty"`

	regex *regexp.Regexp `yaml:"-"`
}

// SheetSpec names a data sheet and the 0-based row holding its header
type SheetSpec struct {
	Name      string `yaml:"name"`
	HeaderRow int    `yaml:"header_row"`
}

// MissingText is the sentinel a blank text cell renders as in older publications
const MissingText = "NAN"

// DefaultHeaderRules strip punctuation and turn whitespace runs into underscores
var DefaultHeaderRules = []HeaderRule{
	{Pattern: `[()|/]`, Replace: ""},
	{Pattern: `\s+`, Replace: "_"},
}

// DefaultRenames maps legacy header variants onto canonical names
var DefaultRenames = []Rename{
	{From: "Category1", To: ColGeography},
	{From: "Category2", To: ColAllocation},
	{From: "Category3", To: ColPortfolio},
	{From: "FoF", To: ColFundOfFunds},
	{From: "Fundname", To: ColFundName},
	{From: "Sector_Name", To: ColSectorClassification},
}

var DefaultShorthands = []Shorthand{
	{Column: ColFundOfFunds, Replace: map[string]string{MissingText: "Not_FoF"}},
	{Column: ColThirdParty, Replace: map[string]string{MissingText: "Not_TP"}},
	{Column: ColManagementStyle, Replace: map[string]string{"tbc": "TBC", MissingText: "TBC"}},
}

var DefaultSectorExclusions = []string{"fcis asset allocation funds"}

// DefaultDescriptions give a human readable description per categorical value.
// Keys are the cleaned (uppercase) values found in the Analysis sheet.
var DefaultDescriptions = map[string]map[string]string{
	ColFundOfFunds: {
		"FOF":     "FUND OF FUNDS",
		"NOT_FOF": "NOT FUND OF FUNDS",
	},
	ColManagementStyle: {
		"ASSET MANAGER": "ASSET MANAGER",
		"BRANDED":       "BRANDED",
		"BROKER":        "BROKER",
		"TBC":           "TO BE CONFIRMED",
	},
	ColRetailInstitutional: {
		"INSTITUTIONAL": "INSTITUTIONAL",
		"RETAIL":        "RETAIL",
	},
	ColThirdParty: {
		"NOT_TP": "NOT THIRD PARTY",
		"TP":     "THIRD PARTY",
	},
}

var DefaultMeasures = []string{
	"Total_Assets",
	"Institutional_Assets",
	"Net_Flow_R",
	"Net_Flow_I",
}

type Config struct {
	// MetadataSheet holds the publication date on its first row
	MetadataSheet string `yaml:"metadata_sheet,omitempty"`
	// DatePhrase marks the metadata cell carrying the date, matched case-insensitively
	DatePhrase string `yaml:"date_phrase,omitempty"`

	Analysis SheetSpec `yaml:"analysis,omitempty"`
	CISFunds SheetSpec `yaml:"cis_funds,omitempty"`

	HeaderRules []HeaderRule `yaml:"header_rules,omitempty"`
	Renames     []Rename     `yaml:"renames,omitempty"`
	Shorthands  []Shorthand  `yaml:"shorthands,omitempty"`

	// ExcludeSectors accepts plain strings or {pattern: regex} objects
	ExcludeSectors []yaml.Node `yaml:"exclude_sectors,omitempty"`

	// Descriptions maps feature -> cleaned value -> description
	Descriptions map[string]map[string]string `yaml:"descriptions,omitempty"`

	Measures []string `yaml:"measures,omitempty"`

	// Currency is the ISO code measures are reported in
	Currency string `yaml:"currency,omitempty"`

	AuditLog string       `yaml:"audit_log,omitempty"`
	Export   ExportConfig `yaml:"export,omitempty"`
	Fetch    FetchConfig  `yaml:"fetch,omitempty"`

	exclusions []SectorExclusion `yaml:"-"`
}

// ExportConfig controls where the star schema workbook is written
type ExportConfig struct {
	Path       string `yaml:"path,omitempty"`
	OnConflict string `yaml:"on_conflict,omitempty"` // overwrite | fail
}

// FetchConfig points the acquisition collaborator at the publisher
type FetchConfig struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	StatsPage string `yaml:"stats_page,omitempty"`
	// Filters select links by substring, one download set per filter
	Filters []string `yaml:"filters,omitempty"`
}

const (
	OnConflictOverwrite = "overwrite"
	OnConflictFail      = "fail"
)

// DefaultConfigPath returns the default config file path (~/.flowstar/config.yaml)
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".flowstar", "config.yaml")
}

// NewDefaultConfig returns a compiled config using only built-in defaults.
// Use this when no config file exists.
func NewDefaultConfig() (*Config, error) {
	var cfg Config
	if err := cfg.compile(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config content and compiles it
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.compile(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigOrDefault loads path if it exists, falling back to defaults
func LoadConfigOrDefault(path string) (*Config, error) {
	if path == "" {
		return NewDefaultConfig()
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return NewDefaultConfig()
	}
	return LoadConfig(path)
}

// compile fills defaults, compiles regexes and validates descriptions
func (c *Config) compile() error {
	if c.MetadataSheet == "" {
		c.MetadataSheet = "AA"
	}
	if c.DatePhrase == "" {
		c.DatePhrase = "quarter ended"
	}
	if c.Analysis.Name == "" {
		c.Analysis.Name = "Analysis"
	}
	if c.CISFunds.Name == "" {
		c.CISFunds.Name = "CIS Funds"
	}
	if c.Analysis.HeaderRow < 0 || c.CISFunds.HeaderRow < 0 {
		return fmt.Errorf("header_row must not be negative")
	}
	if len(c.HeaderRules) == 0 {
		c.HeaderRules = append([]HeaderRule(nil), DefaultHeaderRules...)
	}
	if len(c.Renames) == 0 {
		c.Renames = append([]Rename(nil), DefaultRenames...)
	}
	if len(c.Shorthands) == 0 {
		c.Shorthands = append([]Shorthand(nil), DefaultShorthands...)
	}
	if len(c.Measures) == 0 {
		c.Measures = append([]string(nil), DefaultMeasures...)
	}
	if c.Currency == "" {
		c.Currency = "ZAR"
	}
	if c.Export.OnConflict == "" {
		c.Export.OnConflict = OnConflictOverwrite
	}
	if c.Export.OnConflict != OnConflictOverwrite && c.Export.OnConflict != OnConflictFail {
		return fmt.Errorf("invalid export on_conflict %q (want %s or %s)", c.Export.OnConflict, OnConflictOverwrite, OnConflictFail)
	}
	if c.Fetch.BaseURL == "" {
		c.Fetch.BaseURL = "https://www.asisa.org.za/"
	}
	if c.Fetch.StatsPage == "" {
		c.Fetch.StatsPage = "statistics/collective-investments-schemes/local-fund-statistics/"
	}

	for i := range c.HeaderRules {
		re, err := regexp.Compile(c.HeaderRules[i].Pattern)
		if err != nil {
			return fmt.Errorf("invalid header rule pattern %q: %w", c.HeaderRules[i].Pattern, err)
		}
		c.HeaderRules[i].regex = re
	}

	c.exclusions = nil
	if len(c.ExcludeSectors) == 0 {
		for _, v := range DefaultSectorExclusions {
			c.exclusions = append(c.exclusions, SectorExclusion{Value: v})
		}
	}
	for _, node := range c.ExcludeSectors {
		var ex SectorExclusion
		switch node.Kind {
		case yaml.ScalarNode:
			ex.Value = node.Value
		case yaml.MappingNode:
			if err := node.Decode(&ex); err != nil {
				return fmt.Errorf("parsing sector exclusion: %w", err)
			}
		default:
			return fmt.Errorf("invalid sector exclusion format")
		}
		if ex.Pattern != "" {
			re, err := regexp.Compile("(?i)" + ex.Pattern)
			if err != nil {
				return fmt.Errorf("invalid sector exclusion pattern %q: %w", ex.Pattern, err)
			}
			ex.regex = re
		} else if strings.TrimSpace(ex.Value) == "" {
			return fmt.Errorf("sector exclusion needs a value or a pattern")
		}
		c.exclusions = append(c.exclusions, ex)
	}

	if c.Descriptions == nil {
		c.Descriptions = DefaultDescriptions
	}
	normalised := make(map[string]map[string]string, len(c.Descriptions))
	for feature, values := range c.Descriptions {
		if len(values) == 0 {
			return fmt.Errorf("descriptions for %s are empty", feature)
		}
		m := make(map[string]string, len(values))
		for value, desc := range values {
			key := strings.ToUpper(strings.TrimSpace(value))
			if key == "" || strings.TrimSpace(desc) == "" {
				return fmt.Errorf("descriptions for %s: value %q needs a non-empty description", feature, value)
			}
			if _, dup := m[key]; dup {
				return fmt.Errorf("descriptions for %s: value %q listed twice", feature, key)
			}
			m[key] = desc
		}
		normalised[feature] = m
	}
	c.Descriptions = normalised

	return nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// IsExcludedSector returns true if the classification matches any exclusion
func (c *Config) IsExcludedSector(classification string) bool {
	if c == nil {
		return false
	}
	for _, ex := range c.exclusions {
		if ex.regex != nil {
			if ex.regex.MatchString(classification) {
				return true
			}
			continue
		}
		if strings.EqualFold(strings.TrimSpace(classification), strings.TrimSpace(ex.Value)) {
			return true
		}
	}
	return false
}

// GetDescriptions returns the value->description mapping for a feature, or nil
func (c *Config) GetDescriptions(feature string) map[string]string {
	if c == nil || c.Descriptions == nil {
		return nil
	}
	return c.Descriptions[feature]
}

// NormaliseHeader applies the header rules then the legacy renames
func (c *Config) NormaliseHeader(h string) string {
	h = strings.TrimSpace(h)
	for _, rule := range c.HeaderRules {
		h = rule.regex.ReplaceAllString(h, rule.Replace)
	}
	for _, r := range c.Renames {
		h = strings.ReplaceAll(h, r.From, r.To)
	}
	return h
}

// GenerateConfigTemplate returns a config with every default spelled out
func GenerateConfigTemplate() *Config {
	cfg := &Config{
		MetadataSheet: "AA",
		DatePhrase:    "quarter ended",
		Analysis:      SheetSpec{Name: "Analysis"},
		CISFunds:      SheetSpec{Name: "CIS Funds"},
		HeaderRules:   DefaultHeaderRules,
		Renames:       DefaultRenames,
		Shorthands:    DefaultShorthands,
		Descriptions:  DefaultDescriptions,
		Measures:      DefaultMeasures,
		Currency:      "ZAR",
		AuditLog:      "logs/quarters_with_no_data.log",
		Export:        ExportConfig{Path: "assets/flows_star_schema.xlsx", OnConflict: OnConflictOverwrite},
	}
	for _, v := range DefaultSectorExclusions {
		cfg.ExcludeSectors = append(cfg.ExcludeSectors, yaml.Node{Kind: yaml.ScalarNode, Value: v})
	}
	return cfg
}
