package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pigeonworks-llc/bean-import/pkg/beancount"
	"github.com/pigeonworks-llc/bean-import/pkg/categorize"
	"github.com/pigeonworks-llc/bean-import/pkg/dedup"
	"github.com/pigeonworks-llc/bean-import/pkg/importer"
	"github.com/pigeonworks-llc/bean-import/pkg/normalize"
	"github.com/pigeonworks-llc/bean-import/pkg/source"
	"gopkg.in/yaml.v3"
)

// Kind is the document type a profile imports.
type Kind string

const (
	KindCSV Kind = "csv"
	KindPDF Kind = "pdf"
)

var currencyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9'._-]{0,22}[A-Z0-9]$`)

// LocaleConfig is the YAML form of normalize.Locale.
type LocaleConfig struct {
	DateLayout          string   `yaml:"date_layout"`
	DecimalSeparator    string   `yaml:"decimal_separator"`
	ThousandsSeparators []string `yaml:"thousands_separators"`
}

// Locale returns the configured locale, or normalize.Norwegian when no date
// layout is set.
func (l LocaleConfig) Locale() normalize.Locale {
	if l.DateLayout == "" {
		return normalize.Norwegian
	}
	return normalize.Locale{
		DateLayout:          l.DateLayout,
		DecimalSeparator:    l.DecimalSeparator,
		ThousandsSeparators: l.ThousandsSeparators,
	}
}

// StatementConfig holds the patterns used to find the closing balance of a
// PDF statement. Empty values use the Norwegian defaults.
type StatementConfig struct {
	PeriodPattern   string   `yaml:"period_pattern"`
	BalancePatterns []string `yaml:"balance_patterns"`
}

// Profile describes one bank export format and how to import it.
type Profile struct {
	Name     string `yaml:"name"`
	Kind     Kind   `yaml:"kind"`
	Prefix   string `yaml:"prefix"`
	Account  string `yaml:"account"`
	Currency string `yaml:"currency"`
	Flag     string `yaml:"flag"`

	Dialect source.Dialect    `yaml:"dialect"`
	Locale  LocaleConfig      `yaml:"locale"`
	Columns importer.ColumnMap `yaml:"columns"`

	Tiers        []categorize.TierConfig  `yaml:"tiers"`
	TypeDefaults []categorize.TypeDefault `yaml:"type_defaults"`

	Statement StatementConfig `yaml:"statement"`
	Dedup     *dedup.Config   `yaml:"dedup"`
}

// ProfileConfig is the root of a profiles YAML file.
type ProfileConfig struct {
	Profiles []Profile `yaml:"profiles"`
}

// DedupConfig returns the profile's duplicate detection settings, or
// dedup.DefaultConfig when none are configured.
func (p Profile) DedupConfig() dedup.Config {
	if p.Dedup == nil {
		return dedup.DefaultConfig()
	}
	return *p.Dedup
}

// CategorizeTiers returns the configured tiers followed by the type default
// tier when the profile maps a type column.
func (p Profile) CategorizeTiers() []categorize.TierConfig {
	tiers := make([]categorize.TierConfig, 0, len(p.Tiers)+1)
	tiers = append(tiers, p.Tiers...)
	if p.Columns.Type != "" && len(p.TypeDefaults) > 0 {
		tiers = append(tiers, categorize.TypeDefaultTier(p.Columns.Type, p.TypeDefaults))
	}
	return tiers
}

// ArchiveName returns the name an imported document is filed under.
func (p Profile) ArchiveName(path string) string {
	prefix := p.Prefix
	if prefix == "" {
		prefix = p.Name
	}
	return prefix + "." + filepath.Base(path)
}

// Validate checks the profile for contradictions that would otherwise only
// surface while importing.
func (p Profile) Validate() error {
	if p.Name == "" {
		return errors.New("profile: name is required")
	}
	wrap := func(err error) error {
		return fmt.Errorf("profile %s: %w", p.Name, err)
	}

	if err := beancount.ValidateAccount(p.Account); err != nil {
		return wrap(err)
	}
	if !currencyPattern.MatchString(p.Currency) {
		return wrap(fmt.Errorf("invalid currency %q", p.Currency))
	}
	switch p.Flag {
	case "", "*", "!":
	default:
		return wrap(fmt.Errorf("invalid flag %q", p.Flag))
	}
	if err := p.DedupConfig().Validate(); err != nil {
		return wrap(err)
	}

	switch p.Kind {
	case KindCSV:
		if err := p.Dialect.Validate(); err != nil {
			return wrap(err)
		}
		if err := p.Columns.Validate(); err != nil {
			return wrap(err)
		}
		if len(p.TypeDefaults) > 0 && p.Columns.Type == "" {
			return wrap(errors.New("type_defaults require a type column"))
		}
		if len(p.Dialect.Header) > 0 {
			declared := make(map[string]bool, len(p.Dialect.Header))
			for _, h := range p.Dialect.Header {
				declared[h] = true
			}
			for _, col := range p.Columns.Columns() {
				if !declared[col] {
					return wrap(fmt.Errorf("column %q is not in the header", col))
				}
			}
			for _, t := range p.Tiers {
				if t.Field != "" && !declared[t.Field] {
					return wrap(fmt.Errorf("tier %q references unknown column %q", t.Name, t.Field))
				}
			}
		}
	case KindPDF:
		if len(p.Tiers) > 0 || len(p.TypeDefaults) > 0 {
			return wrap(errors.New("pdf profiles produce balances only and cannot have rule tiers"))
		}
	default:
		return wrap(fmt.Errorf("unknown kind %q", p.Kind))
	}

	return nil
}

// ParseProfiles decodes and validates a profiles YAML document.
func ParseProfiles(data []byte) ([]Profile, error) {
	var cfg ProfileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate profile %q", p.Name)
		}
		seen[p.Name] = true
	}

	return cfg.Profiles, nil
}

// LoadProfiles returns the built-in profiles overlaid with those defined in
// path. A file profile replaces a built-in one of the same name. A missing
// file is not an error.
func LoadProfiles(path string) ([]Profile, error) {
	profiles := BuiltinProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return profiles, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	loaded, err := ParseProfiles(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for _, p := range loaded {
		replaced := false
		for i := range profiles {
			if profiles[i].Name == p.Name {
				profiles[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			profiles = append(profiles, p)
		}
	}

	return profiles, nil
}

// FindProfile returns the profile named name.
func FindProfile(profiles []Profile, name string) (Profile, error) {
	for _, p := range profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("unknown profile %q", name)
}

var sparebankHeader = []string{"Dato", "Beskrivelse", "Rentedato", "Inn", "Ut", "Til konto", "Fra konto", ""}

func sparebankColumns() importer.ColumnMap {
	return importer.ColumnMap{
		Date:      "Dato",
		Narration: "Beskrivelse",
		Credit:    "Inn",
		Debit:     "Ut",
		Metadata: []importer.MetadataColumn{
			{Column: "Rentedato", Key: "rentedato"},
			{Column: "Til konto", Key: "to_account"},
			{Column: "Fra konto", Key: "from_account"},
		},
	}
}

// BuiltinProfiles returns the profiles shipped with the importer. Their rule
// tiers are empty; rules are added through the profiles file.
func BuiltinProfiles() []Profile {
	return []Profile{
		{
			Name:     "sparebank1-csv",
			Kind:     KindCSV,
			Prefix:   "sparebank1",
			Account:  "Assets:Bank:SpareBank1:Checking",
			Currency: "NOK",
			Dialect:  source.Dialect{Delimiter: ";", Encoding: "utf-8-sig", Header: sparebankHeader},
			Columns:  sparebankColumns(),
			Tiers: []categorize.TierConfig{
				{Name: "narration"},
				{Name: "from-account", Field: "Fra konto"},
				{Name: "to-account", Field: "Til konto"},
			},
		},
		{
			Name:     "banknorwegian-csv",
			Kind:     KindCSV,
			Prefix:   "banknorwegian",
			Account:  "Assets:Bank:BankNorwegian:Savings",
			Currency: "NOK",
			Dialect:  source.Dialect{Delimiter: ";", Encoding: "utf-8-sig", Header: sparebankHeader},
			Columns:  sparebankColumns(),
			Tiers: []categorize.TierConfig{
				{Name: "narration"},
				{Name: "from-account", Field: "Fra konto"},
				{Name: "to-account", Field: "Til konto"},
			},
		},
		{
			Name:     "norwegian-pdf",
			Kind:     KindPDF,
			Prefix:   "bank",
			Account:  "Assets:Bank:SpareBank1:Checking",
			Currency: "NOK",
		},
	}
}
