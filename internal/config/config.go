// =============================================================================
// NaPTAN Import - Configuration Module
// =============================================================================
//
// This module is responsible for loading the application configuration:
// where templates and registry documents live, how request workbooks are laid
// out, which national documents to download, and how strictly field rules
// are enforced.
//
// CONFIGURATION FILE:
//   config.yaml (override with --config). When the default file does not
//   exist the built-in defaults are used; an explicitly named file must exist.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when --config is not given.
const DefaultPath = "config.yaml"

// =============================================================================
// VALIDATION POLICY
// =============================================================================

// Policy controls whether field validation gates inserts.
type Policy string

const (
	// PolicyOff skips field validation entirely.
	PolicyOff Policy = "off"

	// PolicyAdvisory logs validation failures but still inserts the row.
	PolicyAdvisory Policy = "advisory"

	// PolicyEnforce rejects rows that fail validation.
	PolicyEnforce Policy = "enforce"
)

// ParsePolicy converts a policy name to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyOff, PolicyAdvisory, PolicyEnforce:
		return p, nil
	default:
		return "", fmt.Errorf("unknown validation policy %q (want off, advisory or enforce)", s)
	}
}

// =============================================================================
// CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the global application configuration.
type Config struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// TemplatesDir holds one XML skeleton per entity subtype (<name>.xml).
	// Default: "./xml templates"
	TemplatesDir string `yaml:"templates_dir"`

	// RegistryDir holds the registry documents (<prefix>.xml).
	// Default: "./downloaded_xmls"
	RegistryDir string `yaml:"registry_dir"`

	// LocalityDocument is the file name, inside RegistryDir, of the
	// document holding the NptgLocalities section.
	// Default: "NptgLocalities.xml"
	LocalityDocument string `yaml:"locality_document"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	LogLevel string `yaml:"log_level"`

	// LogFormat selects the log handler: "text" or "json".
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// IMPORT SETTINGS
	// =========================================================================

	// Overwrite replaces entities whose primary key already exists.
	// Default: false (duplicates are rejected)
	Overwrite bool `yaml:"overwrite"`

	// ValidationPolicy is one of "off", "advisory", "enforce".
	// Default: "advisory"
	ValidationPolicy Policy `yaml:"validation_policy"`

	// Sheets names the workbook sheets read for each entity kind.
	Sheets Sheets `yaml:"sheets"`

	// =========================================================================
	// REFERENCE DATA
	// =========================================================================

	// NaPTAN configures registry document downloads.
	NaPTAN NaPTAN `yaml:"naptan"`

	// LocalityReference configures the locality code listing.
	LocalityReference LocalityReference `yaml:"locality_reference"`
}

// Sheets names the request workbook sheets.
type Sheets struct {
	Stops      string `yaml:"stops"`
	StopAreas  string `yaml:"stop_areas"`
	Localities string `yaml:"localities"`
}

// NaPTAN configures downloads from the NaPTAN service.
type NaPTAN struct {
	// BaseURL is the service root; downloads POST to BaseURL/Download/MultipleLa.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each download.
	Timeout time.Duration `yaml:"timeout"`

	// AutoDownload fetches the registry documents before an import when any is missing.
	AutoDownload *bool `yaml:"auto_download"`

	// Documents maps registry file name to the local authority name the
	// download form expects, e.g. "910.xml": "National - National Rail / Great Britain (910)".
	Documents map[string]string `yaml:"documents"`
}

// AutoDownloadEnabled reports the effective auto_download setting.
func (n NaPTAN) AutoDownloadEnabled() bool {
	return n.AutoDownload == nil || *n.AutoDownload
}

// LocalityReference locates the delimited listing of known locality codes.
// When neither File nor URL is set the index is built from the locality document.
type LocalityReference struct {
	File      string `yaml:"file"`
	URL       string `yaml:"url"`
	Delimiter string `yaml:"delimiter"`
}

// DefaultDocuments is the set of national registry documents the importer works against.
func DefaultDocuments() map[string]string {
	return map[string]string{
		"910.xml": "National - National Rail / Great Britain (910)",
		"920.xml": "National - National Air / Great Britain (920)",
		"930.xml": "National - National Ferry / Great Britain (930)",
		"940.xml": "National - National Tram / Great Britain (940)",
	}
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads the configuration from a YAML file.
//
// PARAMETERS:
//   - path: The path to the configuration file. If it is DefaultPath and the
//     file does not exist, defaults are returned.
//
// RETURNS:
//   - A pointer to the Config struct.
//   - An error if the file cannot be read, parsed, or fails validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	if cfg.TemplatesDir == "" {
		cfg.TemplatesDir = "./xml templates"
	}
	if cfg.RegistryDir == "" {
		cfg.RegistryDir = "./downloaded_xmls"
	}
	if cfg.LocalityDocument == "" {
		cfg.LocalityDocument = "NptgLocalities.xml"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.ValidationPolicy == "" {
		cfg.ValidationPolicy = PolicyAdvisory
	}
	if cfg.Sheets.Stops == "" {
		cfg.Sheets.Stops = "Stops"
	}
	if cfg.Sheets.StopAreas == "" {
		cfg.Sheets.StopAreas = "StopAreas"
	}
	if cfg.Sheets.Localities == "" {
		cfg.Sheets.Localities = "NptgLocalities"
	}
	if cfg.NaPTAN.BaseURL == "" {
		cfg.NaPTAN.BaseURL = "https://beta-naptan.dft.gov.uk"
	}
	if cfg.NaPTAN.Timeout == 0 {
		cfg.NaPTAN.Timeout = 60 * time.Second
	}
	if len(cfg.NaPTAN.Documents) == 0 {
		cfg.NaPTAN.Documents = DefaultDocuments()
	}
	if cfg.LocalityReference.Delimiter == "" {
		cfg.LocalityReference.Delimiter = ","
	}
}

// validate rejects values the rest of the program cannot act on.
func validate(cfg *Config) error {
	if _, err := ParsePolicy(string(cfg.ValidationPolicy)); err != nil {
		return err
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}

	if cfg.NaPTAN.Timeout < 0 {
		return fmt.Errorf("naptan.timeout must not be negative")
	}
	if len([]rune(cfg.LocalityReference.Delimiter)) != 1 {
		return fmt.Errorf("locality_reference.delimiter must be a single character")
	}
	if cfg.LocalityReference.File != "" && cfg.LocalityReference.URL != "" {
		return fmt.Errorf("locality_reference: set file or url, not both")
	}
	return nil
}
