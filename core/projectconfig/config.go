package projectconfig

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

const DefaultPath = ".scanreport/config.yaml"

type Config struct {
	Report  ReportDefaults  `yaml:"report"`
	Logging LoggingDefaults `yaml:"logging"`
}

type ReportDefaults struct {
	SchemaDir       string   `yaml:"schema_dir"`
	Schema          string   `yaml:"schema"`
	ValidatorMode   string   `yaml:"validator_mode"`
	ValidatorEngine string   `yaml:"validator_engine"`
	OutDir          string   `yaml:"out_dir"`
	ScannerVersion  string   `yaml:"scanner_version"`
	Collections     []string `yaml:"collections"`
	Parallelism     int      `yaml:"parallelism"`
	RevisionTimeout string   `yaml:"revision_timeout"`
	MaxFileBytes    int64    `yaml:"max_file_bytes"`
}

type LoggingDefaults struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string, allowMissing bool) (Config, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return Config{}, fmt.Errorf("project config path is required")
	}

	// #nosec G304 -- project config path is explicit local user input.
	content, err := os.ReadFile(trimmedPath)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read project config: %w", err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return Config{}, nil
	}

	var configuration Config
	if err := yaml.Unmarshal(content, &configuration); err != nil {
		return Config{}, fmt.Errorf("parse project config: %w", err)
	}
	configuration.normalize()
	if err := configuration.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid project config: %w", err)
	}
	return configuration, nil
}

// RevisionTimeoutDuration returns zero when the timeout is unset.
func (defaults ReportDefaults) RevisionTimeoutDuration() (time.Duration, error) {
	if defaults.RevisionTimeout == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(defaults.RevisionTimeout)
	if err != nil {
		return 0, fmt.Errorf("report.revision_timeout: %w", err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("report.revision_timeout must be positive")
	}
	return duration, nil
}

func (configuration *Config) normalize() {
	configuration.Report.SchemaDir = strings.TrimSpace(configuration.Report.SchemaDir)
	configuration.Report.Schema = strings.TrimSpace(configuration.Report.Schema)
	configuration.Report.ValidatorMode = strings.ToLower(strings.TrimSpace(configuration.Report.ValidatorMode))
	configuration.Report.ValidatorEngine = strings.ToLower(strings.TrimSpace(configuration.Report.ValidatorEngine))
	configuration.Report.OutDir = strings.TrimSpace(configuration.Report.OutDir)
	configuration.Report.ScannerVersion = strings.TrimSpace(configuration.Report.ScannerVersion)
	configuration.Report.RevisionTimeout = strings.TrimSpace(configuration.Report.RevisionTimeout)
	collections := make([]string, 0, len(configuration.Report.Collections))
	for _, name := range configuration.Report.Collections {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			collections = append(collections, trimmed)
		}
	}
	configuration.Report.Collections = collections
	configuration.Logging.Level = strings.ToLower(strings.TrimSpace(configuration.Logging.Level))
	configuration.Logging.Format = strings.ToLower(strings.TrimSpace(configuration.Logging.Format))
}

func (configuration Config) validate() error {
	switch configuration.Report.ValidatorMode {
	case "", "full", "fallback":
	default:
		return fmt.Errorf("report.validator_mode must be full or fallback, got %q", configuration.Report.ValidatorMode)
	}
	switch configuration.Report.ValidatorEngine {
	case "", "kaptinlin", "santhosh":
	default:
		return fmt.Errorf("report.validator_engine must be kaptinlin or santhosh, got %q", configuration.Report.ValidatorEngine)
	}
	switch configuration.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", configuration.Logging.Format)
	}
	if configuration.Report.Parallelism < 0 {
		return fmt.Errorf("report.parallelism must not be negative")
	}
	if configuration.Report.MaxFileBytes < 0 {
		return fmt.Errorf("report.max_file_bytes must not be negative")
	}
	_, err := configuration.Report.RevisionTimeoutDuration()
	return err
}
