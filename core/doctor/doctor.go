package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Dee66/repo-scanner-sub001/core/document"
	"github.com/Dee66/repo-scanner-sub001/core/projectconfig"
	"github.com/Dee66/repo-scanner-sub001/core/schema/validate"
)

const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"
)

type Options struct {
	WorkDir         string
	OutputDir       string
	SchemaDir       string
	ConfigPath      string
	ProducerVersion string
	ValidatorEngine validate.Engine
	// LookPath defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

type Result struct {
	SchemaID        string   `json:"schema_id"`
	SchemaVersion   string   `json:"schema_version"`
	CreatedAt       string   `json:"created_at"`
	ProducerVersion string   `json:"producer_version"`
	Status          string   `json:"status"`
	NonFixable      bool     `json:"non_fixable"`
	Summary         string   `json:"summary"`
	FixCommands     []string `json:"fix_commands"`
	Checks          []Check  `json:"checks"`
}

type Check struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	FixCommand string `json:"fix_command,omitempty"`
	NonFixable bool   `json:"non_fixable,omitempty"`
}

// RequiredSchemas are the schema names every installation ships.
var RequiredSchemas = []string{
	"scan_report",
	"bounty_assessment",
}

func Run(opts Options) Result {
	workDir := strings.TrimSpace(opts.WorkDir)
	if workDir == "" {
		workDir = "."
	}
	outputDir := resolveIn(workDir, opts.OutputDir, "./scanreport-out")
	schemaDir := resolveIn(workDir, opts.SchemaDir, validate.DefaultSchemaDir)
	configPath := resolveIn(workDir, opts.ConfigPath, projectconfig.DefaultPath)

	producerVersion := strings.TrimSpace(opts.ProducerVersion)
	if producerVersion == "" {
		producerVersion = "0.0.0-dev"
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	checks := []Check{
		checkWorkDirWritable(workDir),
		checkOutputDir(outputDir),
		checkProjectConfig(configPath),
		checkSchemaFiles(schemaDir, opts.ValidatorEngine),
		checkGit(lookPath),
	}

	failed := 0
	warned := 0
	nonFixable := false
	fixCommands := make([]string, 0, len(checks))
	seenFixes := map[string]struct{}{}
	for _, check := range checks {
		switch check.Status {
		case statusFail:
			failed++
		case statusWarn:
			warned++
		}
		if check.NonFixable {
			nonFixable = true
		}
		if check.FixCommand != "" {
			if _, ok := seenFixes[check.FixCommand]; !ok {
				seenFixes[check.FixCommand] = struct{}{}
				fixCommands = append(fixCommands, check.FixCommand)
			}
		}
	}

	status := statusPass
	if failed > 0 {
		status = statusFail
	} else if warned > 0 {
		status = statusWarn
	}

	sort.Strings(fixCommands)
	summary := fmt.Sprintf("doctor: status=%s failed=%d warned=%d non_fixable=%t", status, failed, warned, nonFixable)

	return Result{
		SchemaID:        "scanreport.doctor.result",
		SchemaVersion:   "1.0.0",
		CreatedAt:       time.Now().UTC().Format(time.RFC3339Nano),
		ProducerVersion: producerVersion,
		Status:          status,
		NonFixable:      nonFixable,
		Summary:         summary,
		FixCommands:     fixCommands,
		Checks:          checks,
	}
}

func resolveIn(workDir string, value string, fallback string) string {
	path := strings.TrimSpace(value)
	if path == "" {
		path = fallback
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	return path
}

func checkWorkDirWritable(workDir string) Check {
	info, err := os.Stat(workDir)
	if err != nil {
		return Check{
			Name:       "workdir",
			Status:     statusFail,
			Message:    fmt.Sprintf("workdir not accessible: %v", err),
			FixCommand: fmt.Sprintf("mkdir -p %s", shellQuote(workDir)),
		}
	}
	if !info.IsDir() {
		return Check{
			Name:       "workdir",
			Status:     statusFail,
			Message:    "workdir is not a directory",
			FixCommand: fmt.Sprintf("mkdir -p %s", shellQuote(workDir)),
		}
	}
	if err := probeWritable(workDir); err != nil {
		return Check{
			Name:       "workdir",
			Status:     statusFail,
			Message:    fmt.Sprintf("workdir not writable: %v", err),
			FixCommand: fmt.Sprintf("chmod u+w %s", shellQuote(workDir)),
		}
	}
	return Check{
		Name:    "workdir",
		Status:  statusPass,
		Message: "workdir is writable",
	}
}

func checkOutputDir(outputDir string) Check {
	info, err := os.Stat(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return Check{
				Name:       "output_dir",
				Status:     statusWarn,
				Message:    "output directory does not exist",
				FixCommand: fmt.Sprintf("mkdir -p %s", shellQuote(outputDir)),
			}
		}
		return Check{
			Name:    "output_dir",
			Status:  statusFail,
			Message: fmt.Sprintf("output directory check failed: %v", err),
		}
	}
	if !info.IsDir() {
		return Check{
			Name:    "output_dir",
			Status:  statusFail,
			Message: "output path is not a directory",
		}
	}
	if err := probeWritable(outputDir); err != nil {
		return Check{
			Name:       "output_dir",
			Status:     statusFail,
			Message:    fmt.Sprintf("output directory not writable: %v", err),
			FixCommand: fmt.Sprintf("chmod u+w %s", shellQuote(outputDir)),
		}
	}
	return Check{
		Name:    "output_dir",
		Status:  statusPass,
		Message: "output directory is writable",
	}
}

func checkProjectConfig(configPath string) Check {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Check{
			Name:    "project_config",
			Status:  statusPass,
			Message: "no project config; built-in defaults apply",
		}
	}
	if _, err := projectconfig.Load(configPath, false); err != nil {
		return Check{
			Name:       "project_config",
			Status:     statusFail,
			Message:    err.Error(),
			FixCommand: fmt.Sprintf("edit %s", shellQuote(configPath)),
		}
	}
	return Check{
		Name:    "project_config",
		Status:  statusPass,
		Message: "project config is valid",
	}
}

// checkSchemaFiles compiles every required schema with the configured engine.
func checkSchemaFiles(schemaDir string, engine validate.Engine) Check {
	validator, err := validate.New(validate.Options{SchemaDir: schemaDir, Engine: engine})
	if err != nil {
		return Check{
			Name:    "schema_files",
			Status:  statusFail,
			Message: err.Error(),
		}
	}
	problems := make([]string, 0, len(RequiredSchemas))
	for _, name := range RequiredSchemas {
		if _, err := validator.Validate(document.NewMapping(), name); err != nil {
			problems = append(problems, name)
		}
	}
	if len(problems) > 0 {
		return Check{
			Name:       "schema_files",
			Status:     statusFail,
			Message:    fmt.Sprintf("missing or invalid schema files in %s: %s", schemaDir, strings.Join(problems, ",")),
			NonFixable: true,
		}
	}
	return Check{
		Name:    "schema_files",
		Status:  statusPass,
		Message: "required schema files are present and compile",
	}
}

func checkGit(lookPath func(string) (string, error)) Check {
	if _, err := lookPath("git"); err != nil {
		return Check{
			Name:    "git",
			Status:  statusWarn,
			Message: "git not found on PATH; evidence will carry repo_commit unknown-commit",
		}
	}
	return Check{
		Name:    "git",
		Status:  statusPass,
		Message: "git is available for revision lookup",
	}
}

func probeWritable(dir string) error {
	testPath := filepath.Join(dir, ".scanreport-doctor-writecheck")
	if err := os.WriteFile(testPath, []byte("ok"), 0o600); err != nil {
		return err
	}
	_ = os.Remove(testPath)
	return nil
}

func shellQuote(value string) string {
	if value == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
