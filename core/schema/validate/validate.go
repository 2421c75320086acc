// Package validate checks documents against the named JSON Schemas shipped
// under the project schema directory.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Dee66/repo-scanner-sub001/core/document"
	coreerrors "github.com/Dee66/repo-scanner-sub001/core/errors"
)

type Mode string

const (
	ModeFull     Mode = "full"
	ModeFallback Mode = "fallback"
)

type Engine string

const (
	EngineKaptinlin Engine = "kaptinlin"
	EngineSanthosh  Engine = "santhosh"
)

const (
	DefaultSchemaDir = "schemas"
	schemaSuffix     = ".schema.json"
)

type Options struct {
	SchemaDir string
	Mode      Mode
	Engine    Engine
}

type Diagnostic struct {
	Pointer string `json:"pointer"`
	Message string `json:"message"`
}

func (diagnostic Diagnostic) String() string {
	pointer := diagnostic.Pointer
	if pointer == "" {
		pointer = "/"
	}
	return pointer + ": " + diagnostic.Message
}

// Validator compiles each named schema at most once per instance.
type Validator struct {
	options Options

	mu    sync.Mutex
	cache map[string]*compiledSchema
}

type compiledSchema struct {
	path      string
	raw       document.Value
	kaptinlin *jsonschema.Schema
	santhosh  *santhosh.Schema
}

func New(options Options) (*Validator, error) {
	if strings.TrimSpace(options.SchemaDir) == "" {
		options.SchemaDir = DefaultSchemaDir
	}
	switch options.Mode {
	case "":
		options.Mode = ModeFull
	case ModeFull, ModeFallback:
	default:
		return nil, coreerrors.New(
			fmt.Sprintf("unsupported validator mode %q", options.Mode),
			coreerrors.CategoryInvalidInput, "validator_mode_invalid", "use full or fallback",
		)
	}
	switch options.Engine {
	case "":
		options.Engine = EngineKaptinlin
	case EngineKaptinlin, EngineSanthosh:
	default:
		return nil, coreerrors.New(
			fmt.Sprintf("unsupported validator engine %q", options.Engine),
			coreerrors.CategoryInvalidInput, "validator_engine_invalid", "use kaptinlin or santhosh",
		)
	}
	return &Validator{options: options, cache: map[string]*compiledSchema{}}, nil
}

func (validator *Validator) Mode() Mode {
	return validator.options.Mode
}

// SchemaPath maps a schema name to <dir>/<name>.schema.json. The name may
// already carry the .schema.json or .json suffix.
func SchemaPath(dir string, name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	trimmed = strings.TrimSuffix(trimmed, schemaSuffix)
	trimmed = strings.TrimSuffix(trimmed, ".json")
	if trimmed == "" || strings.ContainsAny(trimmed, `/\`) || strings.Contains(trimmed, "..") {
		return "", coreerrors.New(
			fmt.Sprintf("invalid schema name %q", name),
			coreerrors.CategoryInvalidInput, "schema_name_invalid", "pass a bare schema name such as scan_report",
		)
	}
	return filepath.Join(dir, trimmed+schemaSuffix), nil
}

// Validate returns every violation of the named schema, sorted by pointer
// then message. An empty result means the document is valid.
func (validator *Validator) Validate(doc document.Value, name string) ([]Diagnostic, error) {
	schema, err := validator.load(name)
	if err != nil {
		return nil, err
	}
	var diagnostics []Diagnostic
	switch {
	case validator.options.Mode == ModeFallback:
		diagnostics = Fallback(schema.raw, doc)
	case validator.options.Engine == EngineSanthosh:
		diagnostics, err = validateSanthosh(schema.santhosh, doc)
	default:
		diagnostics, err = validateKaptinlin(schema.kaptinlin, doc)
	}
	if err != nil {
		return nil, err
	}
	return sortDiagnostics(diagnostics), nil
}

// Check is Validate with violations folded into a validation_failed error.
func (validator *Validator) Check(doc document.Value, name string) error {
	diagnostics, err := validator.Validate(doc, name)
	if err != nil {
		return err
	}
	return DiagnosticsError(name, diagnostics)
}

// DiagnosticsError returns nil for an empty list.
func DiagnosticsError(name string, diagnostics []Diagnostic) error {
	if len(diagnostics) == 0 {
		return nil
	}
	return coreerrors.New(
		fmt.Sprintf("schema %s validation failed: %s", strings.TrimSpace(name), FormatDiagnostics(diagnostics)),
		coreerrors.CategoryValidation, "schema_validation_failed", "fix the reported fields and rerun",
	)
}

func FormatDiagnostics(diagnostics []Diagnostic) string {
	parts := make([]string, 0, len(diagnostics))
	for _, diagnostic := range diagnostics {
		parts = append(parts, diagnostic.String())
	}
	return strings.Join(parts, "; ")
}

func (validator *Validator) load(name string) (*compiledSchema, error) {
	path, err := SchemaPath(validator.options.SchemaDir, name)
	if err != nil {
		return nil, err
	}
	validator.mu.Lock()
	defer validator.mu.Unlock()
	if cached, ok := validator.cache[path]; ok {
		return cached, nil
	}

	// #nosec G304 -- schema path is the configured schema directory plus a validated bare name.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, coreerrors.Wrap(
				fmt.Errorf("schema %s not found: %w", path, err),
				coreerrors.CategorySchemaMissing, "schema_missing", "check report.schema_dir or the schema name", false,
			)
		}
		return nil, coreerrors.Wrap(fmt.Errorf("read schema: %w", err), coreerrors.CategoryIOFailure, "schema_read_failed", "", true)
	}
	raw, err := document.Decode(data)
	if err != nil {
		return nil, invalidSchema(path, err)
	}
	compiled := &compiledSchema{path: path, raw: raw}
	if validator.options.Mode == ModeFull {
		switch validator.options.Engine {
		case EngineSanthosh:
			compiled.santhosh, err = compileSanthosh(path, data)
		default:
			compiled.kaptinlin, err = compileKaptinlin(data)
		}
		if err != nil {
			return nil, invalidSchema(path, err)
		}
	}
	validator.cache[path] = compiled
	return compiled, nil
}

func invalidSchema(path string, err error) error {
	return coreerrors.Wrap(
		fmt.Errorf("schema %s: %w", path, err),
		coreerrors.CategoryInvalidInput, "schema_invalid", "the schema file must be a valid JSON Schema document", false,
	)
}

func compileKaptinlin(data []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(data)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateKaptinlin(schema *jsonschema.Schema, doc document.Value) ([]Diagnostic, error) {
	encoded, err := document.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	result := schema.ValidateJSON(encoded)
	if result.IsValid() {
		return nil, nil
	}
	diagnostics := []Diagnostic{}
	collectKaptinlin(result, &diagnostics)
	return diagnostics, nil
}

func collectKaptinlin(result *jsonschema.EvaluationResult, diagnostics *[]Diagnostic) {
	if result == nil {
		return
	}
	pointer := strings.TrimPrefix(result.InstanceLocation, "#")
	for _, evaluationErr := range result.Errors {
		if evaluationErr == nil {
			continue
		}
		*diagnostics = append(*diagnostics, Diagnostic{Pointer: pointer, Message: evaluationErr.Error()})
	}
	for _, detail := range result.Details {
		collectKaptinlin(detail, diagnostics)
	}
}

func compileSanthosh(path string, data []byte) (*santhosh.Schema, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve schema path: %w", err)
	}
	compiler := santhosh.NewCompiler()
	compiler.Draft = santhosh.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource(absPath, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(absPath)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func validateSanthosh(schema *santhosh.Schema, doc document.Value) ([]Diagnostic, error) {
	encoded, err := document.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var payload any
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	err = schema.Validate(payload)
	if err == nil {
		return nil, nil
	}
	var validationErr *santhosh.ValidationError
	if !errors.As(err, &validationErr) {
		return nil, fmt.Errorf("validate document: %w", err)
	}
	diagnostics := []Diagnostic{}
	collectSanthosh(validationErr, &diagnostics)
	return diagnostics, nil
}

// collectSanthosh keeps leaf causes only; inner nodes repeat their children.
func collectSanthosh(validationErr *santhosh.ValidationError, diagnostics *[]Diagnostic) {
	if len(validationErr.Causes) == 0 {
		*diagnostics = append(*diagnostics, Diagnostic{
			Pointer: strings.TrimPrefix(validationErr.InstanceLocation, "#"),
			Message: validationErr.Message,
		})
		return
	}
	for _, cause := range validationErr.Causes {
		collectSanthosh(cause, diagnostics)
	}
}

// Fallback checks required keys only, descending through properties that
// both the schema and the document define. It never checks types.
func Fallback(schema document.Value, doc document.Value) []Diagnostic {
	diagnostics := []Diagnostic{}
	fallback(document.Path{}, schema, doc, &diagnostics)
	return sortDiagnostics(diagnostics)
}

func fallback(path document.Path, schema document.Value, doc document.Value, diagnostics *[]Diagnostic) {
	schemaNode, ok := schema.(*document.Mapping)
	if !ok {
		return
	}
	docNode, ok := doc.(*document.Mapping)
	if !ok {
		return
	}
	if required, ok := schemaNode.SequenceField("required"); ok {
		for _, item := range required.Items() {
			key, ok := item.(document.String)
			if !ok || docNode.Has(string(key)) {
				continue
			}
			*diagnostics = append(*diagnostics, Diagnostic{
				Pointer: path.Pointer(),
				Message: fmt.Sprintf("missing required property %q", string(key)),
			})
		}
	}
	properties, ok := schemaNode.MappingField("properties")
	if !ok {
		return
	}
	for _, key := range properties.Keys() {
		child, ok := docNode.Get(key)
		if !ok {
			continue
		}
		childSchema, _ := properties.Get(key)
		fallback(append(append(document.Path{}, path...), key), childSchema, child, diagnostics)
	}
}

func sortDiagnostics(diagnostics []Diagnostic) []Diagnostic {
	sort.Slice(diagnostics, func(i, j int) bool {
		if diagnostics[i].Pointer != diagnostics[j].Pointer {
			return diagnostics[i].Pointer < diagnostics[j].Pointer
		}
		return diagnostics[i].Message < diagnostics[j].Message
	})
	unique := diagnostics[:0]
	for _, diagnostic := range diagnostics {
		if len(unique) > 0 && diagnostic == unique[len(unique)-1] {
			continue
		}
		unique = append(unique, diagnostic)
	}
	return unique
}
