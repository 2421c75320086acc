package evidence

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Dee66/repo-scanner-sub001/core/document"
	"github.com/Dee66/repo-scanner-sub001/core/logging"
	"github.com/Dee66/repo-scanner-sub001/core/provenance"
	"github.com/Dee66/repo-scanner-sub001/core/resolve"
)

const DefaultParallelism = 4

type Normalizer struct {
	Resolver    resolve.Resolver
	Commit      string
	Provenance  provenance.Calculator
	Parallelism int
	Logger      *zap.Logger
}

type Stats struct {
	NodesVisited          int `json:"nodes_visited"`
	FindingsNormalized    int `json:"findings_normalized"`
	RecordsNormalized     int `json:"records_normalized"`
	RecordsWithProvenance int `json:"records_with_provenance"`
	UnresolvedPaths       int `json:"unresolved_paths"`
}

type provenanceJob struct {
	record  *document.Mapping
	pointer string
	path    string
	snippet string
}

// Normalize rewrites the tree in place. Every recognized severity gets its
// canonical spelling; on HIGH and CRITICAL nodes that also carry an evidence
// field, the evidence becomes a list of records. The only error it returns
// is cancellation of ctx.
func (normalizer Normalizer) Normalize(ctx context.Context, root document.Value) (Stats, error) {
	logger := logging.OrNop(normalizer.Logger)
	commit := strings.TrimSpace(normalizer.Commit)
	if commit == "" {
		commit = resolve.UnknownCommit
	}

	stats := Stats{}
	jobs := make([]provenanceJob, 0)
	err := document.Walk(root, func(path document.Path, value document.Value) error {
		stats.NodesVisited++
		node, ok := value.(*document.Mapping)
		if !ok {
			return nil
		}
		severity, known := SeverityOf(node)
		if !known {
			return nil
		}
		node.Set(FieldSeverity, document.String(severity))
		if !severity.IsHigh() || !node.Has(FieldEvidence) {
			return nil
		}

		raw, _ := node.Get(FieldEvidence)
		records := coerceRecords(raw)
		normalized := document.NewSequence()
		for _, record := range records {
			pointer := path.Pointer() + "/" + FieldEvidence + "/" + strconv.Itoa(normalized.Len())
			job, hasJob := normalizer.normalizeRecord(record, commit, &stats, logger, pointer)
			if hasJob {
				jobs = append(jobs, job)
			}
			normalized.Append(record)
		}
		node.Set(FieldEvidence, normalized)
		stats.FindingsNormalized++
		stats.RecordsNormalized += normalized.Len()
		return nil
	})
	if err != nil {
		return stats, err
	}

	results, err := normalizer.computeProvenance(ctx, jobs)
	if err != nil {
		return stats, err
	}
	for index, job := range jobs {
		result := results[index]
		if !result.Available {
			job.record.Delete(FieldLineRange)
			job.record.Delete(FieldByteRange)
			logger.Debug("evidence provenance unavailable",
				zap.String("pointer", job.pointer),
				zap.String("source_path", job.path),
				zap.Error(result.Err),
			)
			continue
		}
		if result.Err != nil {
			logger.Debug("evidence provenance degraded to whole file",
				zap.String("pointer", job.pointer),
				zap.String("source_path", job.path),
				zap.Error(result.Err),
			)
		}
		job.record.Set(FieldLineRange, rangeValue(result.LineRange))
		job.record.Set(FieldByteRange, rangeValue(result.ByteRange))
		stats.RecordsWithProvenance++
	}
	return stats, nil
}

func (normalizer Normalizer) normalizeRecord(
	record *document.Mapping,
	commit string,
	stats *Stats,
	logger *zap.Logger,
	pointer string,
) (provenanceJob, bool) {
	if existing, ok := record.StringField(FieldRepoCommit); !ok || strings.TrimSpace(existing) == "" {
		record.Set(FieldRepoCommit, document.String(commit))
	}
	if value, ok := record.Get(FieldSnippet); !ok || !isString(value) {
		record.Set(FieldSnippet, document.Null{})
	}

	sourcePath, ok := record.StringField(FieldSourcePath)
	if !ok || strings.TrimSpace(sourcePath) == "" {
		record.Set(FieldSourcePath, document.Null{})
		record.Delete(FieldLineRange)
		record.Delete(FieldByteRange)
		return provenanceJob{}, false
	}
	resolution := normalizer.Resolver.Resolve(sourcePath)
	if !resolution.Resolved {
		stats.UnresolvedPaths++
		record.Delete(FieldLineRange)
		record.Delete(FieldByteRange)
		logger.Debug("evidence source path unresolved",
			zap.String("pointer", pointer),
			zap.String("source_path", sourcePath),
		)
		return provenanceJob{}, false
	}
	record.Set(FieldSourcePath, document.String(resolution.Canonical))
	snippet, _ := record.StringField(FieldSnippet)
	return provenanceJob{
		record:  record,
		pointer: pointer,
		path:    resolution.Path,
		snippet: snippet,
	}, true
}

// computeProvenance runs jobs on a bounded pool. Results are indexed by job
// position so the write-back order never depends on scheduling.
func (normalizer Normalizer) computeProvenance(ctx context.Context, jobs []provenanceJob) ([]provenance.Result, error) {
	results := make([]provenance.Result, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	parallelism := normalizer.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)
	for index := range jobs {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			results[index] = normalizer.Provenance.Compute(jobs[index].path, jobs[index].snippet)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// coerceRecords turns any evidence shape into a list of record mappings.
// Existing record mappings are reused so detector-specific keys survive.
func coerceRecords(raw document.Value) []*document.Mapping {
	var items []document.Value
	switch typed := raw.(type) {
	case *document.Sequence:
		items = typed.Items()
	case *document.Mapping:
		if typed.Len() == 0 {
			return nil
		}
		items = []document.Value{typed}
	default:
		if raw == nil {
			return nil
		}
		items = []document.Value{raw}
	}

	records := make([]*document.Mapping, 0, len(items))
	for _, item := range items {
		switch typed := item.(type) {
		case *document.Mapping:
			if typed.Len() == 0 {
				continue
			}
			records = append(records, typed)
		case document.String:
			if strings.TrimSpace(string(typed)) == "" {
				continue
			}
			records = append(records, snippetRecord(string(typed)))
		case document.Number:
			records = append(records, snippetRecord(string(typed)))
		case document.Bool:
			if typed {
				records = append(records, snippetRecord("true"))
			} else {
				records = append(records, snippetRecord("false"))
			}
		}
	}
	return records
}

func snippetRecord(snippet string) *document.Mapping {
	record := document.NewMapping()
	record.Set(FieldSnippet, document.String(snippet))
	record.Set(FieldSourcePath, document.Null{})
	return record
}

func rangeValue(value provenance.Range) *document.Sequence {
	return document.NewSequence(document.Number(strconv.Itoa(value[0])), document.Number(strconv.Itoa(value[1])))
}

func isString(value document.Value) bool {
	_, ok := value.(document.String)
	return ok
}
