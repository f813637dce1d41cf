package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/dom"
	"github.com/wehubfusion/Daedalus/pkg/ruleset"
	"github.com/wehubfusion/Daedalus/pkg/script"
	"github.com/wehubfusion/Daedalus/pkg/storage"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

// Processor handles a single transformation job.
type Processor interface {
	Process(ctx context.Context, job *Job) (Result, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, job *Job) (Result, error)

// Process calls the wrapped function.
func (f ProcessorFunc) Process(ctx context.Context, job *Job) (Result, error) {
	return f(ctx, job)
}

// TransformProcessor applies registered transformations or inline rulesets to
// job documents. An optional document store resolves document references and
// receives stored results.
type TransformProcessor struct {
	transformations map[string]*transform.Transformation
	registry        *ruleset.Registry
	engine          *script.Engine
	store           storage.DocumentStore
	logger          *zap.Logger
}

// NewTransformProcessor creates a processor. transformations maps job
// transformation names to pre-built transformations. registry and engine
// build inline rulesets and may be nil to reject them. store may be nil when
// all jobs carry inline documents.
func NewTransformProcessor(transformations map[string]*transform.Transformation, registry *ruleset.Registry, engine *script.Engine, store storage.DocumentStore, logger *zap.Logger) *TransformProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransformProcessor{
		transformations: transformations,
		registry:        registry,
		engine:          engine,
		store:           store,
		logger:          logger,
	}
}

// Process resolves the job's document and transformation, executes the run,
// and returns the transformed document as a result.
func (p *TransformProcessor) Process(ctx context.Context, job *Job) (Result, error) {
	start := time.Now()

	tr, err := p.resolveTransformation(job)
	if err != nil {
		return Result{}, err
	}

	data, err := p.resolveDocument(ctx, job)
	if err != nil {
		return Result{}, err
	}

	doc, err := dom.Parse(data)
	if err != nil {
		return Result{}, newError(CodeParse, "failed to parse document", err)
	}

	output, err := tr.Execute(ctx, doc, transform.WithValues(job.Context))
	if err != nil {
		return Result{}, newError(CodeTransform, "transformation failed", err)
	}

	serialized, err := serializeResult(output)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		JobID:      job.ID,
		Status:     StatusSucceeded,
		DurationMs: time.Since(start).Milliseconds(),
	}

	if job.StoreResult {
		if p.store == nil {
			return Result{}, newError(CodeStore, fmt.Sprintf("job %s requests stored results but no document store is configured", job.ID), nil)
		}
		ref, err := p.store.Put(ctx, storage.ResultPath(job.ID), []byte(serialized), map[string]string{"job_id": job.ID})
		if err != nil {
			return Result{}, newError(CodeStore, "failed to store result", err)
		}
		result.ResultRef = ref
	} else {
		result.Document = serialized
	}

	return result, nil
}

func (p *TransformProcessor) resolveTransformation(job *Job) (*transform.Transformation, error) {
	if job.Transformation != "" {
		tr, ok := p.transformations[job.Transformation]
		if !ok {
			return nil, newError(CodeUnknownTransformation, fmt.Sprintf("unknown transformation %q", job.Transformation), nil)
		}
		return tr, nil
	}

	if p.registry == nil {
		return nil, newError(CodeInvalidRuleset, "inline rulesets are not enabled", nil)
	}
	rs, err := ruleset.Parse([]byte(job.Ruleset))
	if err != nil {
		return nil, newError(CodeInvalidRuleset, "invalid inline ruleset", err)
	}
	tr, err := rs.Build(p.registry, p.engine, p.logger)
	if err != nil {
		return nil, newError(CodeInvalidRuleset, "failed to build inline ruleset", err)
	}
	return tr, nil
}

func (p *TransformProcessor) resolveDocument(ctx context.Context, job *Job) ([]byte, error) {
	if job.Document != "" {
		return []byte(job.Document), nil
	}
	if p.store == nil {
		return nil, newError(CodeDocumentFetch, fmt.Sprintf("job %s references a stored document but no document store is configured", job.ID), nil)
	}
	data, err := p.store.Get(ctx, job.DocumentRef)
	if err != nil {
		return nil, newError(CodeDocumentFetch, fmt.Sprintf("failed to fetch document %s", job.DocumentRef), err)
	}
	return data, nil
}

// serializeResult renders a transformation result for transport. Nodes are
// serialized as XML, everything else as JSON.
func serializeResult(output any) (string, error) {
	switch v := output.(type) {
	case nil:
		return "", nil
	case *dom.Node:
		return dom.Marshal(v), nil
	case string:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to serialize result: %w", err)
		}
		return string(data), nil
	}
}
