package runner

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Job is a transformation request pulled from the job stream. The document
// travels inline or as a storage reference, and the transformation is named
// by a pre-registered identifier or carried as an inline YAML ruleset.
type Job struct {
	// ID identifies the job across reports and result blobs. A UUID is
	// assigned on decode when the producer left it empty.
	ID string `json:"id"`

	// Transformation names a transformation registered with the processor.
	Transformation string `json:"transformation,omitempty"`

	// Ruleset is an inline YAML ruleset, used when Transformation is empty.
	Ruleset string `json:"ruleset,omitempty"`

	// Document is the source XML, inline.
	Document string `json:"document,omitempty"`

	// DocumentRef points at the source XML in the document store. Used when
	// Document is empty.
	DocumentRef string `json:"document_ref,omitempty"`

	// Context carries call-side symbol values for the transformation run.
	Context map[string]any `json:"context,omitempty"`

	// StoreResult uploads the transformed document to the document store and
	// reports its reference instead of inlining the output.
	StoreResult bool `json:"store_result,omitempty"`
}

// DecodeJob parses a job payload and validates its required fields. Jobs
// without an ID get a generated UUID.
func DecodeJob(data []byte) (*Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, newError(CodeInvalidJob, "invalid job payload", err)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate checks that the job names a transformation and carries a document.
func (j *Job) Validate() error {
	if j.ID == "" {
		return newError(CodeInvalidJob, "job id cannot be empty", nil)
	}
	if j.Transformation == "" && j.Ruleset == "" {
		return newError(CodeInvalidJob, "job must name a transformation or carry an inline ruleset", nil)
	}
	if j.Transformation != "" && j.Ruleset != "" {
		return newError(CodeInvalidJob, "job cannot both name a transformation and carry an inline ruleset", nil)
	}
	if j.Document == "" && j.DocumentRef == "" {
		return newError(CodeInvalidJob, "job must carry a document or a document reference", nil)
	}
	return nil
}

// Job result statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Result is published to the result subject after a job completes.
type Result struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	Document   string `json:"document,omitempty"`
	ResultRef  string `json:"result_ref,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}
