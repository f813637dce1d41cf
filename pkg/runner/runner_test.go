package runner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/wehubfusion/Daedalus/pkg/lib"
	"github.com/wehubfusion/Daedalus/pkg/ruleset"
	"github.com/wehubfusion/Daedalus/pkg/transform"
)

// memStore is an in-memory DocumentStore for tests.
type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][]byte)}
}

func (m *memStore) Put(_ context.Context, path string, data []byte, _ map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[path] = data
	return "mem://" + path, nil
}

func (m *memStore) Get(_ context.Context, reference string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reference = strings.TrimPrefix(reference, "mem://")
	data, ok := m.blobs[reference]
	if !ok {
		return nil, errors.New("blob not found: " + reference)
	}
	return data, nil
}

// fakePublisher records published results.
type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (f *fakePublisher) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return &nats.PubAck{}, nil
}

func (f *fakePublisher) results(t *testing.T) []Result {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Result, len(f.payloads))
	for i, payload := range f.payloads {
		if err := json.Unmarshal(payload, &out[i]); err != nil {
			t.Fatalf("invalid result payload: %v", err)
		}
	}
	return out
}

func markTransformation(t *testing.T) *transform.Transformation {
	t.Helper()
	tr, err := transform.New(
		transform.Config{Name: "mark"},
		transform.NewRule("item", lib.SetAttribute("done", "yes")),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func TestDecodeJob(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			"valid named transformation",
			`{"id":"j1","transformation":"mark","document":"<root/>"}`,
			false,
		},
		{
			"valid inline ruleset with reference",
			`{"id":"j2","ruleset":"name: x\nrules: []","document_ref":"docs/in.xml"}`,
			false,
		},
		{"invalid json", `{"id":`, true},
		{"missing transformation and ruleset", `{"id":"j3","document":"<root/>"}`, true},
		{
			"both transformation and ruleset",
			`{"id":"j4","transformation":"mark","ruleset":"name: x","document":"<root/>"}`,
			true,
		},
		{"missing document", `{"id":"j5","transformation":"mark"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeJob([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeJob error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && ErrorCode(err) != CodeInvalidJob {
				t.Errorf("ErrorCode = %q, want %q", ErrorCode(err), CodeInvalidJob)
			}
		})
	}
}

func TestDecodeJobGeneratesID(t *testing.T) {
	job, err := DecodeJob([]byte(`{"transformation":"mark","document":"<root/>"}`))
	if err != nil {
		t.Fatalf("DecodeJob: %v", err)
	}
	if job.ID == "" {
		t.Error("expected a generated job ID")
	}
}

func TestTransformProcessorInlineDocument(t *testing.T) {
	processor := NewTransformProcessor(
		map[string]*transform.Transformation{"mark": markTransformation(t)},
		nil, nil, nil, zap.NewNop(),
	)

	result, err := processor.Process(context.Background(), &Job{
		ID:             "j1",
		Transformation: "mark",
		Document:       `<order><item/></order>`,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Status != StatusSucceeded {
		t.Errorf("Status = %q, want %q", result.Status, StatusSucceeded)
	}
	if !strings.Contains(result.Document, `<item done="yes"`) {
		t.Errorf("Document = %q, missing marked item", result.Document)
	}
}

func TestTransformProcessorStoredDocument(t *testing.T) {
	store := newMemStore()
	store.blobs["docs/in.xml"] = []byte(`<order><item/></order>`)

	processor := NewTransformProcessor(
		map[string]*transform.Transformation{"mark": markTransformation(t)},
		nil, nil, store, zap.NewNop(),
	)

	result, err := processor.Process(context.Background(), &Job{
		ID:             "j2",
		Transformation: "mark",
		DocumentRef:    "docs/in.xml",
		StoreResult:    true,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Document != "" {
		t.Errorf("Document = %q, want empty when result is stored", result.Document)
	}
	if result.ResultRef != "mem://results/j2.xml" {
		t.Errorf("ResultRef = %q", result.ResultRef)
	}
	stored := string(store.blobs["results/j2.xml"])
	if !strings.Contains(stored, `done="yes"`) {
		t.Errorf("stored result = %q, missing marked item", stored)
	}
}

func TestTransformProcessorInlineRuleset(t *testing.T) {
	processor := NewTransformProcessor(nil, ruleset.NewRegistry(), nil, nil, zap.NewNop())

	rulesetYAML := `
name: retitle
rules:
  - conditions:
      - selector: title
    handlers:
      - use: set-text
        args:
          text: changed
`
	result, err := processor.Process(context.Background(), &Job{
		ID:       "j3",
		Ruleset:  rulesetYAML,
		Document: `<doc><title>original</title></doc>`,
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.Contains(result.Document, "<title>changed</title>") {
		t.Errorf("Document = %q", result.Document)
	}
}

func TestTransformProcessorErrors(t *testing.T) {
	processor := NewTransformProcessor(
		map[string]*transform.Transformation{"mark": markTransformation(t)},
		nil, nil, nil, zap.NewNop(),
	)

	tests := []struct {
		name     string
		job      Job
		wantCode string
	}{
		{"unknown transformation", Job{ID: "e1", Transformation: "missing", Document: "<a/>"}, CodeUnknownTransformation},
		{"inline ruleset disabled", Job{ID: "e2", Ruleset: "name: x", Document: "<a/>"}, CodeInvalidRuleset},
		{"no store for reference", Job{ID: "e3", Transformation: "mark", DocumentRef: "docs/x.xml"}, CodeDocumentFetch},
		{"no store for result", Job{ID: "e4", Transformation: "mark", Document: "<a/>", StoreResult: true}, CodeStore},
		{"malformed document", Job{ID: "e5", Transformation: "mark", Document: "<a"}, CodeParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := processor.Process(context.Background(), &tt.job)
			if err == nil {
				t.Fatal("expected an error, got nil")
			}
			if got := ErrorCode(err); got != tt.wantCode {
				t.Errorf("ErrorCode = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestNewRunnerValidation(t *testing.T) {
	processor := ProcessorFunc(func(context.Context, *Job) (Result, error) {
		return Result{}, nil
	})
	valid := Config{
		Stream:         "JOBS",
		Consumer:       "workers",
		BatchSize:      10,
		NumWorkers:     2,
		ProcessTimeout: time.Minute,
	}

	tests := []struct {
		name      string
		conn      *nats.Conn
		processor Processor
		config    Config
		logger    *zap.Logger
		wantMsg   string
	}{
		{"nil connection", nil, processor, valid, zap.NewNop(), "connection cannot be nil"},
		{"nil processor", &nats.Conn{}, nil, valid, zap.NewNop(), "processor cannot be nil"},
		{
			"empty stream", &nats.Conn{}, processor,
			Config{Consumer: "workers", BatchSize: 1, NumWorkers: 1, ProcessTimeout: time.Second},
			zap.NewNop(), "stream name cannot be empty",
		},
		{
			"empty consumer", &nats.Conn{}, processor,
			Config{Stream: "JOBS", BatchSize: 1, NumWorkers: 1, ProcessTimeout: time.Second},
			zap.NewNop(), "consumer name cannot be empty",
		},
		{
			"zero batch size", &nats.Conn{}, processor,
			Config{Stream: "JOBS", Consumer: "workers", NumWorkers: 1, ProcessTimeout: time.Second},
			zap.NewNop(), "batch size must be greater than 0",
		},
		{
			"zero workers", &nats.Conn{}, processor,
			Config{Stream: "JOBS", Consumer: "workers", BatchSize: 1, ProcessTimeout: time.Second},
			zap.NewNop(), "number of workers must be greater than 0",
		},
		{
			"zero timeout", &nats.Conn{}, processor,
			Config{Stream: "JOBS", Consumer: "workers", BatchSize: 1, NumWorkers: 1},
			zap.NewNop(), "process timeout must be greater than 0",
		},
		{"nil logger", &nats.Conn{}, processor, valid, nil, "logger cannot be nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(tt.conn, tt.processor, tt.config, tt.logger)
			if err == nil {
				t.Fatal("expected an error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func newTestRunner(processor Processor, publisher resultPublisher) *Runner {
	return &Runner{
		publisher: publisher,
		processor: processor,
		config: Config{
			Stream:         "JOBS",
			Consumer:       "workers",
			ResultSubject:  "JOBS.results",
			BatchSize:      1,
			NumWorkers:     1,
			ProcessTimeout: time.Minute,
		},
		logger: zap.NewNop(),
		tracer: otel.Tracer("daedalus/runner"),
	}
}

func TestProcessMessageSuccess(t *testing.T) {
	publisher := &fakePublisher{}
	processor := ProcessorFunc(func(_ context.Context, job *Job) (Result, error) {
		return Result{JobID: job.ID, Status: StatusSucceeded, Document: "<out/>"}, nil
	})
	runner := newTestRunner(processor, publisher)

	payload := `{"id":"j1","transformation":"mark","document":"<root/>"}`
	runner.processMessage(context.Background(), 0, &nats.Msg{Data: []byte(payload)})

	results := publisher.results(t)
	if len(results) != 1 {
		t.Fatalf("published %d results, want 1", len(results))
	}
	if results[0].JobID != "j1" || results[0].Status != StatusSucceeded {
		t.Errorf("result = %+v", results[0])
	}
	if publisher.subjects[0] != "JOBS.results" {
		t.Errorf("subject = %q, want JOBS.results", publisher.subjects[0])
	}
}

func TestProcessMessageFailure(t *testing.T) {
	publisher := &fakePublisher{}
	processor := ProcessorFunc(func(context.Context, *Job) (Result, error) {
		return Result{}, errors.New("boom")
	})
	runner := newTestRunner(processor, publisher)

	payload := `{"id":"j2","transformation":"mark","document":"<root/>"}`
	runner.processMessage(context.Background(), 0, &nats.Msg{Data: []byte(payload)})

	results := publisher.results(t)
	if len(results) != 1 {
		t.Fatalf("published %d results, want 1", len(results))
	}
	if results[0].Status != StatusFailed || results[0].Error != "boom" {
		t.Errorf("result = %+v", results[0])
	}
}

func TestProcessMessageMalformedJob(t *testing.T) {
	publisher := &fakePublisher{}
	processed := false
	processor := ProcessorFunc(func(context.Context, *Job) (Result, error) {
		processed = true
		return Result{}, nil
	})
	runner := newTestRunner(processor, publisher)

	runner.processMessage(context.Background(), 0, &nats.Msg{Data: []byte("not json")})

	if processed {
		t.Error("processor ran for a malformed job")
	}
	if len(publisher.results(t)) != 0 {
		t.Error("published a result for a malformed job")
	}
}
