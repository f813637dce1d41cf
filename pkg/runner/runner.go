// Package runner pulls transformation jobs from a NATS JetStream consumer
// and processes them concurrently with a worker pool. Results are published
// to a result subject and failures are reported to Sentry when enabled.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultMaxDeliver = 5
	pullWait          = 2 * time.Second
)

// resultPublisher is the slice of nats.JetStreamContext the runner needs to
// report results.
type resultPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Config holds the stream and concurrency settings for a Runner.
type Config struct {
	// Stream is the JetStream stream holding job messages.
	Stream string

	// Consumer is the durable consumer name.
	Consumer string

	// ResultSubject receives result payloads. Defaults to "<stream>.results".
	ResultSubject string

	// BatchSize is how many jobs to pull per fetch.
	BatchSize int

	// NumWorkers is the number of processing goroutines.
	NumWorkers int

	// ProcessTimeout bounds the processing of a single job.
	ProcessTimeout time.Duration

	// MaxDeliver caps redelivery attempts before a job is dead-lettered.
	MaxDeliver int
}

// Runner manages concurrent job processing from a NATS JetStream consumer.
// It pulls jobs in batches and distributes them to worker goroutines.
type Runner struct {
	conn      *nats.Conn
	js        nats.JetStreamContext
	publisher resultPublisher
	processor Processor
	config    Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewRunner creates a Runner on an already connected NATS connection. The
// stream and durable consumer are created when missing.
func NewRunner(conn *nats.Conn, processor Processor, config Config, logger *zap.Logger) (*Runner, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if processor == nil {
		return nil, errors.New("processor cannot be nil")
	}
	if config.Stream == "" {
		return nil, errors.New("stream name cannot be empty")
	}
	if config.Consumer == "" {
		return nil, errors.New("consumer name cannot be empty")
	}
	if config.BatchSize <= 0 {
		return nil, errors.New("batch size must be greater than 0")
	}
	if config.NumWorkers <= 0 {
		return nil, errors.New("number of workers must be greater than 0")
	}
	if config.ProcessTimeout <= 0 {
		return nil, errors.New("process timeout must be greater than 0")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if config.ResultSubject == "" {
		config.ResultSubject = config.Stream + ".results"
	}
	if config.MaxDeliver <= 0 {
		config.MaxDeliver = defaultMaxDeliver
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	if err := ensureStream(js, config.Stream, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure stream %q exists: %w", config.Stream, err)
	}
	if err := ensureConsumer(js, config, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure consumer %q exists: %w", config.Consumer, err)
	}

	return &Runner{
		conn:      conn,
		js:        js,
		publisher: js,
		processor: processor,
		config:    config,
		logger:    logger,
		tracer:    otel.Tracer("daedalus/runner"),
	}, nil
}

// ensureStream creates the job stream if it doesn't exist.
func ensureStream(js nats.JetStreamContext, streamName string, logger *zap.Logger) error {
	info, err := js.StreamInfo(streamName)
	if err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("failed to get stream info for %q: %w", streamName, err)
		}

		logger.Info("Creating JetStream stream", zap.String("stream", streamName))
		streamConfig := &nats.StreamConfig{
			Name:     streamName,
			Subjects: []string{fmt.Sprintf("%s.*", streamName)},
			Storage:  nats.FileStorage,
			MaxAge:   24 * time.Hour,
			MaxMsgs:  100000,
			Replicas: 1,
		}
		if _, err := js.AddStream(streamConfig); err != nil {
			return fmt.Errorf("failed to create stream %q: %w", streamName, err)
		}

		logger.Info("Created JetStream stream",
			zap.String("stream", streamName),
			zap.Strings("subjects", streamConfig.Subjects),
			zap.Duration("max_age", streamConfig.MaxAge))
		return nil
	}

	logger.Info("JetStream stream already exists",
		zap.String("stream", streamName),
		zap.Uint64("messages", info.State.Msgs),
		zap.Int("consumers", info.State.Consumers))
	return nil
}

// ensureConsumer creates the durable pull consumer if it doesn't exist.
func ensureConsumer(js nats.JetStreamContext, config Config, logger *zap.Logger) error {
	_, err := js.ConsumerInfo(config.Stream, config.Consumer)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("failed to get consumer info for %q: %w", config.Consumer, err)
	}

	logger.Info("Creating JetStream consumer",
		zap.String("stream", config.Stream),
		zap.String("consumer", config.Consumer))

	_, err = js.AddConsumer(config.Stream, &nats.ConsumerConfig{
		Durable:       config.Consumer,
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       2 * config.ProcessTimeout,
		MaxDeliver:    config.MaxDeliver,
		FilterSubject: fmt.Sprintf("%s.jobs", config.Stream),
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %q: %w", config.Consumer, err)
	}
	return nil
}

// Run starts the job processing pipeline. It spawns worker goroutines and
// pulls jobs from the configured consumer until the context is cancelled,
// then waits for in-flight jobs to finish.
func (r *Runner) Run(ctx context.Context) error {
	sub, err := r.js.PullSubscribe("", r.config.Consumer, nats.Bind(r.config.Stream, r.config.Consumer))
	if err != nil {
		return fmt.Errorf("failed to subscribe to consumer %q: %w", r.config.Consumer, err)
	}
	defer sub.Unsubscribe()

	messageChan := make(chan *nats.Msg, r.config.BatchSize)

	var wg sync.WaitGroup
	for i := 0; i < r.config.NumWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r.worker(ctx, workerID, messageChan)
		}(i)
	}

	go func() {
		defer close(messageChan)

		backoffDelay := 100 * time.Millisecond
		maxBackoff := 5 * time.Second

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Shutting down job puller")
				return
			default:
			}

			messages, err := sub.Fetch(r.config.BatchSize, nats.MaxWait(pullWait))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, nats.ErrTimeout) {
					// No jobs available, keep polling.
					continue
				}
				r.logger.Error("Error pulling jobs", zap.Error(err))
				select {
				case <-time.After(backoffDelay):
				case <-ctx.Done():
					return
				}
				if backoffDelay < maxBackoff {
					backoffDelay *= 2
				}
				continue
			}
			backoffDelay = 100 * time.Millisecond

			for _, msg := range messages {
				select {
				case messageChan <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	select {
	case <-done:
		r.logger.Info("Runner completed")
		return nil
	case <-ctx.Done():
		r.logger.Info("Runner stopping, waiting for in-flight jobs")
		<-done
		return ctx.Err()
	}
}

func (r *Runner) worker(ctx context.Context, workerID int, messageChan <-chan *nats.Msg) {
	r.logger.Info("Worker started", zap.Int("worker_id", workerID))
	defer r.logger.Info("Worker stopped", zap.Int("worker_id", workerID))

	for msg := range messageChan {
		r.processMessage(ctx, workerID, msg)
	}
}

// processMessage decodes and processes one job message, publishes its result,
// and acknowledges the message.
func (r *Runner) processMessage(ctx context.Context, workerID int, msg *nats.Msg) {
	job, err := DecodeJob(msg.Data)
	if err != nil {
		r.logger.Error("Rejecting malformed job",
			zap.Int("worker_id", workerID),
			zap.Error(err))
		// Redelivery cannot fix a malformed payload.
		if termErr := msg.Term(); termErr != nil {
			r.logger.Error("Error terminating malformed job", zap.Error(termErr))
		}
		return
	}

	ctx, span := r.tracer.Start(ctx, "runner.processMessage",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.id", job.ID),
			attribute.String("job.transformation", job.Transformation),
			attribute.String("stream", r.config.Stream),
			attribute.String("consumer", r.config.Consumer),
		))
	defer span.End()

	select {
	case <-ctx.Done():
		span.SetStatus(codes.Error, "Context cancelled before processing")
		if nakErr := msg.Nak(); nakErr != nil {
			r.logger.Error("Error naking job on shutdown", zap.Error(nakErr))
		}
		return
	default:
	}

	processCtx, cancel := context.WithTimeout(ctx, r.config.ProcessTimeout)
	defer cancel()

	start := time.Now()
	r.logger.Info("Processing job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID),
		zap.String("transformation", job.Transformation))

	result, processErr := r.processor.Process(processCtx, job)
	duration := time.Since(start)
	span.SetAttributes(attribute.Int64("processing.duration_ms", duration.Milliseconds()))

	if processErr != nil {
		span.RecordError(processErr)
		span.SetStatus(codes.Error, processErr.Error())
		r.captureError(processErr, job)

		r.logger.Error("Job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID),
			zap.Duration("duration", duration),
			zap.Error(processErr))

		r.publishResult(Result{
			JobID:      job.ID,
			Status:     StatusFailed,
			Error:      processErr.Error(),
			ErrorCode:  ErrorCode(processErr),
			DurationMs: duration.Milliseconds(),
		})

		if nakErr := msg.Nak(); nakErr != nil {
			r.logger.Error("Error naking failed job", zap.Error(nakErr))
		}
		return
	}

	span.SetStatus(codes.Ok, "Job processed successfully")
	r.logger.Info("Job succeeded",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID),
		zap.Duration("duration", duration))

	r.publishResult(result)

	if ackErr := msg.Ack(); ackErr != nil {
		r.logger.Error("Error acking processed job", zap.Error(ackErr))
	}
}

func (r *Runner) publishResult(result Result) {
	data, err := json.Marshal(result)
	if err != nil {
		r.logger.Error("Failed to serialize result",
			zap.String("job_id", result.JobID),
			zap.Error(err))
		return
	}
	if _, err := r.publisher.Publish(r.config.ResultSubject, data); err != nil {
		r.logger.Error("Failed to publish result",
			zap.String("job_id", result.JobID),
			zap.String("subject", r.config.ResultSubject),
			zap.Error(err))
	}
}

// captureError reports a job failure to Sentry when a client is configured.
func (r *Runner) captureError(err error, job *Job) {
	hub := sentry.CurrentHub()
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("job_id", job.ID)
		scope.SetTag("error_code", ErrorCode(err))
		if job.Transformation != "" {
			scope.SetTag("transformation", job.Transformation)
		}
		hub.CaptureException(err)
	})
}
