package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var (
	ErrMalformedBatch  = errors.New("malformed notification batch")
	ErrMalformedRecord = errors.New("malformed notification record")
)

const tracerName = "github.com/krelinga/vod-trigger/internal"

// Router sends every qualifying record of a batch through
// filter -> params -> signer -> dispatcher.
type Router struct {
	cfg        *Config
	signer     *Signer
	dispatcher Dispatcher
	logger     *zap.Logger
	metrics    *Metrics

	now   func() time.Time
	nonce func() int
}

type RouterOption func(*Router)

// WithClock replaces time.Now for the Timestamp parameter.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// WithNonce replaces RandomNonce for the Nonce parameter.
func WithNonce(nonce func() int) RouterOption {
	return func(r *Router) { r.nonce = nonce }
}

func WithMetrics(m *Metrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

func NewRouter(cfg *Config, signer *Signer, dispatcher Dispatcher, logger *zap.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		cfg:        cfg,
		signer:     signer,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
		nonce:      RandomNonce,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle processes the records of batch in order. It never fails: every
// problem ends up in the log and the remaining records are still handled.
func (r *Router) Handle(ctx context.Context, batch *Batch) {
	r.HandleWithLogger(ctx, batch, r.logger)
}

// HandleWithLogger is Handle with a request scoped logger.
func (r *Router) HandleWithLogger(ctx context.Context, batch *Batch, logger *zap.Logger) {
	if batch == nil || batch.Records == nil {
		logger.Error("dropping notification batch", zap.Error(ErrMalformedBatch))
		return
	}
	logger.Info("received storage notification", zap.Int("records", len(batch.Records)))

	for i := range batch.Records {
		r.handleRecord(ctx, &batch.Records[i], logger.With(zap.Int("record", i)))
	}
}

func (r *Router) handleRecord(ctx context.Context, record *Record, logger *zap.Logger) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "handle_record")
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			r.metrics.record(ResultMalformed)
			logger.Error("panic while handling record", zap.Any("panic", p), zap.Stack("stack"))
			span.SetStatus(codes.Error, "panic")
		}
	}()

	if err := record.DecodeErr(); err != nil {
		r.metrics.record(ResultMalformed)
		logger.Error("skipping record", zap.Error(err))
		return
	}

	if record.COS == nil {
		r.metrics.record(ResultMalformed)
		logger.Error("skipping record", zap.Error(fmt.Errorf("%w: missing cos section", ErrMalformedRecord)))
		return
	}

	bucket := record.COS.Bucket.Name
	objectKey := record.COS.Object.Key
	logger = logger.With(zap.String("bucket", bucket), zap.String("key", objectKey))
	span.SetAttributes(
		attribute.String("cos.bucket", bucket),
		attribute.String("cos.key", objectKey),
	)

	if bucket == r.cfg.outputBucket() {
		r.metrics.record(ResultSameBucket)
		logger.Error("input bucket must differ from output bucket, skipping record")
		return
	}

	if !record.IsObjectCreated() {
		r.metrics.record(ResultNotCreated)
		return
	}
	logger.Info("detected object upload", zap.String("event", record.EventName()))

	if !IsEligible(record) {
		r.metrics.record(ResultIneligible)
		logger.Debug("ignoring non-video object")
		return
	}

	if err := r.cfg.CheckTranscode(); err != nil {
		r.metrics.record(ResultConfigError)
		logger.Error("invalid transcode configuration, skipping record", zap.Error(err))
		return
	}

	params, err := BuildParams(record, r.cfg, r.now(), r.nonce())
	if err != nil {
		r.metrics.record(ResultMalformed)
		logger.Error("failed to build transcode parameters", zap.Error(err))
		return
	}
	logger.Debug("built transcode parameters", zap.Any("params", map[string]any(params)))

	signedURL := r.signer.Sign(params, r.secretKey())

	resp, err := r.dispatcher.Dispatch(ctx, signedURL)
	if err != nil {
		r.metrics.record(ResultFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		logger.Error("transcode request was not accepted", zap.Error(err))
		return
	}

	r.metrics.record(ResultDispatched)
	span.SetAttributes(attribute.String("vod.task_id", resp.VodTaskID))
	logger.Info("transcode request accepted",
		zap.Int("code", resp.Code),
		zap.String("codeDesc", resp.CodeDesc),
		zap.String("vodTaskId", resp.VodTaskID),
	)
}

func (r *Router) secretKey() string {
	if r.cfg.Credentials == nil {
		return ""
	}
	return r.cfg.Credentials.SecretKey
}
