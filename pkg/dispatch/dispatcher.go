// Package dispatch routes a model selection to its backend adapter and runs
// the full inference pipeline: token accounting before and after the call,
// bounded execution with progress reporting, and usage metering for billed
// providers.
//
// Failures are returned as typed errors; the caller owns retry, abort and
// shutdown policy. An error event is always broadcast first so observers can
// render the failure.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lumenlab/axon/pkg/catalog"
	"github.com/lumenlab/axon/pkg/events"
	"github.com/lumenlab/axon/pkg/executor"
	"github.com/lumenlab/axon/pkg/logging"
	"github.com/lumenlab/axon/pkg/meter"
	"github.com/lumenlab/axon/pkg/metrics"
	"github.com/lumenlab/axon/pkg/providers"
	"github.com/lumenlab/axon/pkg/state"
	"github.com/lumenlab/axon/pkg/tokens"
	"go.uber.org/zap"
)

// Dispatcher is the single entry point for inference. Construct once and
// share; safe for concurrent use.
type Dispatcher struct {
	catalog  *catalog.Catalog
	adapters map[catalog.Family]providers.Adapter
	exec     *executor.Executor
	meter    *meter.Meter
	counter  tokens.Counter
	store    *state.Store
	emitter  events.Emitter
	metrics  *metrics.Metrics
	logger   *logging.Logger

	timeout    time.Duration
	logPrompts bool

	mu    sync.RWMutex
	model string
}

// Params collects the dispatcher's dependencies.
type Params struct {
	Catalog  *catalog.Catalog
	Adapters map[catalog.Family]providers.Adapter
	Executor *executor.Executor
	Meter    *meter.Meter
	Counter  tokens.Counter
	Store    *state.Store
	Emitter  events.Emitter
	Metrics  *metrics.Metrics // optional
	Logger   *logging.Logger

	Timeout    time.Duration
	LogPrompts bool
	Model      string // initial model display name
}

// New creates a dispatcher.
func New(p Params) *Dispatcher {
	return &Dispatcher{
		catalog:    p.Catalog,
		adapters:   p.Adapters,
		exec:       p.Executor,
		meter:      p.Meter,
		counter:    p.Counter,
		store:      p.Store,
		emitter:    p.Emitter,
		metrics:    p.Metrics,
		logger:     p.Logger,
		timeout:    p.Timeout,
		logPrompts: p.LogPrompts,
		model:      p.Model,
	}
}

// SetModel selects the model display name used by subsequent calls.
func (d *Dispatcher) SetModel(displayName string) {
	d.mu.Lock()
	d.model = displayName
	d.mu.Unlock()
}

// Model returns the currently selected model display name.
func (d *Dispatcher) Model() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.model
}

// ListModels returns the full catalog for hosts that render a model picker.
func (d *Dispatcher) ListModels() map[catalog.Family][]catalog.Entry {
	return d.catalog.ListModels()
}

// RunInference routes the selected model to its adapter and executes one
// call under the configured timeout. The model is resolved before any
// accounting, so an unsupported model has no side effects beyond the
// returned error and the broadcast error event.
func (d *Dispatcher) RunInference(ctx context.Context, prompt, projectID string) (string, error) {
	requestID := uuid.NewString()
	log := d.logger.WithRequestID(requestID).WithProject(projectID)

	model := d.Model()
	family, modelID, ok := d.catalog.Resolve(model)
	if !ok {
		err := &UnsupportedModelError{Model: model}
		d.failed(log, "", model, err)
		return "", err
	}

	adapter, exists := d.adapters[family]
	if !exists || !adapter.Available() {
		err := &ProviderUnavailableError{Family: family}
		d.failed(log, string(family), model, err)
		return "", err
	}

	log.Debug("dispatching inference",
		zap.String("model", model),
		zap.String("family", string(family)),
		zap.String("model_id", modelID),
	)

	inputTokens := d.counter.Count(prompt)
	d.addUsage(log, projectID, inputTokens)

	metered := catalog.MeteredFamilies[family]
	if metered {
		log.Info("metered call input tokens", zap.Int("input_tokens", inputTokens))
	}

	response, elapsed, err := d.exec.Run(ctx, func() (string, error) {
		return adapter.Complete(ctx, modelID, prompt)
	}, d.timeout)
	if err != nil {
		d.failed(log, string(family), model, err)
		if d.metrics != nil {
			d.metrics.RecordRequest(string(family), modelID, "error", elapsed)
		}
		return "", fmt.Errorf("inference failed: %w", err)
	}

	outputTokens := d.counter.Count(response)
	var cost float64
	if metered {
		log.Info("metered call output tokens", zap.Int("output_tokens", outputTokens))
		d.meter.LogUsage(model, inputTokens, outputTokens, elapsed)
		cost = d.meter.Cost(model, inputTokens, outputTokens)
	}

	d.addUsage(log, projectID, outputTokens)

	if d.metrics != nil {
		d.metrics.RecordRequest(string(family), modelID, "success", elapsed)
		d.metrics.RecordTokens(string(family), modelID, inputTokens, outputTokens)
		if metered {
			d.metrics.RecordCost(string(family), modelID, d.meter.Rate(model).Currency, cost)
		}
	}

	if d.logPrompts {
		log.Debug("inference response", zap.String("model", model), zap.String("response", response))
	}
	log.LogInference(string(family), modelID, "success", elapsed,
		inputTokens+outputTokens, cost, requestID)

	return response, nil
}

// addUsage adds counted tokens to the project's cumulative usage and
// broadcasts the updated total. Accounting failures are logged and never
// fail the inference.
func (d *Dispatcher) addUsage(log *logging.Logger, projectID string, count int) {
	if err := d.store.AddTokenUsage(projectID, count); err != nil {
		log.Error("failed to update project token usage", zap.Error(err))
		return
	}
	total, err := d.store.GetLatestTokenUsage(projectID)
	if err != nil {
		log.Error("failed to read project token usage", zap.Error(err))
		return
	}
	d.emitter.Emit(events.TopicTokens, events.TokensPayload{TokenUsage: total})
}

// failed logs the error and broadcasts it before returning control, so an
// observing UI can render the failure regardless of what the caller does
// next.
func (d *Dispatcher) failed(log *logging.Logger, family, model string, err error) {
	log.Error("inference failed",
		zap.String("family", family),
		zap.String("model", model),
		zap.Error(err),
	)
	d.emitter.Emit(events.TopicInference, events.InferencePayload{
		Type:    "error",
		Message: err.Error(),
	})
}
