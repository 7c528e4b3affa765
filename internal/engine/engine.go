package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lumen/internal/config"
	"lumen/internal/convert"
	"lumen/internal/discovery"
	"lumen/internal/enrich"
	"lumen/internal/logging"
	"lumen/internal/provider"
	"lumen/internal/services"
	"lumen/internal/workspace"
)

// Engine drives a description job end to end: discovery, container
// expansion, enrichment, and provider dispatch, persisting the workspace
// document after every transition.
type Engine struct {
	workflow  config.Workflow
	prompt    config.Prompt
	store     *workspace.Store
	scanner   *discovery.Scanner
	converter *convert.Converter
	enricher  *enrich.Enricher
	registry  *provider.Registry
	options   map[string]provider.Options
	logger    *slog.Logger

	sleeper func(time.Duration)
}

// Option customizes the engine.
type Option func(*Engine)

// WithSleeper replaces the backoff sleep (used in tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(e *Engine) {
		e.sleeper = sleeper
	}
}

// WithProviderOptions supplies per-provider request options from config.
func WithProviderOptions(options map[string]provider.Options) Option {
	return func(e *Engine) {
		e.options = options
	}
}

// New assembles an engine. The store must already hold or be able to create
// the document; Run acquires nothing on its own.
func New(
	workflow config.Workflow,
	prompt config.Prompt,
	store *workspace.Store,
	scanner *discovery.Scanner,
	converter *convert.Converter,
	enricher *enrich.Enricher,
	registry *provider.Registry,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		workflow:  workflow,
		prompt:    prompt,
		store:     store,
		scanner:   scanner,
		converter: converter,
		enricher:  enricher,
		registry:  registry,
		logger:    logging.NewComponentLogger(logger, "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunOptions adjusts a single Run invocation.
type RunOptions struct {
	// RetryFailed re-enqueues failed items before dispatch.
	RetryFailed bool
}

// Run executes the job until all pending items are terminal or the context
// is canceled. Cancellation is cooperative: in-flight provider calls finish
// and are recorded, nothing new is dispatched, and the document is
// consistent on exit.
func (e *Engine) Run(ctx context.Context, opts RunOptions) error {
	ready, failed := e.registry.Available(ctx)
	for name, err := range failed {
		e.logger.Warn("provider unavailable",
			logging.String("provider", name),
			logging.Error(err))
	}
	if len(ready) == 0 {
		return services.Wrap(services.ErrConfiguration, "engine", "run",
			"no provider available", nil)
	}

	if err := e.mergeDiscovery(); err != nil {
		return err
	}
	if opts.RetryFailed {
		if err := e.store.Mutate(func(doc *workspace.Document) error {
			requeued := doc.RetryFailed()
			e.logger.Info("re-enqueued failed items", logging.Int("requeued", requeued))
			return nil
		}); err != nil {
			return err
		}
	}
	if err := e.expandContainers(ctx); err != nil {
		return err
	}

	return e.dispatch(ctx, ready)
}

// mergeDiscovery scans the tree and appends unseen items. Items whose source
// file has since disappeared stay in the document untouched.
func (e *Engine) mergeDiscovery() error {
	items, err := e.scanner.Scan()
	if err != nil {
		return err
	}
	return e.store.Mutate(func(doc *workspace.Document) error {
		added := 0
		for _, item := range items {
			if doc.Append(item) {
				added++
			}
		}
		e.logger.Info("merged discovery results",
			logging.Int("discovered", len(items)),
			logging.Int("added", added),
			logging.Int("total", doc.Len()))
		return nil
	})
}

// expandContainers converts pending HEIC and video items into describable
// derived items. A successfully expanded container is marked skipped: its
// derived items carry the description work.
func (e *Engine) expandContainers(ctx context.Context) error {
	var containers []*workspace.Item
	for _, item := range e.store.Document().Items() {
		if item.Status != workspace.StatusPending {
			continue
		}
		if item.Kind == workspace.KindHEIC || item.Kind == workspace.KindVideo {
			containers = append(containers, item)
		}
	}

	for _, container := range containers {
		if ctx.Err() != nil {
			return nil
		}

		e.enricher.Enrich(ctx, container)

		var derived []*workspace.Item
		var convErr error
		switch container.Kind {
		case workspace.KindHEIC:
			var jpeg *workspace.Item
			jpeg, convErr = e.converter.ConvertHEIC(ctx, container)
			if convErr == nil {
				derived = append(derived, jpeg)
			}
		case workspace.KindVideo:
			derived, convErr = e.converter.ExtractFrames(ctx, container)
		}

		// Derived stills inherit the container's capture metadata.
		for _, d := range derived {
			d.CapturedAt = container.CapturedAt
			d.CameraMake = container.CameraMake
			d.CameraModel = container.CameraModel
			d.Latitude = container.Latitude
			d.Longitude = container.Longitude
			d.Place = container.Place
		}

		containerID := container.ID
		if err := e.store.Mutate(func(doc *workspace.Document) error {
			item := doc.Item(containerID)
			if item == nil {
				return nil
			}
			if convErr != nil {
				item.Error = convErr.Error()
				item.SetStatus(workspace.StatusFailed)
				return nil
			}
			for _, d := range derived {
				doc.Append(d)
			}
			item.SetStatus(workspace.StatusSkipped)
			return nil
		}); err != nil {
			return err
		}
		if convErr != nil {
			e.logger.Warn("container expansion failed",
				logging.String("item_id", containerID),
				logging.Error(convErr))
		}
	}
	return nil
}

// dispatch feeds pending describable items to a bounded worker pool in
// discovery order.
func (e *Engine) dispatch(ctx context.Context, providers []provider.Provider) error {
	var pending []string
	for _, item := range e.store.Document().Items() {
		if item.Status == workspace.StatusPending && item.Describable() {
			pending = append(pending, item.ID)
		}
	}
	if len(pending) == 0 {
		e.logger.Info("nothing to describe")
		return nil
	}

	workers := e.workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(pending) {
		workers = len(pending)
	}
	e.logger.Info("dispatching items",
		logging.Int("pending", len(pending)),
		logging.Int("workers", workers))

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				e.processItem(ctx, id, providers)
			}
		}()
	}

feed:
	for _, id := range pending {
		select {
		case jobs <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		e.logger.Info("run canceled; document is consistent")
	}
	return nil
}

// processItem runs every available provider against one item. The processing
// transition is persisted before any provider call so a crash is visible in
// the document.
func (e *Engine) processItem(ctx context.Context, id string, providers []provider.Provider) {
	if ctx.Err() != nil {
		return
	}

	snapshot := e.store.Document().Item(id)
	if snapshot == nil || snapshot.Status != workspace.StatusPending {
		return
	}
	itemCtx := services.WithItemID(ctx, id)

	if err := e.store.UpdateItem(id, func(item *workspace.Item) {
		item.SetStatus(workspace.StatusProcessing)
	}); err != nil {
		e.logger.Error("persist processing transition",
			logging.String("item_id", id),
			logging.Error(err))
		return
	}

	local := *snapshot
	if local.CapturedAt == nil && local.Place == "" {
		e.enricher.Enrich(itemCtx, &local)
		if err := e.store.UpdateItem(id, func(item *workspace.Item) {
			item.CapturedAt = local.CapturedAt
			item.CameraMake = local.CameraMake
			item.CameraModel = local.CameraModel
			item.Latitude = local.Latitude
			item.Longitude = local.Longitude
			item.Place = local.Place
		}); err != nil {
			e.logger.Error("persist enrichment",
				logging.String("item_id", id),
				logging.Error(err))
		}
	}

	succeeded := false
	lastFailure := ""
	for _, prov := range providers {
		if itemCtx.Err() != nil {
			// Canceled between providers: hand the item back.
			e.revertToPending(id)
			return
		}
		ok, failure, err := e.describeWithRetry(itemCtx, prov, &local)
		if err != nil {
			// Context cancellation mid-attempt. The attempt that was in
			// flight has been recorded; the item goes back to pending.
			e.revertToPending(id)
			return
		}
		if ok {
			succeeded = true
		} else if failure != "" {
			lastFailure = failure
		}
	}

	finalErr := e.store.UpdateItem(id, func(item *workspace.Item) {
		if succeeded {
			item.Error = ""
			item.SetStatus(workspace.StatusCompleted)
		} else {
			item.Error = lastFailure
			item.SetStatus(workspace.StatusFailed)
		}
	})
	if finalErr != nil {
		e.logger.Error("persist final status",
			logging.String("item_id", id),
			logging.Error(finalErr))
	}
}

func (e *Engine) revertToPending(id string) {
	if err := e.store.UpdateItem(id, func(item *workspace.Item) {
		item.SetStatus(workspace.StatusPending)
	}); err != nil {
		e.logger.Error("revert item to pending",
			logging.String("item_id", id),
			logging.Error(err))
	}
}

// describeWithRetry spends the per-call retry budget on one provider.
// Every attempt, success or failure, is appended to the item as a record.
// The error return is non-nil only for context cancellation.
func (e *Engine) describeWithRetry(ctx context.Context, prov provider.Provider, item *workspace.Item) (bool, string, error) {
	attempts := e.workflow.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}
	promptText := provider.PromptText(e.prompt.Style, e.prompt.Text)
	callCtx := services.WithProvider(ctx, prov.Name())

	lastFailure := ""
	for attempt := 1; attempt <= attempts; attempt++ {
		result, failure, err := e.describeOnce(callCtx, prov, item, promptText)
		if err != nil {
			return false, lastFailure, err
		}
		if failure == nil {
			return true, "", nil
		}
		lastFailure = fmt.Sprintf("%s: %s", prov.Name(), failure.Error())

		if !failure.Kind.Retryable() || attempt == attempts {
			e.logger.Warn("describe failed",
				logging.String("item_id", item.ID),
				logging.String("provider", prov.Name()),
				logging.String("failure_kind", string(failure.Kind)),
				logging.Int("attempt", attempt),
				logging.String("model", result.Model))
			return false, lastFailure, nil
		}

		delay := e.backoffDelay(attempt)
		if failure.RetryAfter > delay {
			delay = failure.RetryAfter
		}
		e.logger.Debug("retrying after failure",
			logging.String("item_id", item.ID),
			logging.String("provider", prov.Name()),
			logging.String("failure_kind", string(failure.Kind)),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay))
		if err := e.sleep(callCtx, delay); err != nil {
			return false, lastFailure, err
		}
	}
	return false, lastFailure, nil
}

// describeOnce runs a single provider attempt and persists its record.
func (e *Engine) describeOnce(ctx context.Context, prov provider.Provider, item *workspace.Item, promptText string) (provider.DescribeResult, *provider.Failure, error) {
	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	if e.workflow.DescribeTimeoutSeconds > 0 {
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(e.workflow.DescribeTimeoutSeconds)*time.Second)
	}
	defer cancel()

	start := time.Now()
	result, err := prov.Describe(callCtx, provider.DescribeRequest{
		ImagePath: item.SourcePath,
		Prompt:    promptText,
		Options:   e.options[prov.Name()],
	})
	elapsed := time.Since(start)

	record := workspace.DescriptionRecord{
		Provider:         prov.Name(),
		Model:            result.Model,
		PromptStyle:      e.prompt.Style,
		Text:             result.Text,
		FinishReason:     result.FinishReason,
		TokensIn:         result.TokensIn,
		TokensOut:        result.TokensOut,
		ProcessingTimeMS: elapsed.Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}

	if err != nil {
		// Cancellation or malformed local state. Record it so the document
		// is a full history even of aborted attempts.
		record.Error = err.Error()
	} else if result.Failure != nil {
		record.Error = result.Failure.Error()
	}

	if persistErr := e.store.UpdateItem(item.ID, func(it *workspace.Item) {
		it.AddDescription(record)
	}); persistErr != nil {
		e.logger.Error("persist description record",
			logging.String("item_id", item.ID),
			logging.Error(persistErr))
	}

	if err != nil {
		if ctx.Err() != nil {
			return result, nil, ctx.Err()
		}
		// Local failure (unreadable image and the like) fails the item,
		// not the run.
		return result, &provider.Failure{Kind: provider.FailureBadRequest, Message: err.Error()}, nil
	}
	return result, result.Failure, nil
}

func (e *Engine) backoffDelay(attempt int) time.Duration {
	base := time.Duration(e.workflow.RetryBaseDelaySeconds) * time.Second
	maxDelay := time.Duration(e.workflow.RetryMaxDelaySeconds) * time.Second
	if base <= 0 {
		return 0
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func (e *Engine) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if e.sleeper != nil {
		e.sleeper(delay)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
