// internal/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"trendmint/internal/common/config"
	"trendmint/internal/common/errors"
	"trendmint/internal/common/logger"
	"trendmint/internal/common/metrics"
	"trendmint/internal/ledger"
	"trendmint/internal/models"
	"trendmint/internal/originality"
	"trendmint/internal/platform"
	"trendmint/internal/pricing"
)

// ComplianceGate decides whether an asset is original enough to publish.
type ComplianceGate interface {
	Verify(ctx context.Context, filePath string) (*originality.Verdict, error)
}

// TrademarkChecker screens keywords against registered marks.
type TrademarkChecker interface {
	Check(ctx context.Context, keyword string) ([]originality.TrademarkMatch, error)
}

// Quoter derives a price for one keyword.
type Quoter interface {
	Quote(ctx context.Context, keyword string, searchVolume, maxSearchVolume int) pricing.PriceQuote
}

// Target is one enabled publication destination.
type Target struct {
	Name       string
	Adapter    platform.Adapter
	Multiplier float64
}

// Deps collects the orchestrator's collaborators.
type Deps struct {
	Gate      ComplianceGate
	Trademark TrademarkChecker
	Pricer    Quoter
	Registry  *platform.Registry
	Platforms map[string]config.PlatformConfig
	Ledger    ledger.Ledger
	Logger    logger.Logger
}

// Orchestrator drives candidates through verification, pricing and
// concurrent per-target publication. Candidates are isolated: one
// candidate's failure never affects its batch siblings, and one
// target's failure never affects the same candidate's other targets.
type Orchestrator struct {
	cfg           config.PipelineConfig
	gate          ComplianceGate
	trademark     TrademarkChecker
	pricer        Quoter
	targets       []Target
	audit         ledger.Ledger
	logger        logger.Logger
	retryDelay    time.Duration
	uploadTimeout time.Duration
}

func New(cfg config.PipelineConfig, deps Deps) (*Orchestrator, error) {
	var targets []Target
	for name, pcfg := range deps.Platforms {
		if !pcfg.Enabled {
			continue
		}
		adapter, err := deps.Registry.Resolve(name)
		if err != nil {
			return nil, err
		}
		multiplier := pcfg.PriceMultiplier
		if multiplier <= 0 {
			multiplier = 1.0
		}
		targets = append(targets, Target{Name: name, Adapter: adapter, Multiplier: multiplier})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no enabled publication targets")
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Name < targets[j].Name })

	return &Orchestrator{
		cfg:           cfg,
		gate:          deps.Gate,
		trademark:     deps.Trademark,
		pricer:        deps.Pricer,
		targets:       targets,
		audit:         deps.Ledger,
		logger:        deps.Logger.WithFields(map[string]interface{}{"component": "orchestrator"}),
		retryDelay:    config.GetDuration(cfg.RetryDelay),
		uploadTimeout: config.GetDuration(cfg.UploadTimeout),
	}, nil
}

// Targets returns the enabled target names in dispatch order.
func (o *Orchestrator) Targets() []string {
	names := make([]string, len(o.targets))
	for i, t := range o.targets {
		names[i] = t.Name
	}
	return names
}

// Run processes a batch. At most MaxInFlight candidates run
// concurrently. Cancelling ctx stops dequeuing new candidates but lets
// in-flight work finish; a ledger write failure aborts the run and is
// returned to the caller.
func (o *Orchestrator) Run(ctx context.Context, candidates []models.AssetCandidate) ([]Outcome, error) {
	maxSearchVolume := 0
	for _, cand := range candidates {
		if cand.SearchVolume > maxSearchVolume {
			maxSearchVolume = cand.SearchVolume
		}
	}

	// workCtx survives a graceful stop so in-flight candidates can
	// finish; it is cancelled only on a fatal ledger failure.
	workCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	defer abort()

	var fatalMu sync.Mutex
	var fatalErr error
	onFatal := func(err error) {
		fatalMu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		fatalMu.Unlock()
		abort()
	}

	sem := make(chan struct{}, o.cfg.MaxInFlight)
	outcomes := make([]Outcome, len(candidates))
	var wg sync.WaitGroup

	for i, cand := range candidates {
		if ctx.Err() != nil || workCtx.Err() != nil {
			outcomes[i] = Outcome{Candidate: cand, State: StatePending, Reason: "run stopped before dequeue"}
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			outcomes[i] = Outcome{Candidate: cand, State: StatePending, Reason: "run stopped before dequeue"}
			continue
		case <-workCtx.Done():
			outcomes[i] = Outcome{Candidate: cand, State: StatePending, Reason: "run aborted"}
			continue
		}

		wg.Add(1)
		go func(i int, cand models.AssetCandidate) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = o.processCandidate(workCtx, cand, maxSearchVolume, onFatal)
		}(i, cand)
	}
	wg.Wait()

	fatalMu.Lock()
	defer fatalMu.Unlock()
	return outcomes, fatalErr
}

func (o *Orchestrator) processCandidate(ctx context.Context, cand models.AssetCandidate, maxSearchVolume int, onFatal func(error)) Outcome {
	metrics.CandidatesInFlight.Inc()
	defer metrics.CandidatesInFlight.Dec()
	started := time.Now()
	defer func() { metrics.CandidateDuration.Observe(time.Since(started).Seconds()) }()

	out := Outcome{Candidate: cand, State: StateVerifying}
	log := o.logger.WithFields(map[string]interface{}{
		"keyword": cand.Keyword,
		"version": cand.Version,
	})

	if err := cand.Validate(); err != nil {
		if o.append(ledger.Record{
			Type:    ledger.RecordInvalidRow,
			Keyword: cand.Keyword,
			Payload: map[string]interface{}{"version": cand.Version, "details": err.Error()},
		}, onFatal) != nil {
			out.State = StateFailed
			out.Reason = "ledger unavailable"
			return out
		}
		log.Warn("candidate failed validation", map[string]interface{}{"error": err.Error()})
		out.State = StateRejected
		out.Reason = err.Error()
		return out
	}

	if rejected, failed := o.screenTrademark(ctx, cand, log, &out, onFatal); rejected || failed {
		return out
	}

	verdict, err := o.verifyOriginality(ctx, cand)
	if err != nil {
		if o.append(ledger.Record{
			Type:    ledger.RecordFailed,
			Keyword: cand.Keyword,
			Payload: map[string]interface{}{
				"version":   cand.Version,
				"stage":     "verification",
				"errorCode": string(errors.CodeOf(err)),
				"details":   err.Error(),
			},
		}, onFatal) != nil {
			out.Reason = "ledger unavailable"
		} else {
			out.Reason = err.Error()
		}
		log.WithError(err).Error("originality verification failed", nil)
		out.State = StateFailed
		return out
	}

	if !verdict.IsOriginal {
		metrics.ComplianceRejections.WithLabelValues("originality").Inc()
		if o.append(ledger.Record{
			Type:    ledger.RecordPotentialInfringement,
			Keyword: cand.Keyword,
			Payload: map[string]interface{}{"version": cand.Version, "matches": verdict.Matches},
		}, onFatal) != nil {
			out.State = StateFailed
			out.Reason = "ledger unavailable"
			return out
		}
		log.Warn("candidate rejected by originality gate", map[string]interface{}{
			"matches": len(verdict.Matches),
		})
		out.State = StateRejected
		out.Reason = "potential infringement"
		for _, t := range o.targets {
			out.Targets = append(out.Targets, TargetResult{Target: t.Name, State: StateRejected})
		}
		return out
	}

	out.State = StatePricing
	quote := o.pricer.Quote(ctx, cand.Keyword, cand.SearchVolume, maxSearchVolume)
	out.Quote = &quote

	out.State = StatePublishing
	results := make([]TargetResult, len(o.targets))
	var wg sync.WaitGroup
	for i, t := range o.targets {
		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			results[i] = o.publishTarget(ctx, cand, quote, t, onFatal)
		}(i, t)
	}
	wg.Wait()
	out.Targets = results

	out.State = StatePublished
	for _, res := range results {
		if res.State != StatePublished {
			out.State = StateFailed
			out.Reason = fmt.Sprintf("target %s: %s", res.Target, res.Err)
			break
		}
	}
	return out
}

// screenTrademark runs the keyword trademark screen when configured.
// Returns (rejected, failed); either stops the candidate.
func (o *Orchestrator) screenTrademark(ctx context.Context, cand models.AssetCandidate, log logger.Logger, out *Outcome, onFatal func(error)) (bool, bool) {
	if o.trademark == nil {
		return false, false
	}

	var marks []originality.TrademarkMatch
	err := o.withRetry(ctx, func(ctx context.Context) error {
		found, err := o.trademark.Check(ctx, cand.Keyword)
		if err == nil {
			marks = found
		}
		return err
	})
	if err != nil {
		o.append(ledger.Record{
			Type:    ledger.RecordFailed,
			Keyword: cand.Keyword,
			Payload: map[string]interface{}{
				"version":   cand.Version,
				"stage":     "trademark",
				"errorCode": string(errors.CodeOf(err)),
				"details":   err.Error(),
			},
		}, onFatal)
		log.WithError(err).Error("trademark screen failed", nil)
		out.State = StateFailed
		out.Reason = err.Error()
		return false, true
	}
	if len(marks) == 0 {
		return false, false
	}

	metrics.ComplianceRejections.WithLabelValues("trademark").Inc()
	if o.append(ledger.Record{
		Type:    ledger.RecordTrademarkBlock,
		Keyword: cand.Keyword,
		Payload: map[string]interface{}{"version": cand.Version, "marks": marks},
	}, onFatal) != nil {
		out.State = StateFailed
		out.Reason = "ledger unavailable"
		return false, true
	}
	log.Warn("candidate blocked by trademark screen", map[string]interface{}{
		"marks": len(marks),
	})
	out.State = StateRejected
	out.Reason = "trademark conflict"
	return true, false
}

// verifyOriginality runs the gate, retrying service outages within the
// attempt budget. A genuine non-original verdict is not an error.
func (o *Orchestrator) verifyOriginality(ctx context.Context, cand models.AssetCandidate) (*originality.Verdict, error) {
	var verdict *originality.Verdict
	err := o.withRetry(ctx, func(ctx context.Context) error {
		v, err := o.gate.Verify(ctx, cand.FilePath)
		if err == nil {
			verdict = v
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return verdict, nil
}

// withRetry runs fn up to MaxAttempts times, sleeping retryDelay between
// retryable failures. Terminal errors and context cancellation stop the
// loop immediately.
func (o *Orchestrator) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil || !errors.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt < o.cfg.MaxAttempts {
			if sleepCtx(ctx, o.retryDelay) != nil {
				return lastErr
			}
		}
	}
	return lastErr
}

func (o *Orchestrator) publishTarget(ctx context.Context, cand models.AssetCandidate, quote pricing.PriceQuote, t Target, onFatal func(error)) TargetResult {
	res := TargetResult{Target: t.Name, State: StatePublishing}
	log := o.logger.WithFields(map[string]interface{}{
		"keyword": cand.Keyword,
		"version": cand.Version,
		"target":  t.Name,
	})

	if o.audit.HasPublished(cand.Keyword, cand.Version, t.Name) {
		log.Info("already published, skipping", nil)
		res.State = StatePublished
		res.Skipped = true
		return res
	}

	targetQuote := quote.ForTarget(t.Multiplier)
	meta := buildMetadata(cand)

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt
		metrics.PublishAttempts.WithLabelValues(t.Name).Inc()

		uploadCtx, cancel := context.WithTimeout(ctx, o.uploadTimeout)
		ref, err := t.Adapter.Upload(uploadCtx, cand, targetQuote, meta)
		cancel()

		if err == nil {
			if o.append(ledger.Record{
				Type:    ledger.RecordPublished,
				Keyword: cand.Keyword,
				Payload: map[string]interface{}{
					"version":     cand.Version,
					"target":      t.Name,
					"platformRef": ref.AssetID,
					"price":       targetQuote.Amount,
				},
			}, onFatal) != nil {
				res.State = StateFailed
				res.Err = "ledger unavailable"
				return res
			}
			log.Info("published", map[string]interface{}{
				"assetId":  ref.AssetID,
				"price":    targetQuote.Amount,
				"attempts": attempt,
			})
			res.State = StatePublished
			res.Ref = ref
			return res
		}

		lastErr = err
		if !errors.IsRetryable(err) {
			break
		}
		if attempt < o.cfg.MaxAttempts {
			res.State = StateRetryWait
			metrics.PublishRetries.WithLabelValues(t.Name).Inc()
			log.Warn("upload failed, retrying", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			if sleepCtx(ctx, o.retryDelay) != nil {
				break
			}
			res.State = StatePublishing
		}
	}

	code := errors.CodeOf(lastErr)
	metrics.PublishFailures.WithLabelValues(t.Name, string(code)).Inc()

	recType := ledger.RecordStockError
	if t.Adapter.Kind() == platform.KindNFT {
		recType = ledger.RecordMintError
	}
	o.append(ledger.Record{
		Type:    recType,
		Keyword: cand.Keyword,
		Payload: map[string]interface{}{
			"version":   cand.Version,
			"target":    t.Name,
			"attempts":  res.Attempts,
			"errorCode": string(code),
			"details":   lastErr.Error(),
		},
	}, onFatal)
	log.WithError(lastErr).Error("publication failed", map[string]interface{}{
		"attempts": res.Attempts,
	})

	res.State = StateFailed
	res.Err = lastErr.Error()
	return res
}

// append writes an audit record, escalating any failure as fatal.
func (o *Orchestrator) append(rec ledger.Record, onFatal func(error)) error {
	if err := o.audit.Append(rec); err != nil {
		o.logger.WithError(err).Error("audit ledger append failed", map[string]interface{}{
			"recordType": string(rec.Type),
			"keyword":    rec.Keyword,
		})
		onFatal(err)
		return err
	}
	return nil
}

func buildMetadata(cand models.AssetCandidate) platform.Metadata {
	keywords := append(strings.Fields(strings.ToLower(cand.Keyword)), "ai", "generated", "art")
	return platform.Metadata{
		Title:       fmt.Sprintf("%s, AI Artwork v%d", cand.Keyword, cand.Version),
		Description: fmt.Sprintf("AI generated artwork inspired by the trending topic %q.", cand.Keyword),
		Keywords:    keywords,
		Categories:  []string{"digital-art"},
		License:     "enhanced",
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
