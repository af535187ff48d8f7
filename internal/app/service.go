// Package service wires the allocation engine: intake loop, escalation
// state machine, council lifecycle, and the query surface for the outer
// layer.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/xbard-C42/resource-council/internal/adapters/audit"
	"github.com/xbard-C42/resource-council/internal/adapters/mq/intake"
	"github.com/xbard-C42/resource-council/internal/adapters/transport"
	"github.com/xbard-C42/resource-council/internal/domain/council"
	"github.com/xbard-C42/resource-council/internal/domain/execute"
	"github.com/xbard-C42/resource-council/internal/domain/ledger"
	"github.com/xbard-C42/resource-council/internal/domain/model"
	"github.com/xbard-C42/resource-council/internal/domain/trust"
	"github.com/xbard-C42/resource-council/pkg/logger"
	"github.com/xbard-C42/resource-council/pkg/metrics"
)

// State labels the escalation controller phase.
type State string

// Escalation controller states.
const (
	StateIdle           State = "idle"
	StateEvaluating     State = "evaluating"
	StateExecuting      State = "executing"
	StateCouncilPending State = "council_pending"
)

// Default engine policy; overridable via options.
const (
	defaultEngineID            = "allocation_engine"
	defaultConfidenceThreshold = 0.7
	defaultConcentrationLimit  = 0.3
	defaultQuorum              = 3
	defaultCouncilDeadline     = 30 * time.Second
	defaultInsightWeight       = 0.7
	defaultMinWhisperTrust     = 0.4
	defaultTrustTokenTTL       = 10 * time.Minute
	defaultHistoryLimit        = 256
	defaultQueueSize           = 4096
	trustDecayInterval         = time.Minute
)

// Service is the resource allocation and council escalation engine.
//
// A single goroutine drains the intake queue and drives every evaluation,
// which is what guarantees at most one evaluation in flight: messages that
// arrive mid-cycle land in the ledger on the next loop turn, they never
// spawn a parallel run.
type Service struct {
	mu sync.RWMutex

	// Core components
	ledger     *ledger.Ledger
	queue      *intake.Queue
	bus        transport.Transport
	trustStore *trust.Store
	auditLog   *audit.Log
	executor   *execute.Executor

	// Policy
	engineID            string
	confidenceThreshold float64
	concentrationLimit  float64
	quorum              int
	councilDeadline     time.Duration
	insightWeight       float64
	minWhisperTrust     float64
	trustTokenTTL       time.Duration
	historyLimit        int
	queueSize           int

	// Escalation state, owned by the run loop
	state          State
	session        *council.Session
	councilTimer   *time.Timer
	pendingEval    bool
	totalAllocated float64
	history        []model.AllocationEvent

	// Lifecycle
	started bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	log logger.Logger
	now func() time.Time
}

// New constructs an engine with default policy. A transport must be
// provided via WithTransport before Start.
func New(opts ...Option) *Service {
	s := &Service{
		engineID:            defaultEngineID,
		confidenceThreshold: defaultConfidenceThreshold,
		concentrationLimit:  defaultConcentrationLimit,
		quorum:              defaultQuorum,
		councilDeadline:     defaultCouncilDeadline,
		insightWeight:       defaultInsightWeight,
		minWhisperTrust:     defaultMinWhisperTrust,
		trustTokenTTL:       defaultTrustTokenTTL,
		historyLimit:        defaultHistoryLimit,
		queueSize:           defaultQueueSize,
		state:               StateIdle,
		stopCh:              make(chan struct{}),
		doneCh:              make(chan struct{}),
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes components, subscribes to the inbound topics, and
// launches the intake loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.bus == nil {
		return ErrNoTransport
	}
	if s.log == nil {
		s.log = logger.Get().Named("engine")
	}

	s.ledger = ledger.New(ledger.WithConcentrationLimit(s.concentrationLimit))
	s.queue = intake.NewQueue(intake.WithCapacity(s.queueSize))
	if s.trustStore == nil {
		s.trustStore = trust.NewStore(trust.WithTokenTTL(s.trustTokenTTL))
	}
	s.auditLog = audit.NewLog()
	s.executor = execute.NewExecutor(s.ledger, s.bus, s.auditLog,
		execute.WithEngineID(s.engineID),
		execute.WithLogger(s.log.Named("execute")),
	)

	s.bus.Register(s.engineID, "resource_allocation", "council_escalation")
	if err := s.subscribe(); err != nil {
		return err
	}

	go s.run(ctx)

	s.started = true
	s.log.Info(ctx, "allocation engine started",
		logger.String("engine_id", s.engineID),
		logger.Float64("confidence_threshold", s.confidenceThreshold),
		logger.Int("council_quorum", s.quorum),
		logger.Duration("council_deadline", s.councilDeadline),
	)
	return nil
}

// Stop shuts the engine down and waits for the intake loop to drain.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	_ = s.queue.Close()
	close(s.stopCh)
	<-s.doneCh
	s.log.Info(context.Background(), "allocation engine stopped")
}

// subscribe attaches the engine to every inbound topic; each handler just
// repacks the payload for the intake queue.
func (s *Service) subscribe() error {
	subs := []struct {
		topic string
		wrap  func(payload any) (intake.Message, bool)
	}{
		{model.TopicOfferCapacity, func(p any) (intake.Message, bool) {
			o, ok := p.(model.CapacityOffer)
			return intake.Offer(o), ok
		}},
		{model.TopicRegisterNeed, func(p any) (intake.Message, bool) {
			n, ok := p.(model.NeedRegistration)
			return intake.Need(n), ok
		}},
		{model.TopicPreferenceUpdate, func(p any) (intake.Message, bool) {
			u, ok := p.(model.PreferenceUpdate)
			return intake.Prefs(u), ok
		}},
		{model.TopicCouncilInsight, func(p any) (intake.Message, bool) {
			i, ok := p.(model.CouncilInsight)
			return intake.Insight(i), ok
		}},
	}

	for _, sub := range subs {
		wrap := sub.wrap
		topic := sub.topic
		err := s.bus.Subscribe(s.engineID, topic, func(ctx context.Context, msg transport.Message) {
			m, ok := wrap(msg.Payload)
			if !ok {
				s.log.Warn(ctx, "unexpected payload type",
					logger.String("topic", topic),
					logger.Any("payload", msg.Payload),
				)
				return
			}
			if !s.queue.Enqueue(ctx, m) {
				s.log.Warn(ctx, "intake queue rejected message", logger.String("topic", topic))
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// run is the single consumer of the intake queue.
func (s *Service) run(ctx context.Context) {
	defer close(s.doneCh)

	msgs := s.queue.Dequeue(ctx)
	decay := time.NewTicker(trustDecayInterval)
	defer decay.Stop()

	for {
		var deadlineC <-chan time.Time
		s.mu.RLock()
		if s.councilTimer != nil {
			deadlineC = s.councilTimer.C
		}
		s.mu.RUnlock()

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-decay.C:
			s.ledger.ApplyTrustDecay(s.trustTokenTTL)
		case <-deadlineC:
			s.expireCouncil(ctx)
		case m, ok := <-msgs:
			if !ok {
				return
			}
			s.handle(ctx, m)
		}
	}
}

// handle applies one intake message and, for state-changing updates,
// kicks an evaluation if none is pending.
func (s *Service) handle(ctx context.Context, m intake.Message) {
	switch m.Kind {
	case intake.KindOffer:
		s.applyOffer(ctx, *m.Offer)
		s.maybeEvaluate(ctx)
	case intake.KindNeed:
		s.applyNeed(ctx, *m.Need)
		s.maybeEvaluate(ctx)
	case intake.KindPrefs:
		if !s.ledger.UpdatePreferences(m.Prefs.DonorID, m.Prefs.Preferences) {
			s.log.Debug(ctx, "preference update for unknown donor",
				logger.String("donor", m.Prefs.DonorID))
			return
		}
		s.maybeEvaluate(ctx)
	case intake.KindInsight:
		s.applyInsight(ctx, *m.Insight)
	}
}

func (s *Service) applyOffer(ctx context.Context, offer model.CapacityOffer) {
	d := s.ledger.RecordCapacityOffer(offer)

	// Engagement earns the engine a channel back to the donor.
	s.trustStore.Grant(s.engineID, d.ID, trust.TrustScore(d))

	if _, err := s.auditLog.Append(audit.KindCapacityOffer, map[string]any{
		"donor_id": d.ID,
		"budget":   d.Budget,
	}); err != nil {
		s.log.Error(ctx, "audit append failed", logger.Error(err))
	}

	ack := model.CapacityAck{
		Budget:  d.Budget,
		Message: "capacity offer recorded",
	}
	if err := s.bus.Whisper(ctx, s.engineID, d.ID, model.TopicCapacityAck, ack); err != nil {
		s.log.Warn(ctx, "capacity ack failed", logger.String("donor", d.ID), logger.Error(err))
	}
}

func (s *Service) applyNeed(ctx context.Context, reg model.NeedRegistration) {
	c := s.ledger.RecordNeedRegistration(reg)

	s.trustStore.Grant(s.engineID, c.ID, 1.0)

	if _, err := s.auditLog.Append(audit.KindNeedRegistration, map[string]any{
		"cause_id": c.ID,
		"need":     c.Need,
		"priority": c.Priority,
	}); err != nil {
		s.log.Error(ctx, "audit append failed", logger.Error(err))
	}

	ack := model.NeedAck{
		Need:     c.Need,
		Priority: c.Priority,
		Message:  "funding need registered",
	}
	if err := s.bus.Whisper(ctx, s.engineID, c.ID, model.TopicNeedAck, ack); err != nil {
		s.log.Warn(ctx, "need ack failed", logger.String("cause", c.ID), logger.Error(err))
	}
}

// maybeEvaluate runs an evaluation when the controller is idle. While a
// council is pending the update stays in the ledger and the cycle re-runs
// after the council resolves.
func (s *Service) maybeEvaluate(ctx context.Context) {
	s.mu.RLock()
	idle := s.state == StateIdle
	s.mu.RUnlock()

	if !idle {
		s.mu.Lock()
		s.pendingEval = true
		s.mu.Unlock()
		return
	}
	s.evaluate(ctx)
}

// evaluate computes a proposal and decides between direct execution and
// council escalation.
func (s *Service) evaluate(ctx context.Context) {
	s.setState(StateEvaluating)

	proposal := s.ledger.ProposedAllocation()
	if proposal.Total() <= 0 {
		s.setState(StateIdle)
		return
	}

	confidence := s.ledger.Confidence(proposal)
	risk := s.ledger.ConcentrationRisk(proposal)
	metrics.RecordProposalComputed(confidence)
	if risk {
		metrics.RecordConcentrationFlag()
	}

	s.log.Info(ctx, "proposal evaluated",
		logger.Float64("confidence", confidence),
		logger.Bool("concentration_risk", risk),
		logger.Float64("volume", proposal.Total()),
	)

	if confidence >= s.confidenceThreshold && !risk {
		s.setState(StateExecuting)
		s.commit(ctx, proposal, confidence, false)
		return
	}

	s.convene(ctx, proposal, confidence, risk)
}

// convene opens a council session around an untrusted proposal.
func (s *Service) convene(ctx context.Context, proposal model.Matrix, confidence float64, risk bool) {
	donors, causes := s.ledger.Snapshot()
	session := council.NewSession("resource_allocation", proposal, confidence, donors, causes,
		council.WithQuorum(s.quorum),
		council.WithInsightWeight(s.insightWeight),
		council.WithDeadline(s.councilDeadline),
		council.WithClock(s.now),
	)

	s.mu.Lock()
	s.session = session
	s.councilTimer = time.NewTimer(s.councilDeadline)
	s.state = StateCouncilPending
	s.mu.Unlock()

	metrics.RecordCouncilConvened()

	cctx := session.Context()
	if err := s.bus.Broadcast(ctx, s.engineID, model.TopicCouncilContext, cctx); err != nil {
		s.log.Warn(ctx, "council context broadcast failed", logger.Error(err))
	}
	if _, err := s.bus.Convene(ctx, model.TopicCouncilContext, nil); err != nil {
		s.log.Warn(ctx, "convene failed", logger.Error(err))
	}

	if _, err := s.auditLog.Append(audit.KindCouncilConvened, map[string]any{
		"council_id":         cctx.ID,
		"confidence":         confidence,
		"concentration_risk": risk,
		"proposed_volume":    proposal.Total(),
	}); err != nil {
		s.log.Error(ctx, "audit append failed", logger.Error(err))
	}

	s.log.Info(ctx, "council convened",
		logger.String("council_id", cctx.ID),
		logger.Float64("confidence", confidence),
		logger.Bool("concentration_risk", risk),
	)
}

// applyInsight routes an advisor recommendation to the open session and
// synthesizes once quorum is reached.
func (s *Service) applyInsight(ctx context.Context, in model.CouncilInsight) {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()

	if session == nil {
		s.log.Debug(ctx, "insight with no open council", logger.String("agent", in.AgentID))
		return
	}
	if in.CouncilID != "" && in.CouncilID != session.ID() {
		s.log.Debug(ctx, "insight for unknown council",
			logger.String("agent", in.AgentID),
			logger.String("council_id", in.CouncilID),
		)
		return
	}

	accepted, reached := session.AddInsight(model.Insight{
		AgentID:         in.AgentID,
		Recommendations: in.Recommendations,
		Confidence:      in.Confidence,
		Rationale:       in.Rationale,
	})
	if !accepted {
		s.log.Debug(ctx, "insight ignored", logger.String("agent", in.AgentID))
	}
	if reached {
		s.synthesizeCouncil(ctx, session)
	}
}

// synthesizeCouncil blends the collected insights and commits the result.
func (s *Service) synthesizeCouncil(ctx context.Context, session *council.Session) {
	final := session.Synthesize()
	session.Close()

	cctx := session.Context()
	elapsed := s.now().Sub(cctx.OpenedAt)
	metrics.RecordCouncilSynthesized(float64(elapsed.Milliseconds()))

	insights := session.Insights()
	detail := make([]map[string]any, 0, len(insights))
	for _, in := range insights {
		detail = append(detail, map[string]any{
			"agent_id":   in.AgentID,
			"confidence": in.Confidence,
			"rationale":  in.Rationale,
		})
	}
	if _, err := s.auditLog.Append(audit.KindCouncilSynthesis, map[string]any{
		"council_id": cctx.ID,
		"insights":   detail,
	}); err != nil {
		s.log.Error(ctx, "audit append failed", logger.Error(err))
	}

	s.clearCouncil()
	s.setState(StateExecuting)
	s.commit(ctx, final, cctx.Confidence, true)
}

// expireCouncil handles a session deadline: the original proposal executes
// un-synthesized so the cycle always terminates.
func (s *Service) expireCouncil(ctx context.Context) {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		return
	}

	session.Close()
	cctx := session.Context()
	elapsed := s.now().Sub(cctx.OpenedAt)
	metrics.RecordCouncilExpired(float64(elapsed.Milliseconds()))

	if _, err := s.auditLog.Append(audit.KindCouncilExpired, map[string]any{
		"council_id":       cctx.ID,
		"insights_pending": session.PendingInsights(),
	}); err != nil {
		s.log.Error(ctx, "audit append failed", logger.Error(err))
	}
	s.log.Warn(ctx, "council expired before quorum; executing original proposal",
		logger.String("council_id", cctx.ID),
	)

	s.clearCouncil()
	s.setState(StateExecuting)
	s.commit(ctx, cctx.Proposed, cctx.Confidence, false)
}

// commit runs the executor, returns to idle, and re-evaluates if updates
// arrived while a council was pending.
func (s *Service) commit(ctx context.Context, m model.Matrix, confidence float64, councilReviewed bool) {
	res := s.executor.Commit(ctx, m, confidence, councilReviewed)

	s.mu.Lock()
	s.totalAllocated += res.TotalAllocated
	s.recordHistory(res.Events)
	rerun := s.pendingEval
	s.pendingEval = false
	s.state = StateIdle
	s.mu.Unlock()

	if rerun {
		s.evaluate(ctx)
	}
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Service) clearCouncil() {
	s.mu.Lock()
	if s.councilTimer != nil {
		s.councilTimer.Stop()
		s.councilTimer = nil
	}
	s.session = nil
	s.mu.Unlock()
}
