package tss

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/canopy-network/canopy/lib/tss/logging"
	"github.com/canopy-network/canopy/lib/tss/metrics"
)

// Protocol stage names used in logs, metrics and audit events.
const (
	StageKeyShare    = "key_share"
	StageKeyCombine  = "key_combine"
	StageSignShare   = "sign_share"
	StageSign        = "sign"
	StageSignCombine = "sign_combine"
	StageVerify      = "verify"
)

// Engine runs the threshold EdDSA protocol over edwards25519. It holds
// no per-ceremony state; every call takes the caller's accumulated
// messages and returns new ones, so one Engine serves any number of
// concurrent ceremonies.
type Engine struct {
	curve     *Ed25519Curve
	sss       *SecretSharing
	rand      io.Reader
	logger    *zap.Logger
	metrics   *metrics.Metrics
	registry  prometheus.Registerer
	audit     AuditEventHandler
	validator *ThresholdValidator
	config    *Config
}

// Option configures an Engine.
type Option func(*Engine) error

// WithRandom sets the entropy source. Defaults to crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(e *Engine) error {
		if r == nil {
			return ErrInvalidConfiguration.WithDetails("random source cannot be nil")
		}
		e.rand = r
		return nil
	}
}

// WithLogger sets the logger. Without it the engine is silent unless a
// Config is supplied.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// WithRegisterer sets where collectors built from a Config are
// registered. Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(e *Engine) error {
		if reg == nil {
			return ErrInvalidConfiguration.WithDetails("registerer cannot be nil")
		}
		e.registry = reg
		return nil
	}
}

// WithAuditHandler routes ceremony events to handler.
func WithAuditHandler(handler AuditEventHandler) Option {
	return func(e *Engine) error {
		if handler == nil {
			handler = &NullAuditHandler{}
		}
		e.audit = handler
		return nil
	}
}

// WithThresholdValidator replaces the default (t, n) policy.
func WithThresholdValidator(v *ThresholdValidator) Option {
	return func(e *Engine) error {
		if v == nil {
			return ErrInvalidConfiguration.WithDetails("threshold validator cannot be nil")
		}
		e.validator = v
		return nil
	}
}

// WithConfig applies a validated Config: its threshold policy, and its
// logger and metrics when WithLogger or WithMetrics is not given. The
// engine always signs over ed25519; cfg.Curve only affects
// Config.NewSecretSharing, and the proof section is read by
// nosmallfactors.ParamsFromConfig.
func WithConfig(cfg *Config) Option {
	return func(e *Engine) error {
		res := NewDefaultConfigurationValidator().Validate(cfg)
		if !res.Valid {
			return ErrInvalidConfiguration.WithDetails("%v", res.Errors)
		}
		threshold := cfg.Threshold
		e.validator = &threshold
		e.config = cfg
		return nil
	}
}

// NewEngine creates a threshold EdDSA engine.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		curve:     NewEd25519Curve(),
		rand:      rand.Reader,
		registry:  prometheus.DefaultRegisterer,
		audit:     &NullAuditHandler{},
		validator: NewDefaultThresholdValidator(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.logger == nil {
		if e.config != nil {
			logger, err := e.config.NewLogger()
			if err != nil {
				return nil, ErrInvalidConfiguration.WithCause(err)
			}
			e.logger = logger
		} else {
			e.logger = logging.Nop()
		}
	}
	if e.metrics == nil && e.config != nil {
		m, err := e.config.NewMetrics(e.registry)
		if err != nil {
			return nil, ErrInvalidConfiguration.WithCause(err)
		}
		e.metrics = m
	}
	e.logger = e.logger.Named("eddsa")
	e.sss = NewSecretSharing(e.curve, e.rand)

	return e, nil
}

// Curve returns the group the engine signs over.
func (e *Engine) Curve() *Ed25519Curve {
	return e.curve
}

// SecretSharing returns the engine's sharing primitive.
func (e *Engine) SecretSharing() *SecretSharing {
	return e.sss
}

// Player is an entry of the Players map produced by KeyCombine: either
// the caller's own *LocalPlayer or a *PeerStub for another party.
type Player interface {
	PartyIndex() PartyIndex
	isPlayer()
}

// LocalPlayer is the caller's key share after combination.
type LocalPlayer struct {
	Index       PartyIndex
	Threshold   int
	NumShares   int
	PublicPoint Point  // aggregate public key y
	Secret      Scalar // x, this party's share of the aggregate secret
	Prefix      Scalar // nonce derivation prefix
}

// PeerStub records another participant. It carries no secret material.
type PeerStub struct {
	Index          PartyIndex
	RelatedToIndex PartyIndex
	PublicPoint    Point
}

func (p *LocalPlayer) PartyIndex() PartyIndex { return p.Index }
func (p *PeerStub) PartyIndex() PartyIndex    { return p.Index }

func (*LocalPlayer) isPlayer() {}
func (*PeerStub) isPlayer()    {}

// Zeroize clears the secret share and nonce prefix.
func (p *LocalPlayer) Zeroize() {
	if p.Secret != nil {
		p.Secret.Zeroize()
	}
	if p.Prefix != nil {
		p.Prefix.Zeroize()
	}
}

// Players maps party indices to the local record or peer stubs.
type Players map[PartyIndex]Player

// Local returns the single LocalPlayer in the map.
func (ps Players) Local() (*LocalPlayer, error) {
	var local *LocalPlayer
	for _, p := range ps {
		lp, ok := p.(*LocalPlayer)
		if !ok {
			continue
		}
		if local != nil {
			return nil, ErrInvalidState.WithDetails("more than one local player")
		}
		local = lp
	}
	if local == nil {
		return nil, ErrInvalidState.WithDetails("no local player")
	}
	return local, nil
}

// Peers returns the peer stub indices in ascending order.
func (ps Players) Peers() []PartyIndex {
	peers := make(map[PartyIndex]struct{}, len(ps))
	for index, p := range ps {
		if _, ok := p.(*PeerStub); ok {
			peers[index] = struct{}{}
		}
	}
	return sortedIndices(peers)
}

// observeSuccess logs, counts and audits a completed stage.
func (e *Engine) observeSuccess(stage string, event AuditEventType, builder *AuditEventBuilder, start time.Time, contributions int, fields ...zap.Field) {
	elapsed := time.Since(start)
	e.logger.Debug("stage completed", append(fields,
		logging.Stage(stage),
		zap.Int("contributions", contributions),
		zap.Duration("elapsed", elapsed),
	)...)
	e.metrics.StageCompleted(stage)

	ev := builder.BuildCeremony(elapsed, contributions)
	switch event {
	case AuditEventKeyShare, AuditEventKeyCombine:
		e.audit.OnKeyGeneration(ev)
	default:
		e.audit.OnSigning(ev)
	}
}

// observeFailure logs, counts and audits a failed stage and returns err.
func (e *Engine) observeFailure(stage string, event AuditEventType, index PartyIndex, err error) error {
	code := ErrorCode(err)
	e.logger.Warn("stage failed",
		logging.Stage(stage),
		logging.Party(uint32(index)),
		zap.String("code", code),
		zap.Error(err),
	)
	e.metrics.StageFailed(stage, code)

	switch {
	case code == ErrNonceReuseDetected.Code:
		e.audit.OnVerificationFailure(NewAuditEventBuilder(AuditEventNonceReuse, ReasonSecurityViolation).
			WithCurve(e.curve.Name()).WithParty(index).WithError(err).Build())
	case IsErrorCategory(err, ErrorCategoryThreshold),
		IsErrorCategory(err, ErrorCategoryParticipant),
		IsErrorCategory(err, ErrorCategoryValidation):
		e.audit.OnValidationFailure(NewAuditEventBuilder(AuditEventValidationFailure, ReasonValidationError).
			WithCurve(e.curve.Name()).WithParty(index).WithError(err).
			BuildValidationFailure(stage, code, nil))
	default:
		e.audit.OnError(NewAuditEventBuilder(event, ReasonCeremony).
			WithCurve(e.curve.Name()).WithParty(index).WithError(err).Build())
	}
	return err
}
