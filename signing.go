package tss

import (
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/canopy-network/canopy/lib/tss/logging"
)

// SigningSession binds one nonce to one message. It is created by
// SignShare and consumed by exactly one successful Sign call.
type SigningSession struct {
	id       [blake2b.Size256]byte
	digest   [blake2b.Size256]byte
	consumed atomic.Bool
}

func newSigningSession(publicKey Point, index PartyIndex, message []byte, commitment Point) *SigningSession {
	h, _ := blake2b.New256(nil)
	h.Write(publicKey.Bytes())
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(index))
	h.Write(idx[:])
	h.Write(message)
	h.Write(commitment.Bytes())

	s := &SigningSession{digest: blake2b.Sum256(message)}
	h.Sum(s.id[:0])
	return s
}

// ID identifies the session in logs and audit events.
func (s *SigningSession) ID() string {
	return hex.EncodeToString(s.id[:])
}

// Consumed reports whether the nonce has been used.
func (s *SigningSession) Consumed() bool {
	return s.consumed.Load()
}

// consume marks the nonce used for message. A mismatched message burns
// the session as well.
func (s *SigningSession) consume(message []byte) error {
	digest := blake2b.Sum256(message)
	if subtle.ConstantTimeCompare(digest[:], s.digest[:]) != 1 {
		s.consumed.Store(true)
		return ErrNonceReuseDetected.WithContext("session", s.ID()).
			WithDetails("nonce was generated for a different message")
	}
	if !s.consumed.CompareAndSwap(false, true) {
		return ErrNonceReuseDetected.WithContext("session", s.ID()).
			WithDetails("nonce already used")
	}
	return nil
}

// NonceMessage is one entry of the map returned by SignShare: the
// signer's own *LocalNonce or a *PeerNonce addressed to a peer.
type NonceMessage interface {
	Recipient() PartyIndex
	Issuer() PartyIndex
	isNonceMessage()
}

// LocalNonce is what a signer keeps from its own nonce deal.
type LocalNonce struct {
	Index           PartyIndex
	Threshold       int
	NumShares       int
	PublicPoint     Point  // aggregate public key y
	Secret          Scalar // x
	Share           Scalar // r_i's share at Index
	NonceCommitment Point  // R_i = r_i*B
	Commitments     *PolynomialCommitment

	session *SigningSession
}

// PeerNonce carries an issuer's share of r_i to one recipient.
type PeerNonce struct {
	Index           PartyIndex // recipient
	RelatedToIndex  PartyIndex // issuer
	Share           Scalar
	NonceCommitment Point
	Commitments     *PolynomialCommitment
}

func (m *LocalNonce) Recipient() PartyIndex { return m.Index }
func (m *LocalNonce) Issuer() PartyIndex    { return m.Index }
func (m *PeerNonce) Recipient() PartyIndex  { return m.Index }
func (m *PeerNonce) Issuer() PartyIndex     { return m.RelatedToIndex }

func (*LocalNonce) isNonceMessage() {}
func (*PeerNonce) isNonceMessage()  {}

// Session returns the signing session guarding this nonce.
func (m *LocalNonce) Session() *SigningSession {
	return m.session
}

// PartialSignature is one signer's Shamir share gamma of the final
// signature scalar. Threshold is the key's threshold; SignCombine needs
// that many partials.
type PartialSignature struct {
	Index       PartyIndex
	Threshold   int
	PublicPoint Point
	Gamma       Scalar
	R           Point
}

// SignShare draws a fresh nonce r = H(prefix || message || random) for
// message and deals it with the key's (threshold, numShares). The map is
// keyed by recipient; the LocalNonce stays with the caller and carries
// the session that Sign consumes.
func (e *Engine) SignShare(message []byte, players Players) (map[PartyIndex]NonceMessage, error) {
	start := time.Now()

	local, err := players.Local()
	if err != nil {
		return nil, e.observeFailure(StageSignShare, AuditEventSignShare, 0, err)
	}
	if local.PublicPoint == nil || local.Secret == nil || local.Prefix == nil {
		return nil, e.observeFailure(StageSignShare, AuditEventSignShare, local.Index,
			ErrInvalidState.WithDetails("local player is incomplete"))
	}
	if !local.Index.Valid(local.NumShares) {
		return nil, e.observeFailure(StageSignShare, AuditEventSignShare, local.Index,
			ErrInvalidIndex.WithDetails("local index %d outside [1, %d]", local.Index, local.NumShares))
	}

	fresh, err := SecureRandom(e.rand, 32)
	if err != nil {
		return nil, e.observeFailure(StageSignShare, AuditEventSignShare, local.Index, ErrRandomnessGeneration.WithCause(err))
	}
	prefix := local.Prefix.Bytes()
	r, err := hashToScalar(e.curve, prefix, message, fresh)
	ZeroizeBytes(fresh)
	ZeroizeBytes(prefix)
	if err != nil {
		return nil, e.observeFailure(StageSignShare, AuditEventSignShare, local.Index, ErrShareGenerationFailed.WithCause(err))
	}
	defer r.Zeroize()

	commitment := e.curve.BasePoint().Mul(r)

	shares, commitments, err := e.sss.Deal(r, local.NumShares, local.Threshold)
	if err != nil {
		return nil, e.observeFailure(StageSignShare, AuditEventSignShare, local.Index, err)
	}

	session := newSigningSession(local.PublicPoint, local.Index, message, commitment)

	nonces := make(map[PartyIndex]NonceMessage, len(shares))
	for recipient, share := range shares {
		if recipient == local.Index {
			nonces[recipient] = &LocalNonce{
				Index:           local.Index,
				Threshold:       local.Threshold,
				NumShares:       local.NumShares,
				PublicPoint:     local.PublicPoint,
				Secret:          local.Secret,
				Share:           share,
				NonceCommitment: commitment,
				Commitments:     commitments,
				session:         session,
			}
			continue
		}
		nonces[recipient] = &PeerNonce{
			Index:           recipient,
			RelatedToIndex:  local.Index,
			Share:           share,
			NonceCommitment: commitment,
			Commitments:     commitments,
		}
	}

	e.observeSuccess(StageSignShare, AuditEventSignShare,
		NewAuditEventBuilder(AuditEventSignShare, ReasonCeremony).
			WithCurve(e.curve.Name()).
			WithParty(local.Index).
			WithSession(session.ID()).
			WithThreshold(local.Threshold, local.NumShares),
		start, 1, logging.Party(uint32(local.Index)), zap.String("session", session.ID()))

	return nonces, nil
}

// Sign produces the caller's partial signature over message from its
// LocalNonce and the PeerNonces it received. Every signer must use the
// same set of nonce contributions, otherwise the partials will not
// combine. The LocalNonce's session is consumed; signing again with it,
// or signing a different message, fails with ErrNonceReuseDetected.
func (e *Engine) Sign(message []byte, collected []NonceMessage) (*PartialSignature, error) {
	start := time.Now()

	var local *LocalNonce
	var peers []*PeerNonce
	for _, msg := range collected {
		switch m := msg.(type) {
		case *LocalNonce:
			if m == nil {
				return nil, e.observeFailure(StageSign, AuditEventSign, 0, ErrInvalidMessage.WithDetails("nil local nonce"))
			}
			if local != nil {
				return nil, e.observeFailure(StageSign, AuditEventSign, m.Index, ErrInvalidMessage.WithDetails("more than one local nonce"))
			}
			local = m
		case *PeerNonce:
			if m == nil {
				return nil, e.observeFailure(StageSign, AuditEventSign, 0, ErrInvalidMessage.WithDetails("nil peer nonce"))
			}
			peers = append(peers, m)
		default:
			return nil, e.observeFailure(StageSign, AuditEventSign, 0, ErrInvalidMessage.WithDetails("unexpected message %T", msg))
		}
	}
	if local == nil {
		return nil, e.observeFailure(StageSign, AuditEventSign, 0, ErrInvalidMessage.WithDetails("missing local nonce"))
	}
	if local.session == nil || local.PublicPoint == nil || local.Secret == nil || local.Share == nil ||
		local.NonceCommitment == nil || local.Commitments == nil {
		return nil, e.observeFailure(StageSign, AuditEventSign, local.Index, ErrInvalidState.WithDetails("local nonce is incomplete"))
	}
	if !local.Index.Valid(local.NumShares) || local.Threshold > local.NumShares {
		return nil, e.observeFailure(StageSign, AuditEventSign, local.Index,
			ErrInvalidState.WithDetails("local nonce index %d, threshold %d, shares %d", local.Index, local.Threshold, local.NumShares))
	}
	if local.session.Consumed() {
		return nil, e.observeFailure(StageSign, AuditEventSign, local.Index,
			ErrNonceReuseDetected.WithContext("session", local.session.ID()).WithDetails("nonce already used"))
	}

	if contributions := len(peers) + 1; contributions < local.Threshold {
		return nil, e.observeFailure(StageSign, AuditEventSign, local.Index,
			ErrInsufficientSigners.WithContext("threshold", local.Threshold).WithContext("received", contributions))
	}

	if err := e.checkDealtShare(local.Index, local.Index, local.Threshold, local.NonceCommitment, local.Share, local.Commitments); err != nil {
		return nil, e.observeFailure(StageSign, AuditEventSign, local.Index, err)
	}
	participants := make([]PartyIndex, 0, len(peers)+1)
	participants = append(participants, local.Index)
	for _, peer := range peers {
		if peer.Index != local.Index {
			return nil, e.observeFailure(StageSign, AuditEventSign, local.Index,
				ErrInvalidMessage.WithContext("issuer", peer.RelatedToIndex).
					WithDetails("nonce share addressed to %d, local index is %d", peer.Index, local.Index))
		}
		participants = append(participants, peer.RelatedToIndex)
	}
	if err := ValidateParticipants(participants, local.NumShares).Err(); err != nil {
		return nil, e.observeFailure(StageSign, AuditEventSign, local.Index, err)
	}
	for _, peer := range peers {
		if err := e.checkPeerNonce(local, peer); err != nil {
			return nil, e.observeFailure(StageSign, AuditEventSign, local.Index, err)
		}
	}

	if err := local.session.consume(message); err != nil {
		return nil, e.observeFailure(StageSign, AuditEventSign, local.Index, err)
	}

	R := local.NonceCommitment
	rLocal := local.Share.Add(e.curve.ScalarZero())
	defer rLocal.Zeroize()
	for _, peer := range peers {
		R = R.Add(peer.NonceCommitment)
		rLocal = rLocal.Add(peer.Share)
	}
	local.Share.Zeroize()

	k, err := challenge(e.curve, R, local.PublicPoint, message)
	if err != nil {
		return nil, e.observeFailure(StageSign, AuditEventSign, local.Index, ErrInvalidState.WithCause(err))
	}

	gamma := rLocal.Add(k.Mul(local.Secret))

	e.observeSuccess(StageSign, AuditEventSign,
		NewAuditEventBuilder(AuditEventSign, ReasonCeremony).
			WithCurve(e.curve.Name()).
			WithParty(local.Index).
			WithSession(local.session.ID()).
			WithThreshold(local.Threshold, 0).
			WithParticipants(sortedParticipants(participants)),
		start, len(participants), logging.Party(uint32(local.Index)), zap.String("session", local.session.ID()))

	return &PartialSignature{
		Index:       local.Index,
		Threshold:   local.Threshold,
		PublicPoint: local.PublicPoint,
		Gamma:       gamma,
		R:           R,
	}, nil
}

// checkPeerNonce assumes addressing and issuer indices were already
// validated.
func (e *Engine) checkPeerNonce(local *LocalNonce, peer *PeerNonce) error {
	if peer.Share == nil || peer.NonceCommitment == nil || peer.Commitments == nil {
		return ErrInvalidMessage.WithContext("issuer", peer.RelatedToIndex).WithDetails("peer nonce is incomplete")
	}
	return e.checkDealtShare(peer.RelatedToIndex, local.Index, local.Threshold, peer.NonceCommitment, peer.Share, peer.Commitments)
}

// SignCombine interpolates the signers' gammas into sigma. Every partial
// must carry the same key threshold and at least that many are required;
// beyond that, every extra partial must agree with the others.
func (e *Engine) SignCombine(partials []*PartialSignature) (*Signature, error) {
	start := time.Now()

	if len(partials) == 0 {
		return nil, e.observeFailure(StageSignCombine, AuditEventSignCombine, 0,
			ErrInsufficientSigners.WithDetails("no partial signatures"))
	}

	var y, R Point
	threshold := 0
	signers := make([]PartyIndex, 0, len(partials))
	for _, p := range partials {
		if p == nil || p.PublicPoint == nil || p.Gamma == nil || p.R == nil {
			return nil, e.observeFailure(StageSignCombine, AuditEventSignCombine, 0,
				ErrInvalidMessage.WithDetails("partial signature is incomplete"))
		}
		if y == nil {
			y, R, threshold = p.PublicPoint, p.R, p.Threshold
		} else if !y.Equal(p.PublicPoint) || !R.Equal(p.R) || p.Threshold != threshold {
			return nil, e.observeFailure(StageSignCombine, AuditEventSignCombine, p.Index,
				ErrInconsistentShares.WithContext("signer", p.Index).
					WithDetails("partial signature disagrees on public key, nonce commitment or threshold"))
		}
		signers = append(signers, p.Index)
	}
	if threshold < 1 {
		return nil, e.observeFailure(StageSignCombine, AuditEventSignCombine, 0,
			ErrInvalidThreshold.WithDetails("threshold must be positive, got %d", threshold))
	}
	if err := ValidateParticipants(signers, 0).Err(); err != nil {
		return nil, e.observeFailure(StageSignCombine, AuditEventSignCombine, 0, err)
	}
	if len(partials) < threshold {
		return nil, e.observeFailure(StageSignCombine, AuditEventSignCombine, 0,
			ErrInsufficientSigners.WithContext("threshold", threshold).WithContext("received", len(partials)))
	}

	gammas := make(map[PartyIndex]Scalar, len(partials))
	for _, p := range partials {
		gammas[p.Index] = p.Gamma
	}

	sigma, err := e.sss.CombineScalars(gammas, threshold)
	if err != nil {
		return nil, e.observeFailure(StageSignCombine, AuditEventSignCombine, 0, err)
	}

	signers = sortedIndices(gammas)
	e.observeSuccess(StageSignCombine, AuditEventSignCombine,
		NewAuditEventBuilder(AuditEventSignCombine, ReasonCeremony).
			WithCurve(e.curve.Name()).
			WithThreshold(threshold, 0).
			WithParticipants(signers),
		start, len(signers), zap.Stringer("public_key", y))

	return &Signature{PublicPoint: y, R: R, Sigma: sigma}, nil
}
