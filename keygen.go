package tss

import (
	"crypto/sha512"
	"time"

	"go.uber.org/zap"

	"github.com/canopy-network/canopy/lib/tss/logging"
)

// KeyShareMessage is one entry of the map returned by KeyShare: the
// issuer's own *LocalKeyShare or a *PeerKeyShare addressed to a peer.
type KeyShareMessage interface {
	Recipient() PartyIndex
	Issuer() PartyIndex
	isKeyShareMessage()
}

// LocalKeyShare is what the issuing party keeps from its own deal.
type LocalKeyShare struct {
	Index       PartyIndex
	Threshold   int
	NumShares   int
	PublicPoint Point  // y_i = u_i*B
	Share       Scalar // u_i's share at Index
	Prefix      Scalar
	Commitments *PolynomialCommitment
	Proof       *SchnorrProof
}

// PeerKeyShare carries an issuer's share of u_i to one recipient.
type PeerKeyShare struct {
	Index          PartyIndex // recipient
	RelatedToIndex PartyIndex // issuer
	PublicPoint    Point
	Share          Scalar
	Commitments    *PolynomialCommitment
	Proof          *SchnorrProof
}

func (m *LocalKeyShare) Recipient() PartyIndex { return m.Index }
func (m *LocalKeyShare) Issuer() PartyIndex    { return m.Index }
func (m *PeerKeyShare) Recipient() PartyIndex  { return m.Index }
func (m *PeerKeyShare) Issuer() PartyIndex     { return m.RelatedToIndex }

func (*LocalKeyShare) isKeyShareMessage() {}
func (*PeerKeyShare) isKeyShareMessage()  {}

// KeyShare starts distributed key generation for party index. It draws a
// fresh seed, derives u and the nonce prefix from it the way RFC 8032
// derives a signing key, and deals u to parties 1..numShares. The
// returned map is keyed by recipient; the caller delivers each
// PeerKeyShare and keeps the LocalKeyShare.
func (e *Engine) KeyShare(index PartyIndex, threshold, numShares int) (map[PartyIndex]KeyShareMessage, error) {
	start := time.Now()

	policy := e.validator.ValidateThresholdParameters(numShares, threshold)
	if err := policy.Err(); err != nil {
		return nil, e.observeFailure(StageKeyShare, AuditEventKeyShare, index, err)
	}
	if !index.Valid(numShares) {
		return nil, e.observeFailure(StageKeyShare, AuditEventKeyShare, index,
			ErrInvalidIndex.WithDetails("index %d outside [1, %d]", index, numShares))
	}

	seed, err := SecureRandom(e.rand, 32)
	if err != nil {
		return nil, e.observeFailure(StageKeyShare, AuditEventKeyShare, index, ErrRandomnessGeneration.WithCause(err))
	}
	digest := sha512.Sum512(seed)
	ZeroizeBytes(seed)
	defer ZeroizeBytes(digest[:])

	u, err := e.curve.ScalarFromClampedBytes(digest[:32])
	if err != nil {
		return nil, e.observeFailure(StageKeyShare, AuditEventKeyShare, index, ErrShareGenerationFailed.WithCause(err))
	}
	defer u.Zeroize()

	prefix, err := e.curve.ScalarFromUniformBytes(digest[32:])
	if err != nil {
		return nil, e.observeFailure(StageKeyShare, AuditEventKeyShare, index, ErrShareGenerationFailed.WithCause(err))
	}

	y := e.curve.BasePoint().Mul(u)

	shares, commitments, err := e.sss.Deal(u, numShares, threshold)
	if err != nil {
		return nil, e.observeFailure(StageKeyShare, AuditEventKeyShare, index, err)
	}

	proof, err := NewSchnorrProof(e.curve, e.rand, index, u, y)
	if err != nil {
		ZeroizeScalars(shares)
		return nil, e.observeFailure(StageKeyShare, AuditEventKeyShare, index, ErrRandomnessGeneration.WithCause(err))
	}

	messages := make(map[PartyIndex]KeyShareMessage, numShares)
	for recipient, share := range shares {
		if recipient == index {
			messages[recipient] = &LocalKeyShare{
				Index:       index,
				Threshold:   threshold,
				NumShares:   numShares,
				PublicPoint: y,
				Share:       share,
				Prefix:      prefix,
				Commitments: commitments,
				Proof:       proof,
			}
			continue
		}
		messages[recipient] = &PeerKeyShare{
			Index:          recipient,
			RelatedToIndex: index,
			PublicPoint:    y,
			Share:          share,
			Commitments:    commitments,
			Proof:          proof,
		}
	}

	for _, warning := range policy.Warnings {
		e.logger.Warn("threshold policy warning",
			logging.Stage(StageKeyShare),
			logging.Party(uint32(index)),
			zap.String("warning", warning),
			zap.Strings("recommendations", policy.Recommendations))
	}
	assessment := AssessSecurity(numShares, threshold)

	e.observeSuccess(StageKeyShare, AuditEventKeyShare,
		NewAuditEventBuilder(AuditEventKeyShare, ReasonCeremony).
			WithCurve(e.curve.Name()).
			WithParty(index).
			WithThreshold(threshold, numShares).
			WithMetadata("security_level", policy.SecurityLevel).
			WithMetadata("warnings", policy.Warnings).
			WithMetadata("fault_tolerance", assessment.FaultTolerance).
			WithMetadata("availability_risk", assessment.AvailabilityRisk),
		start, 1, logging.Party(uint32(index)))

	return messages, nil
}

// KeyCombine folds the caller's LocalKeyShare and the PeerKeyShares it
// received into a key share of the aggregate key y = sum y_i. Every
// contribution is checked against its issuer's proof of knowledge and
// polynomial commitment before it is summed.
func (e *Engine) KeyCombine(messages []KeyShareMessage) (Players, error) {
	start := time.Now()

	var local *LocalKeyShare
	var peers []*PeerKeyShare
	for _, msg := range messages {
		switch m := msg.(type) {
		case *LocalKeyShare:
			if m == nil {
				return nil, e.observeFailure(StageKeyCombine, AuditEventKeyCombine, 0, ErrInvalidMessage.WithDetails("nil local key share"))
			}
			if local != nil {
				return nil, e.observeFailure(StageKeyCombine, AuditEventKeyCombine, m.Index, ErrInvalidMessage.WithDetails("more than one local key share"))
			}
			local = m
		case *PeerKeyShare:
			if m == nil {
				return nil, e.observeFailure(StageKeyCombine, AuditEventKeyCombine, 0, ErrInvalidMessage.WithDetails("nil peer key share"))
			}
			peers = append(peers, m)
		default:
			return nil, e.observeFailure(StageKeyCombine, AuditEventKeyCombine, 0, ErrInvalidMessage.WithDetails("unexpected message %T", msg))
		}
	}
	if local == nil {
		return nil, e.observeFailure(StageKeyCombine, AuditEventKeyCombine, 0, ErrInvalidMessage.WithDetails("missing local key share"))
	}

	if err := e.checkLocalKeyShare(local); err != nil {
		return nil, e.observeFailure(StageKeyCombine, AuditEventKeyCombine, local.Index, err)
	}

	if contributions := len(peers) + 1; contributions < local.Threshold {
		return nil, e.observeFailure(StageKeyCombine, AuditEventKeyCombine, local.Index,
			ErrInsufficientShares.WithContext("threshold", local.Threshold).WithContext("received", contributions))
	}

	issuers := make([]PartyIndex, 0, len(peers)+1)
	issuers = append(issuers, local.Index)
	for _, peer := range peers {
		if peer.Index != local.Index {
			return nil, e.observeFailure(StageKeyCombine, AuditEventKeyCombine, local.Index,
				ErrInvalidMessage.WithContext("issuer", peer.RelatedToIndex).
					WithDetails("share addressed to %d, local index is %d", peer.Index, local.Index))
		}
		issuers = append(issuers, peer.RelatedToIndex)
	}
	if err := ValidateParticipants(issuers, local.NumShares).Err(); err != nil {
		return nil, e.observeFailure(StageKeyCombine, AuditEventKeyCombine, local.Index, err)
	}
	for _, peer := range peers {
		if err := e.checkPeerKeyShare(local, peer); err != nil {
			return nil, e.observeFailure(StageKeyCombine, AuditEventKeyCombine, local.Index, err)
		}
	}

	y := local.PublicPoint
	x := local.Share.Add(e.curve.ScalarZero())
	for _, peer := range peers {
		y = y.Add(peer.PublicPoint)
		x = x.Add(peer.Share)
	}

	players := make(Players, len(peers)+1)
	players[local.Index] = &LocalPlayer{
		Index:       local.Index,
		Threshold:   local.Threshold,
		NumShares:   local.NumShares,
		PublicPoint: y,
		Secret:      x,
		Prefix:      local.Prefix,
	}
	for _, peer := range peers {
		players[peer.RelatedToIndex] = &PeerStub{
			Index:          peer.RelatedToIndex,
			RelatedToIndex: local.Index,
			PublicPoint:    y,
		}
	}

	issuers = sortedParticipants(issuers)
	e.observeSuccess(StageKeyCombine, AuditEventKeyCombine,
		NewAuditEventBuilder(AuditEventKeyCombine, ReasonCeremony).
			WithCurve(e.curve.Name()).
			WithParty(local.Index).
			WithThreshold(local.Threshold, local.NumShares).
			WithParticipants(issuers).
			WithMetadata("public_key", y.String()),
		start, len(issuers), logging.Party(uint32(local.Index)), zap.Stringer("public_key", y),
		logging.Redacted("secret_share"))

	return players, nil
}

func (e *Engine) checkLocalKeyShare(local *LocalKeyShare) error {
	if err := e.validator.ValidateThresholdParameters(local.NumShares, local.Threshold).Err(); err != nil {
		return err
	}
	if !local.Index.Valid(local.NumShares) {
		return ErrInvalidIndex.WithDetails("local index %d outside [1, %d]", local.Index, local.NumShares)
	}
	if local.PublicPoint == nil || local.Share == nil || local.Prefix == nil || local.Commitments == nil {
		return ErrInvalidMessage.WithDetails("local key share is incomplete")
	}
	if !local.Proof.Verify(e.curve, local.Index, local.PublicPoint) {
		return ErrShareVerificationFailed.WithContext("issuer", local.Index)
	}
	return e.checkDealtShare(local.Index, local.Index, local.Threshold, local.PublicPoint, local.Share, local.Commitments)
}

// checkPeerKeyShare assumes addressing and issuer indices were already
// validated.
func (e *Engine) checkPeerKeyShare(local *LocalKeyShare, peer *PeerKeyShare) error {
	if peer.PublicPoint == nil || peer.Share == nil || peer.Commitments == nil {
		return ErrInvalidMessage.WithContext("issuer", peer.RelatedToIndex).WithDetails("peer key share is incomplete")
	}
	if !peer.Proof.Verify(e.curve, peer.RelatedToIndex, peer.PublicPoint) {
		return ErrShareVerificationFailed.WithContext("issuer", peer.RelatedToIndex)
	}
	return e.checkDealtShare(peer.RelatedToIndex, local.Index, local.Threshold, peer.PublicPoint, peer.Share, peer.Commitments)
}

// checkDealtShare verifies a share of a dealt secret whose public image
// is constant against the dealer's commitment.
func (e *Engine) checkDealtShare(issuer, recipient PartyIndex, threshold int, constant Point, share Scalar, commitments *PolynomialCommitment) error {
	if commitments.Threshold() != threshold {
		return ErrInconsistentShares.WithContext("issuer", issuer).
			WithDetails("commitment degree implies threshold %d, want %d", commitments.Threshold(), threshold)
	}
	if !commitments.Constant().Equal(constant) {
		return ErrInconsistentShares.WithContext("issuer", issuer).WithDetails("commitment does not match public point")
	}
	ok, err := commitments.Verify(recipient, share)
	if err != nil {
		return ErrInvalidShare.WithContext("issuer", issuer).WithCause(err)
	}
	if !ok {
		return ErrInconsistentShares.WithContext("issuer", issuer)
	}
	return nil
}
