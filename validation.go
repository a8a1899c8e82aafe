package tss

import (
	"fmt"
	"math"
	"strings"
)

// SecurityLevel grades a (threshold, numShares) choice.
type SecurityLevel string

const (
	SecurityLevelLow    SecurityLevel = "low"
	SecurityLevelMedium SecurityLevel = "medium"
	SecurityLevelHigh   SecurityLevel = "high"
)

// DefaultByzantineRatio is the share of parties an adversary must not reach.
const DefaultByzantineRatio = 2.0 / 3.0

// ValidationResult contains the result of parameter validation
type ValidationResult struct {
	Valid                   bool          `json:"valid"`
	SecurityLevel           SecurityLevel `json:"security_level"`
	ByzantineFaultTolerance bool          `json:"byzantine_fault_tolerance"`
	Warnings                []string      `json:"warnings,omitempty"`
	Errors                  []string      `json:"errors,omitempty"`
	Recommendations         []string      `json:"recommendations,omitempty"`

	cause *TSSError
}

func newValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:           true,
		SecurityLevel:   SecurityLevelMedium,
		Warnings:        []string{},
		Errors:          []string{},
		Recommendations: []string{},
	}
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.failWith(ErrInvalidThreshold, format, args...)
}

// failWith records a failure; the first sentinel recorded becomes the
// result's error.
func (r *ValidationResult) failWith(sentinel *TSSError, format string, args ...interface{}) {
	if r.cause == nil {
		r.cause = sentinel
	}
	r.Valid = false
	r.SecurityLevel = SecurityLevelLow
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Err converts an invalid result into the catalog error of its first
// failure, nil otherwise.
func (r *ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	cause := r.cause
	if cause == nil {
		cause = ErrInvalidThreshold
	}
	return cause.WithDetails("%s", strings.Join(r.Errors, "; "))
}

// ThresholdValidator checks (threshold, numShares) before a ceremony.
// Hard errors block key generation. Warnings are logged by KeyShare and
// attached to its audit event.
type ThresholdValidator struct {
	MinThreshold        int     `json:"min_threshold" yaml:"min_threshold"`
	MaxParties          int     `json:"max_parties" yaml:"max_parties"`
	ByzantineRatio      float64 `json:"byzantine_ratio" yaml:"byzantine_ratio"`
	RecommendedMinRatio float64 `json:"recommended_min_ratio" yaml:"recommended_min_ratio"`
	RecommendedMaxRatio float64 `json:"recommended_max_ratio" yaml:"recommended_max_ratio"`
}

// NewDefaultThresholdValidator accepts every 1 <= t <= n <= MaxShares.
func NewDefaultThresholdValidator() *ThresholdValidator {
	return &ThresholdValidator{
		MinThreshold:        1,
		MaxParties:          MaxShares,
		ByzantineRatio:      DefaultByzantineRatio,
		RecommendedMinRatio: 0.51,
		RecommendedMaxRatio: 0.80,
	}
}

// ValidateThresholdParameters grades numShares and threshold.
func (tv *ThresholdValidator) ValidateThresholdParameters(numShares, threshold int) *ValidationResult {
	result := newValidationResult()

	if threshold < 1 {
		result.fail("threshold must be positive, got %d", threshold)
	}
	if numShares < 1 {
		result.fail("number of shares must be positive, got %d", numShares)
	}
	if threshold > numShares {
		result.fail("threshold %d exceeds number of shares %d", threshold, numShares)
	}
	if !result.Valid {
		return result
	}

	if threshold < tv.MinThreshold {
		result.fail("minimum threshold of %d required", tv.MinThreshold)
	}
	if tv.MaxParties > 0 && numShares > tv.MaxParties {
		result.fail("number of shares %d exceeds maximum of %d", numShares, tv.MaxParties)
	}
	if !result.Valid {
		return result
	}

	ratio := float64(threshold) / float64(numShares)
	if threshold >= int(math.Ceil(float64(numShares)*tv.ByzantineRatio)) {
		result.ByzantineFaultTolerance = true
		result.SecurityLevel = SecurityLevelHigh
	}

	switch {
	case ratio < tv.RecommendedMinRatio:
		result.SecurityLevel = SecurityLevelLow
		result.Warnings = append(result.Warnings, "threshold ratio is below recommended minimum")
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("consider increasing threshold to at least %d", int(math.Ceil(float64(numShares)*tv.RecommendedMinRatio))))
	case ratio > tv.RecommendedMaxRatio && numShares > 1:
		result.Warnings = append(result.Warnings, "threshold ratio is high, may affect availability")
	}

	if threshold == 1 {
		result.SecurityLevel = SecurityLevelLow
		result.Warnings = append(result.Warnings, "threshold of 1 lets any single party sign")
	}
	if threshold == numShares {
		result.Warnings = append(result.Warnings, "threshold equals number of shares - no fault tolerance")
	}

	return result
}

// ValidateParticipants rejects empty lists and zero, out-of-range or
// duplicate indices. A numShares of zero skips the range check. Err
// reports ErrInvalidIndex or ErrDuplicateParticipants.
func ValidateParticipants(participants []PartyIndex, numShares int) *ValidationResult {
	result := newValidationResult()

	if len(participants) == 0 {
		result.failWith(ErrInvalidMessage, "participant list cannot be empty")
		return result
	}

	seen := make(map[PartyIndex]bool, len(participants))
	var duplicates []PartyIndex
	for _, p := range participants {
		switch {
		case p == 0:
			result.failWith(ErrInvalidIndex, "participant index 0 is reserved")
		case numShares > 0 && !p.Valid(numShares):
			result.failWith(ErrInvalidIndex, "participant %d outside [1, %d]", p, numShares)
		}
		if seen[p] {
			duplicates = append(duplicates, p)
		}
		seen[p] = true
	}
	if len(duplicates) > 0 {
		result.failWith(ErrDuplicateParticipants, "duplicate participants found: %v", duplicates)
	}

	return result
}

// SecurityAssessment summarizes what a (threshold, numShares) choice tolerates.
type SecurityAssessment struct {
	OverallRating           SecurityLevel `json:"overall_rating"`
	ByzantineFaultTolerance bool          `json:"byzantine_fault_tolerance"`
	FaultTolerance          int           `json:"fault_tolerance"`   // parties that may be offline
	AttackResistance        int           `json:"attack_resistance"` // parties needed to forge
	AvailabilityRisk        string        `json:"availability_risk"`
}

// AssessSecurity rates a (threshold, numShares) pair.
func AssessSecurity(numShares, threshold int) *SecurityAssessment {
	if numShares <= 0 || threshold <= 0 || threshold > numShares {
		return &SecurityAssessment{
			OverallRating:    SecurityLevelLow,
			AvailabilityRisk: "critical - invalid parameters",
		}
	}

	faultTolerance := numShares - threshold
	assessment := &SecurityAssessment{
		FaultTolerance:          faultTolerance,
		AttackResistance:        threshold,
		ByzantineFaultTolerance: threshold >= int(math.Ceil(float64(numShares)*DefaultByzantineRatio)),
	}

	ratio := float64(threshold) / float64(numShares)
	switch {
	case ratio < 0.5:
		assessment.OverallRating = SecurityLevelLow
	case ratio >= DefaultByzantineRatio:
		assessment.OverallRating = SecurityLevelHigh
	default:
		assessment.OverallRating = SecurityLevelMedium
	}

	switch {
	case faultTolerance == 0:
		assessment.AvailabilityRisk = "critical - no fault tolerance"
	case faultTolerance == 1:
		assessment.AvailabilityRisk = "high - single point of failure"
	case faultTolerance <= 3:
		assessment.AvailabilityRisk = "medium - limited fault tolerance"
	default:
		assessment.AvailabilityRisk = "low - good fault tolerance"
	}

	return assessment
}
