// Package validate checks the audit record of every custody-transfer state
// transition with the same bounded-input, monotonic-time, hash-chain
// discipline the original containment kernel applied to escalation
// decisions — repurposed here for the state-transition records that flow
// into the historian's audit trail. Setpoint updates do not pass through
// it.
package validate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ViolationType classifies a rejected transition or setpoint update.
type ViolationType string

const (
	ViolationNonMonotonicTime ViolationType = "non_monotonic_time"
	ViolationNaNInf           ViolationType = "nan_inf_value"
	ViolationUnboundedValue   ViolationType = "unbounded_value"
)

// Violation reports why a TransitionRecord was rejected.
type Violation struct {
	Type      ViolationType
	Message   string
	Timestamp time.Time
}

func (v *Violation) Error() string {
	return fmt.Sprintf("transition rejected [%s]: %s", v.Type, v.Message)
}

// TransitionRecord is one custody-transfer state transition, or one
// setpoint update, captured for validation and audit. Values holds the
// setpoint fields (or, for a state transition, the process values) in
// effect at the moment of the transition.
type TransitionRecord struct {
	FromState  string             `json:"from_state"`
	ToState    string             `json:"to_state"`
	Timestamp  time.Time          `json:"timestamp"`
	Values     map[string]float64 `json:"values"`
	Hash       string             `json:"hash"`
	ParentHash string             `json:"parent_hash"`
}

// Validator enforces bounded inputs, forward-only time, and a SHA-256
// hash chain over every transition it is asked to validate. It has no
// opinion on which transitions are legal — internal/statemachine's own
// table owns that — this only guards the data recorded alongside one.
type Validator struct {
	mu          sync.Mutex
	lastTime    time.Time
	lastHash    string
	valueBounds [2]float64 // [min, max], applied to every captured value
	validated   int64
	violations  int64
	log         *zap.Logger
}

// New creates a Validator. Captured values are expected to fall within
// [-1e9, 1e9]; anything outside that is almost certainly a unit error or
// an uninitialized tag rather than a real process value.
func New(log *zap.Logger) *Validator {
	return &Validator{
		lastTime:    time.Now(),
		valueBounds: [2]float64{-1e9, 1e9},
		log:         log,
	}
}

// Validate checks a TransitionRecord and, on success, stamps it with its
// hash and the previous record's hash, chaining it into the running
// ledger. Time must not move backwards across calls; every captured
// value must be finite and within bounds.
func (v *Validator) Validate(rec *TransitionRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if rec.Timestamp.Before(v.lastTime) {
		return v.reject(&Violation{
			Type:      ViolationNonMonotonicTime,
			Message:   fmt.Sprintf("transition timestamp %s precedes last recorded %s", rec.Timestamp, v.lastTime),
			Timestamp: time.Now(),
		})
	}

	for name, val := range rec.Values {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return v.reject(&Violation{
				Type:      ViolationNaNInf,
				Message:   fmt.Sprintf("%s is NaN or Inf", name),
				Timestamp: time.Now(),
			})
		}
		if val < v.valueBounds[0] || val > v.valueBounds[1] {
			return v.reject(&Violation{
				Type:      ViolationUnboundedValue,
				Message:   fmt.Sprintf("%s=%.4f outside bounds [%.0f, %.0f]", name, val, v.valueBounds[0], v.valueBounds[1]),
				Timestamp: time.Now(),
			})
		}
	}

	hash, err := v.hash(rec)
	if err != nil {
		return fmt.Errorf("validate: compute hash: %w", err)
	}
	rec.Hash = hash
	rec.ParentHash = v.lastHash

	v.lastHash = hash
	v.lastTime = rec.Timestamp
	v.validated++
	return nil
}

func (v *Validator) hash(rec *TransitionRecord) (string, error) {
	canonical := map[string]any{
		"from":      rec.FromState,
		"to":        rec.ToState,
		"timestamp": rec.Timestamp.UnixNano(),
		"values":    rec.Values,
	}
	data, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (v *Validator) reject(violation *Violation) error {
	v.violations++
	if v.log != nil {
		v.log.Warn("transition validation failed",
			zap.String("type", string(violation.Type)),
			zap.String("message", violation.Message))
	}
	return violation
}

// Stats summarizes the validator's lifetime activity.
type Stats struct {
	Validated  int64
	Violations int64
	LastHash   string
}

// Stats returns a snapshot of validator counters.
func (v *Validator) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Stats{Validated: v.validated, Violations: v.violations, LastHash: v.lastHash}
}
