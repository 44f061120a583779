// ABOUTME: GenerationState, the accumulating record threaded through all pipeline stages.
// ABOUTME: Holds stage outputs, attempt-versioned quality scores, cost accounting, and the error log.
package pipeline

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a pipeline run.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusPaused   Status = "paused"
	StatusBlocked  Status = "blocked"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// StageOutput is a stage-defined payload tagged with its schema kind.
// The orchestrator stores it opaquely; stages decode the payload they own.
type StageOutput struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// QualityScore records one gate evaluation of a stage's output. Repair
// attempts append new entries; entries are never overwritten.
type QualityScore struct {
	Attempt    int                `json:"attempt"`
	Score      float64            `json:"score"`
	Breakdown  map[string]float64 `json:"breakdown"`
	Verdict    string             `json:"verdict"`
	RecordedAt time.Time          `json:"recorded_at"`
}

// ErrorRecord is one entry in the append-only error log.
type ErrorRecord struct {
	Stage     string    `json:"stage"`
	Attempt   int       `json:"attempt"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// GenerationState is the single source of truth for a project's pipeline run.
// It is owned by the orchestrator for the duration of Run; the only field
// touched from concurrent fan-out work is the cost total, which AddCost
// guards. StageIndex, StageOutputs keys, and CostUSDSpent round-trip exactly
// through JSON.
type GenerationState struct {
	ProjectID     string                    `json:"project_id"`
	StageIndex    int                       `json:"stage_index"`
	StageOutputs  map[string]StageOutput    `json:"stage_outputs"`
	QualityScores map[string][]QualityScore `json:"quality_scores"`
	CostUSDSpent  float64                   `json:"cost_usd_spent"`
	Status        Status                    `json:"status"`
	ErrorLog      []ErrorRecord             `json:"error_log"`
	CreatedAt     time.Time                 `json:"created_at"`
	UpdatedAt     time.Time                 `json:"updated_at"`

	costMu sync.Mutex
}

// NewState creates a fresh GenerationState for a project. An empty projectID
// gets a generated UUID.
func NewState(projectID string) *GenerationState {
	if projectID == "" {
		projectID = uuid.NewString()
	}
	now := time.Now().UTC()
	return &GenerationState{
		ProjectID:     projectID,
		StageOutputs:  make(map[string]StageOutput),
		QualityScores: make(map[string][]QualityScore),
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AddCost increases the running cost total. Negative deltas are ignored so
// the total is monotone under all code paths.
func (s *GenerationState) AddCost(deltaUSD float64) {
	if deltaUSD <= 0 {
		return
	}
	s.costMu.Lock()
	s.CostUSDSpent += deltaUSD
	s.costMu.Unlock()
}

// Cost returns the running cost total.
func (s *GenerationState) Cost() float64 {
	s.costMu.Lock()
	defer s.costMu.Unlock()
	return s.CostUSDSpent
}

// SetOutput stores (or on repair, replaces) the payload for a stage.
func (s *GenerationState) SetOutput(stage string, out StageOutput) {
	if s.StageOutputs == nil {
		s.StageOutputs = make(map[string]StageOutput)
	}
	s.StageOutputs[stage] = out
	s.UpdatedAt = time.Now().UTC()
}

// Output returns the stored payload for a stage, if present.
func (s *GenerationState) Output(stage string) (StageOutput, bool) {
	out, ok := s.StageOutputs[stage]
	return out, ok
}

// AddQualityScore appends an attempt-versioned score for a stage.
func (s *GenerationState) AddQualityScore(stage string, qs QualityScore) {
	if s.QualityScores == nil {
		s.QualityScores = make(map[string][]QualityScore)
	}
	s.QualityScores[stage] = append(s.QualityScores[stage], qs)
	s.UpdatedAt = time.Now().UTC()
}

// LatestScore returns the most recent quality score for a stage.
func (s *GenerationState) LatestScore(stage string) (QualityScore, bool) {
	scores := s.QualityScores[stage]
	if len(scores) == 0 {
		return QualityScore{}, false
	}
	return scores[len(scores)-1], true
}

// RecordError appends a structured failure record to the error log.
func (s *GenerationState) RecordError(stage string, attempt int, kind ErrorKind, message string) {
	s.ErrorLog = append(s.ErrorLog, ErrorRecord{
		Stage:     stage,
		Attempt:   attempt,
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	s.UpdatedAt = time.Now().UTC()
}

// StageFailed reports whether the error log contains a permanent failure for
// the named stage. A non-blocking stage that permanently failed satisfies
// its dependents through this record rather than through an output.
func (s *GenerationState) StageFailed(stage string) bool {
	for _, rec := range s.ErrorLog {
		if rec.Stage == stage && rec.Kind == KindPermanent {
			return true
		}
	}
	return false
}

// Clone returns a deep copy with independent maps and slices.
func (s *GenerationState) Clone() *GenerationState {
	s.costMu.Lock()
	defer s.costMu.Unlock()

	c := &GenerationState{
		ProjectID:     s.ProjectID,
		StageIndex:    s.StageIndex,
		StageOutputs:  make(map[string]StageOutput, len(s.StageOutputs)),
		QualityScores: make(map[string][]QualityScore, len(s.QualityScores)),
		CostUSDSpent:  s.CostUSDSpent,
		Status:        s.Status,
		ErrorLog:      make([]ErrorRecord, len(s.ErrorLog)),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	for k, v := range s.StageOutputs {
		payload := make(json.RawMessage, len(v.Payload))
		copy(payload, v.Payload)
		c.StageOutputs[k] = StageOutput{Kind: v.Kind, Payload: payload}
	}
	for k, v := range s.QualityScores {
		scores := make([]QualityScore, len(v))
		copy(scores, v)
		c.QualityScores[k] = scores
	}
	copy(c.ErrorLog, s.ErrorLog)
	return c
}

// Marshal serializes the state as compact JSON. Compact output keeps the
// embedded stage payloads byte-identical across save/load cycles; indenting
// would reformat the raw payload bytes.
func (s *GenerationState) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalState deserializes a GenerationState from JSON.
func UnmarshalState(data []byte) (*GenerationState, error) {
	var st GenerationState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	if st.StageOutputs == nil {
		st.StageOutputs = make(map[string]StageOutput)
	}
	if st.QualityScores == nil {
		st.QualityScores = make(map[string][]QualityScore)
	}
	return &st, nil
}
