// ABOUTME: Quality gate engine producing PASS, REPAIR, or BLOCK verdicts from per-metric thresholds.
// ABOUTME: AND-semantics across metrics; deficiencies are ordered worst-first for the repair loop.
package pipeline

import (
	"fmt"
	"sort"
)

// VerdictKind discriminates the gate's decision.
type VerdictKind string

const (
	VerdictPass   VerdictKind = "pass"
	VerdictRepair VerdictKind = "repair"
	VerdictBlock  VerdictKind = "block"
)

// Deficiency is one metric miss: the observed value fell below its threshold.
type Deficiency struct {
	Metric    string  `json:"metric"`
	Observed  float64 `json:"observed"`
	Threshold float64 `json:"threshold"`
}

// Verdict is the result of evaluating a stage's output.
type Verdict struct {
	Kind  VerdictKind
	Score float64
	// Deficiencies is populated on REPAIR, ordered worst-first so a repair
	// pass can address the most severe miss first.
	Deficiencies []Deficiency
	// Reason is populated on BLOCK for structural, unrepairable problems.
	Reason string
	// Breakdown holds every metric's observed value regardless of verdict.
	Breakdown map[string]float64
}

// Gate inspects a stage's output against the accumulated state. Evaluate
// must be deterministic and side-effect-free for a given (output, state)
// pair so repair history is reproducible.
type Gate interface {
	Evaluate(stage string, out StageOutput, state *GenerationState) Verdict
}

// MeasureFunc computes one normalized metric in [0,1] from a stage output.
// A returned error marks the deficiency as structural: the gate blocks
// instead of requesting repair.
type MeasureFunc func(out StageOutput, state *GenerationState) (float64, error)

// Metric pairs a named measurement with its passing threshold.
type Metric struct {
	Name      string
	Threshold float64
	Measure   MeasureFunc
}

// MetricGate evaluates a set of metrics with AND-semantics: the verdict is
// PASS only if every metric independently meets its threshold. A single
// critical miss is never averaged away.
type MetricGate struct {
	Metrics []Metric
}

// NewMetricGate creates a gate over the given metrics.
func NewMetricGate(metrics ...Metric) *MetricGate {
	return &MetricGate{Metrics: metrics}
}

// Evaluate measures every metric. Structural failures (a measure returning
// an error) produce BLOCK; threshold misses produce REPAIR with deficiencies
// sorted by severity (largest gap first, name as tie-break).
func (g *MetricGate) Evaluate(stage string, out StageOutput, state *GenerationState) Verdict {
	breakdown := make(map[string]float64, len(g.Metrics))
	var deficiencies []Deficiency
	score := 1.0

	for _, m := range g.Metrics {
		observed, err := m.Measure(out, state)
		if err != nil {
			return Verdict{
				Kind:      VerdictBlock,
				Reason:    fmt.Sprintf("metric %q on stage %q is structurally unmeasurable: %v", m.Name, stage, err),
				Breakdown: breakdown,
			}
		}
		breakdown[m.Name] = observed
		if observed < score {
			score = observed
		}
		if observed < m.Threshold {
			deficiencies = append(deficiencies, Deficiency{
				Metric:    m.Name,
				Observed:  observed,
				Threshold: m.Threshold,
			})
		}
	}

	if len(deficiencies) == 0 {
		return Verdict{Kind: VerdictPass, Score: score, Breakdown: breakdown}
	}

	sort.Slice(deficiencies, func(a, b int) bool {
		gapA := deficiencies[a].Threshold - deficiencies[a].Observed
		gapB := deficiencies[b].Threshold - deficiencies[b].Observed
		if gapA != gapB {
			return gapA > gapB
		}
		return deficiencies[a].Metric < deficiencies[b].Metric
	})

	return Verdict{Kind: VerdictRepair, Score: score, Deficiencies: deficiencies, Breakdown: breakdown}
}
