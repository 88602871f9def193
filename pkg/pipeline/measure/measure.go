package measure

import (
	"sync"
	"time"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// DefaultMeasure keeps metrics in memory. It is safe for concurrent runs.
type DefaultMeasure struct {
	mu            sync.Mutex
	steps         map[string]Metric
	jumps         map[string]map[string]int64
	runElapsed    time.Duration
	runs          int64
	shortCircuits int64
}

func NewDefaultMeasure() *DefaultMeasure {
	return &DefaultMeasure{
		steps: make(map[string]Metric),
		jumps: make(map[string]map[string]int64),
	}
}

func (m *DefaultMeasure) AddMetric(step model.StepInfo) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := step.DisplayName()
	if mt, ok := m.steps[name]; ok {
		return mt
	}

	mt := &DefaultMetric{
		mu:   &sync.Mutex{},
		step: step,
	}
	m.steps[name] = mt

	return mt
}

func (m *DefaultMeasure) GetMetric(name string) Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.steps[name]
}

func (m *DefaultMeasure) AllMetrics() map[string]Metric {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Metric, len(m.steps))
	for name, mt := range m.steps {
		out[name] = mt
	}

	return out
}

func (m *DefaultMeasure) AddJump(from, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.jumps[from] == nil {
		m.jumps[from] = make(map[string]int64)
	}

	m.jumps[from][to]++
}

func (m *DefaultMeasure) AllJumps() map[string]map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]map[string]int64, len(m.jumps))
	for from, targets := range m.jumps {
		out[from] = make(map[string]int64, len(targets))
		for to, total := range targets {
			out[from][to] = total
		}
	}

	return out
}

func (m *DefaultMeasure) AddRun(elapsed time.Duration, shortCircuited bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs++
	m.runElapsed += elapsed

	if shortCircuited {
		m.shortCircuits++
	}
}

func (m *DefaultMeasure) Runs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.runs
}

func (m *DefaultMeasure) ShortCircuits() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.shortCircuits
}

func (m *DefaultMeasure) AVGRunDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.runs == 0 {
		return 0
	}

	return round(time.Duration(float64(m.runElapsed) / float64(m.runs)))
}

var _ Measure = (*DefaultMeasure)(nil)
