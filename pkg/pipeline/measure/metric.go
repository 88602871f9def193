package measure

import (
	"sync"
	"time"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

type DefaultMetric struct {
	mu          *sync.Mutex
	step        model.StepInfo
	stepElapsed time.Duration
	total       int64
	failures    int64
	errors      int64
}

func (mt *DefaultMetric) Step() model.StepInfo {
	return mt.step
}

func (mt *DefaultMetric) AddDuration(elapsed time.Duration, success bool) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.total++
	mt.stepElapsed += elapsed

	if !success {
		mt.failures++
	}
}

// AddError counts an error recorded against the step, failed or not.
func (mt *DefaultMetric) AddError() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.errors++
}

func (mt *DefaultMetric) AVGDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if mt.total == 0 {
		return time.Duration(0)
	}

	return round(time.Duration(float64(mt.stepElapsed) / float64(mt.total)))
}

func (mt *DefaultMetric) Total() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.total
}

func (mt *DefaultMetric) Failures() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.failures
}

func (mt *DefaultMetric) Errors() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.errors
}

func round(d time.Duration) time.Duration {
	switch {
	case d > time.Hour:
		d = d.Round(time.Minute)
	case d > time.Second:
		d = d.Round(time.Millisecond)
	case d > time.Millisecond:
		d = d.Round(time.Microsecond)
	}

	return d
}
