package drawer

import (
	"io"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/measure"
	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// Drawer is an interface that defines the methods for drawing a pipeline.
type Drawer interface {
	// AddStep adds a step to the pipeline drawer.
	AddStep(step model.StepInfo) error
	// AddLink adds a link between two steps.
	AddLink(from, to model.StepInfo) error
	// AddMeasure decorates the steps with the measured durations and adds the observed jumps.
	AddMeasure(measure measure.Measure) error
	// Draw writes the pipeline graph.
	Draw(w io.Writer) error
}
