package drawer

import (
	"github.com/pkg/errors"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// Describe adds the steps of a pipeline to drw, linked in execution order from the start
// step to the end step.
func Describe(drw Drawer, steps []model.StepInfo) error {
	err := drw.AddStep(model.StartStep)
	if err != nil {
		return errors.Wrap(err, "unable to add start step to drawer")
	}

	err = drw.AddStep(model.EndStep)
	if err != nil {
		return errors.Wrap(err, "unable to add end step to drawer")
	}

	parent := model.StartStep

	for _, step := range steps {
		err := drw.AddStep(step)
		if err != nil {
			return err
		}

		err = drw.AddLink(parent, step)
		if err != nil {
			return err
		}

		parent = step
	}

	err = drw.AddLink(parent, model.EndStep)
	if err != nil {
		return err
	}

	return nil
}
