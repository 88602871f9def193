package drawer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/template"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/askiada/go-pipeline-services/internal/store"
	"github.com/askiada/go-pipeline-services/pkg/pipeline/measure"
	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// DOTDrawer is a drawer that writes the pipeline graph in the DOT language.
type DOTDrawer struct {
	graph graph.Graph[string, model.StepInfo]
	store *store.StepStore
}

// NewDOTDrawer creates a new DOT drawer.
func NewDOTDrawer() *DOTDrawer {
	st := store.NewStepStore()

	return &DOTDrawer{
		graph: graph.NewWithStore(vertexName, st, graph.Directed()),
		store: st,
	}
}

func vertexName(step model.StepInfo) string {
	if step.Index < 0 {
		return step.Name
	}

	return step.DisplayName()
}

// AddStep adds a step to the pipeline graph.
func (d *DOTDrawer) AddStep(step model.StepInfo) error {
	err := d.graph.AddVertex(step, graph.VertexAttribute("shape", shape(step)))
	if err != nil {
		return errors.Wrapf(err, "unable to add vertex %s", vertexName(step))
	}

	return nil
}

func shape(step model.StepInfo) string {
	switch {
	case step.Index < 0:
		return "circle"
	case step.Phase == model.PhaseMain:
		return "box"
	default:
		return "ellipse"
	}
}

// AddLink adds a link between two steps.
func (d *DOTDrawer) AddLink(from, to model.StepInfo) error {
	fromName, toName := vertexName(from), vertexName(to)

	err := d.graph.AddEdge(fromName, toName)
	if err != nil {
		return errors.Wrapf(err, "unable to add edge from %s to %s", fromName, toName)
	}

	return nil
}

// Draw writes the pipeline graph to wrt.
func (d *DOTDrawer) Draw(wrt io.Writer) error {
	err := d.dot(wrt)
	if err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}

	return nil
}

// WriteFile writes the pipeline graph to a new file.
func (d *DOTDrawer) WriteFile(fileName string) error {
	file, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", fileName)
	}
	defer file.Close()

	err = d.Draw(file)
	if err != nil {
		return errors.Wrapf(err, "unable to create dot file %s", fileName)
	}

	return nil
}

const maxRGB = 240

// AddMeasure colours every measured step from blue (fastest) to red (slowest), labels it
// with its average duration and adds the observed jumps as dashed edges.
func (d *DOTDrawer) AddMeasure(msr measure.Measure) error {
	allElapsed := make(map[time.Duration]string)
	sortedElapsed := []time.Duration{}

	for name, metric := range msr.AllMetrics() {
		if !d.store.Has(name) {
			continue
		}

		avg := metric.AVGDuration()
		if _, ok := allElapsed[avg]; ok {
			continue
		}

		allElapsed[avg] = ""

		sortedElapsed = append(sortedElapsed, avg)
	}

	sort.Slice(sortedElapsed, func(i, j int) bool {
		return sortedElapsed[i] > sortedElapsed[j]
	})

	if len(sortedElapsed) > 0 {
		maxValue := sortedElapsed[0]
		minValue := sortedElapsed[len(sortedElapsed)-1]

		for curr := range allElapsed {
			fraction := 1.0
			if maxValue > minValue {
				fraction = float64(curr-minValue) / float64(maxValue-minValue)
			}

			red := maxRGB * fraction
			blue := maxRGB - red

			colour, err := colors.RGB(uint8(red), 0, uint8(blue)) //nolint
			if err != nil {
				return errors.Wrap(err, "unable to get colour")
			}

			allElapsed[curr] = colour.ToHEX().String()
		}
	}

	err := d.updateSteps(msr, allElapsed)
	if err != nil {
		return errors.Wrap(err, "unable to update steps")
	}

	err = d.addJumps(msr)
	if err != nil {
		return errors.Wrap(err, "unable to add jumps")
	}

	return d.setRunTotals(msr)
}

func (d *DOTDrawer) updateSteps(msr measure.Measure, allElapsed map[time.Duration]string) error {
	for name, metric := range msr.AllMetrics() {
		if !d.store.Has(name) {
			continue
		}

		avg := metric.AVGDuration()
		label := fmt.Sprintf("avg %s, runs %d", avg, metric.Total())

		if metric.Errors() > 0 {
			label += ", errors " + strconv.FormatInt(metric.Errors(), 10)
		}

		err := d.store.UpdateVertex(name,
			graph.VertexAttribute("xlabel", label),
			graph.VertexAttribute("color", allElapsed[avg]),
		)
		if err != nil {
			return errors.Wrapf(err, "unable to update vertex %s", name)
		}
	}

	return nil
}

func (d *DOTDrawer) addJumps(msr measure.Measure) error {
	for from, targets := range msr.AllJumps() {
		for to, total := range targets {
			if !d.store.Has(from, to) {
				continue
			}

			attributes := []func(*graph.EdgeProperties){
				graph.EdgeAttribute("style", "dashed"),
				graph.EdgeAttribute("label", "jump x"+strconv.FormatInt(total, 10)),
				graph.EdgeAttribute("fontcolor", "blue"),
			}

			err := d.graph.AddEdge(from, to, attributes...)
			if errors.Is(err, graph.ErrEdgeAlreadyExists) {
				err = d.graph.UpdateEdge(from, to, attributes...)
			}

			if err != nil {
				return errors.Wrapf(err, "unable to add jump from %s to %s", from, to)
			}
		}
	}

	return nil
}

func (d *DOTDrawer) setRunTotals(msr measure.Measure) error {
	if msr.Runs() == 0 {
		return nil
	}

	label := fmt.Sprintf("avg %s, runs %d, short-circuits %d", msr.AVGRunDuration(), msr.Runs(), msr.ShortCircuits())

	err := d.store.UpdateVertex(vertexName(model.EndStep), graph.VertexAttribute("xlabel", label))
	if err != nil {
		return errors.Wrap(err, "unable to update end vertex")
	}

	return nil
}

//nolint:lll //this is a template
const dotTemplate = `strict {{.GraphType}} {
	{{range $k, $v := .Attributes}}
		{{$k}}="{{$v}}";
	{{end}}
	{{range $s := .Statements}}
		"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}" [ {{range $k, $v := .EdgeAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.EdgeWeight}} ]{{else}}[ {{range $k, $v := .HTMLAttributes}}{{$k}}={{$v}}, {{end}} {{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.SourceWeight}} ]{{end}};
	{{end}}
	}
	`

type description struct {
	GraphType    string
	Attributes   map[string]string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           interface{}
	Target           interface{}
	SourceAttributes map[string]string
	HTMLAttributes   map[string]string
	EdgeAttributes   map[string]string
	SourceWeight     int
	EdgeWeight       int
}

func (d *DOTDrawer) dot(wrt io.Writer) error {
	order, err := d.store.ListVertices()
	if err != nil {
		return errors.Wrap(err, "unable to list vertices")
	}

	desc, err := generateDOT(d.graph, order)
	if err != nil {
		return fmt.Errorf("failed to generate DOT description: %w", err)
	}

	return renderDOT(wrt, desc)
}

// generateDOT lists vertices in execution order and edges in name order so the output is
// stable.
func generateDOT(gra graph.Graph[string, model.StepInfo], order []string) (description, error) {
	desc := description{
		GraphType:    "graph",
		Attributes:   map[string]string{"rankdir": "LR"},
		EdgeOperator: "--",
		Statements:   make([]statement, 0),
	}

	if gra.Traits().IsDirected {
		desc.GraphType = "digraph"
		desc.EdgeOperator = "->"
	}

	adjacencyMap, err := gra.AdjacencyMap()
	if err != nil {
		return desc, errors.Wrap(err, "unable to get adjacency map")
	}

	for _, vertex := range order {
		_, sourceProperties, err := gra.VertexWithProperties(vertex)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}

		htmlAttributes := make(map[string]string)
		sourceAttributes := make(map[string]string, len(sourceProperties.Attributes))

		for k, v := range sourceProperties.Attributes {
			if k == "xlabel" {
				htmlAttributes["label"] = fmt.Sprintf(`<%+v <BR /> <FONT POINT-SIZE="12">%s</FONT>>`, vertex, v)
				continue
			}

			sourceAttributes[k] = v
		}

		desc.Statements = append(desc.Statements, statement{
			Source:           vertex,
			SourceWeight:     sourceProperties.Weight,
			SourceAttributes: sourceAttributes,
			HTMLAttributes:   htmlAttributes,
		})

		adjacencies := adjacencyMap[vertex]
		for _, adjacency := range sortedKeys(adjacencies) {
			edge := adjacencies[adjacency]
			desc.Statements = append(desc.Statements, statement{
				Source:         vertex,
				Target:         adjacency,
				EdgeWeight:     edge.Properties.Weight,
				EdgeAttributes: edge.Properties.Attributes,
			})
		}
	}

	return desc, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func renderDOT(wrt io.Writer, desc description) error {
	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	err = tpl.Execute(wrt, desc)
	if err != nil {
		return errors.Wrap(err, "unable to execute template")
	}

	return nil
}

var _ Drawer = (*DOTDrawer)(nil)
