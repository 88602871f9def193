// Package store keeps the graph of pipeline steps drawn by the drawer.
package store

import (
	"sort"
	"sync"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/askiada/go-pipeline-services/pkg/pipeline/model"
)

// StepStore is a graph.Store of steps keyed by their vertex name. Unlike the default
// store, vertex properties can be updated after the vertex was added.
type StepStore struct {
	lock             sync.RWMutex
	steps            map[string]model.StepInfo
	vertexProperties map[string]*graph.VertexProperties

	outEdges map[string]map[string]graph.Edge[string] // source -> target
	inEdges  map[string]map[string]graph.Edge[string] // target -> source
}

func NewStepStore() *StepStore {
	return &StepStore{
		steps:            make(map[string]model.StepInfo),
		vertexProperties: make(map[string]*graph.VertexProperties),
		outEdges:         make(map[string]map[string]graph.Edge[string]),
		inEdges:          make(map[string]map[string]graph.Edge[string]),
	}
}

func (s *StepStore) AddVertex(k string, step model.StepInfo, p graph.VertexProperties) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.steps[k]; ok {
		return graph.ErrVertexAlreadyExists
	}

	if p.Attributes == nil {
		p.Attributes = make(map[string]string)
	}

	s.steps[k] = step
	s.vertexProperties[k] = &p

	return nil
}

// ListVertices returns the vertex names in execution order: start, pre, main, post, end.
func (s *StepStore) ListVertices() ([]string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	hashes := make([]string, 0, len(s.steps))
	for k := range s.steps {
		hashes = append(hashes, k)
	}

	sort.Slice(hashes, func(i, j int) bool {
		return less(s.steps[hashes[i]], s.steps[hashes[j]])
	})

	return hashes, nil
}

func less(a, b model.StepInfo) bool {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra < rb
	}

	return a.Index < b.Index
}

func rank(step model.StepInfo) int {
	switch {
	case step == model.StartStep:
		return 0
	case step == model.EndStep:
		return 4
	case step.Phase == model.PhasePre:
		return 1
	case step.Phase == model.PhaseMain:
		return 2
	default:
		return 3
	}
}

func (s *StepStore) VertexCount() (int, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.steps), nil
}

func (s *StepStore) Vertex(k string) (model.StepInfo, graph.VertexProperties, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	step, ok := s.steps[k]
	if !ok {
		return step, graph.VertexProperties{}, graph.ErrVertexNotFound
	}

	return step, *s.vertexProperties[k], nil
}

// Has reports whether every name is a vertex.
func (s *StepStore) Has(names ...string) bool {
	s.lock.RLock()
	defer s.lock.RUnlock()

	for _, name := range names {
		if _, ok := s.steps[name]; !ok {
			return false
		}
	}

	return true
}

func (s *StepStore) RemoveVertex(k string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.steps[k]; !ok {
		return graph.ErrVertexNotFound
	}

	if len(s.inEdges[k]) > 0 || len(s.outEdges[k]) > 0 {
		return graph.ErrVertexHasEdges
	}

	delete(s.inEdges, k)
	delete(s.outEdges, k)
	delete(s.steps, k)
	delete(s.vertexProperties, k)

	return nil
}

// UpdateVertex applies options to the properties of vertex k.
func (s *StepStore) UpdateVertex(k string, options ...func(*graph.VertexProperties)) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	properties, ok := s.vertexProperties[k]
	if !ok {
		return graph.ErrVertexNotFound
	}

	for _, opt := range options {
		opt(properties)
	}

	return nil
}

func (s *StepStore) AddEdge(sourceHash, targetHash string, edge graph.Edge[string]) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.outEdges[sourceHash]; !ok {
		s.outEdges[sourceHash] = make(map[string]graph.Edge[string])
	}

	s.outEdges[sourceHash][targetHash] = edge

	if _, ok := s.inEdges[targetHash]; !ok {
		s.inEdges[targetHash] = make(map[string]graph.Edge[string])
	}

	s.inEdges[targetHash][sourceHash] = edge

	return nil
}

func (s *StepStore) UpdateEdge(sourceHash, targetHash string, edge graph.Edge[string]) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.outEdges[sourceHash][targetHash]; !ok {
		return graph.ErrEdgeNotFound
	}

	s.outEdges[sourceHash][targetHash] = edge
	s.inEdges[targetHash][sourceHash] = edge

	return nil
}

func (s *StepStore) RemoveEdge(sourceHash, targetHash string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.inEdges[targetHash], sourceHash)
	delete(s.outEdges[sourceHash], targetHash)

	return nil
}

func (s *StepStore) Edge(sourceHash, targetHash string) (graph.Edge[string], error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	edge, ok := s.outEdges[sourceHash][targetHash]
	if !ok {
		return graph.Edge[string]{}, graph.ErrEdgeNotFound
	}

	return edge, nil
}

func (s *StepStore) ListEdges() ([]graph.Edge[string], error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	res := make([]graph.Edge[string], 0)
	for _, edges := range s.outEdges {
		for _, edge := range edges {
			res = append(res, edge)
		}
	}

	return res, nil
}

// CreatesCycle reports whether an edge from source to target would close a loop, which is
// what a backward jump does. It walks the predecessors of source looking for target.
func (s *StepStore) CreatesCycle(source, target string) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	for _, k := range []string{source, target} {
		if _, ok := s.steps[k]; !ok {
			return false, errors.Wrapf(graph.ErrVertexNotFound, "step %s", k)
		}
	}

	visited := map[string]bool{}
	pending := []string{source}

	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if current == target {
			return true, nil
		}

		if visited[current] {
			continue
		}

		visited[current] = true

		for predecessor := range s.inEdges[current] {
			pending = append(pending, predecessor)
		}
	}

	return false, nil
}

var _ graph.Store[string, model.StepInfo] = (*StepStore)(nil)
