package bus

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Node is a vertex of the carrier graph: a bus or an attached unit.
type Node interface {
	PID() uuid.UUID
	Name() string
}

// Graph is a directed adjacency list. Edges run in the direction energy flows.
type Graph struct {
	pid            uuid.UUID
	nodes          map[uuid.UUID]Node
	adjacentcyList map[uuid.UUID][]Node
	order          []uuid.UUID
}

// NewGraph returns an empty graph with a fresh PID.
func NewGraph() (Graph, error) {
	pid, err := uuid.NewUUID()
	if err != nil {
		return Graph{}, err
	}

	return Graph{
		pid:            pid,
		nodes:          make(map[uuid.UUID]Node),
		adjacentcyList: make(map[uuid.UUID][]Node),
	}, nil
}

// PID is an accessor for the graph process id.
func (g Graph) PID() uuid.UUID {
	return g.pid
}

// AddNode inserts n. Each node may be added once.
func (g *Graph) AddNode(n Node) error {
	if _, exists := g.adjacentcyList[n.PID()]; exists {
		err := fmt.Sprintf("node %v already exists in graph.", n.Name())
		return errors.New(err)
	}
	g.nodes[n.PID()] = n
	g.adjacentcyList[n.PID()] = make([]Node, 0)
	g.order = append(g.order, n.PID())
	return nil
}

// HasNode reports whether n has been added.
func (g Graph) HasNode(n Node) bool {
	_, exists := g.adjacentcyList[n.PID()]
	return exists
}

// AddDirectedEdge records n1 -> n2. Both nodes must already exist.
func (g *Graph) AddDirectedEdge(n1 Node, n2 Node) error {
	edges1, exists := g.adjacentcyList[n1.PID()]
	if !exists {
		err := fmt.Sprintf("start node %v does not exist in graph.", n1.Name())
		return errors.New(err)
	}

	if _, exists := g.adjacentcyList[n2.PID()]; !exists {
		err := fmt.Sprintf("end node %v does not exist in graph.", n2.Name())
		return errors.New(err)
	}

	g.adjacentcyList[n1.PID()] = append(edges1, n2)
	return nil
}

// Edges returns the nodes n points to.
func (g Graph) Edges(n Node) []Node {
	if edges, exists := g.adjacentcyList[n.PID()]; exists {
		return edges
	}
	return make([]Node, 0)
}

// Predecessors returns the nodes pointing to n, in insertion order.
func (g Graph) Predecessors(n Node) []Node {
	preds := make([]Node, 0)
	for _, pid := range g.order {
		for _, e := range g.adjacentcyList[pid] {
			if e.PID() == n.PID() {
				preds = append(preds, g.nodes[pid])
				break
			}
		}
	}
	return preds
}
