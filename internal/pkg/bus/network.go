package bus

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_planner/internal/pkg/errs"
)

// Member is anything that attaches to buses: a technology unit.
type Member interface {
	PID() uuid.UUID
	Label() string
	Carrier() string
}

// Attachment records one port of a member on a bus.
type Attachment struct {
	Member Member
	Role   Role
}

type memberNode struct {
	m Member
}

func (n memberNode) PID() uuid.UUID { return n.m.PID() }
func (n memberNode) Name() string   { return n.m.Label() }

// ErrFrozen is returned when a frozen network is modified.
var ErrFrozen = errors.New("bus: network is frozen")

// Network is the carrier graph under construction. It is a registry queried
// by the model assembler and holds no balance logic.
type Network struct {
	graph   Graph
	buses   []*Bus
	byName  map[string]*Bus
	members map[uuid.UUID][]Attachment
	frozen  bool
}

// NewNetwork returns an empty network.
func NewNetwork() (*Network, error) {
	g, err := NewGraph()
	if err != nil {
		return nil, err
	}
	return &Network{
		graph:   g,
		byName:  make(map[string]*Bus),
		members: make(map[uuid.UUID][]Attachment),
	}, nil
}

// PID is an accessor for the network process id.
func (n *Network) PID() uuid.UUID {
	return n.graph.PID()
}

// CreateBus adds a named bus for carrier c. Names are unique.
func (n *Network) CreateBus(name string, c Carrier) (*Bus, error) {
	if n.frozen {
		return nil, ErrFrozen
	}
	if name == "" {
		return nil, errs.Build("", name, errors.New("bus name is empty"))
	}
	if _, exists := n.byName[name]; exists {
		return nil, errs.Build("", name, fmt.Errorf("bus %q already exists", name))
	}
	if c < Electricity || c > Fuel {
		return nil, errs.Build("", name, fmt.Errorf("bus %q has unknown carrier %v", name, c))
	}

	pid, err := uuid.NewUUID()
	if err != nil {
		return nil, err
	}
	b := &Bus{pid: pid, name: name, carrier: c}
	if err := n.graph.AddNode(b); err != nil {
		return nil, err
	}
	n.buses = append(n.buses, b)
	n.byName[name] = b
	return b, nil
}

// Attach connects m to b in the given role. The member's carrier tag, or the
// role itself for fixed-carrier roles, must match the bus carrier.
func (n *Network) Attach(m Member, b *Bus, role Role) error {
	if n.frozen {
		return ErrFrozen
	}
	if b == nil {
		return errs.Build(m.Label(), "", errors.New("port has no bus"))
	}
	if known, ok := n.byName[b.Name()]; !ok || known != b {
		return errs.Build(m.Label(), b.Name(), errors.New("bus is not part of this network"))
	}

	want, restricted, err := role.required(m.Carrier())
	if err != nil {
		return errs.Mismatch(m.Label(), b.Name(), "%v port: %v", role, err)
	}
	if restricted && want != b.Carrier() {
		return errs.Mismatch(m.Label(), b.Name(),
			"%v port needs a %v bus, bus carries %v", role, want, b.Carrier())
	}

	node := memberNode{m}
	if !n.graph.HasNode(node) {
		if err := n.graph.AddNode(node); err != nil {
			return err
		}
	}

	switch {
	case role == Exchange:
		if err := n.graph.AddDirectedEdge(b, node); err != nil {
			return err
		}
		err = n.graph.AddDirectedEdge(node, b)
	case role.Inbound():
		err = n.graph.AddDirectedEdge(b, node)
	default:
		err = n.graph.AddDirectedEdge(node, b)
	}
	if err != nil {
		return err
	}

	n.members[b.PID()] = append(n.members[b.PID()], Attachment{Member: m, Role: role})
	return nil
}

// Freeze rejects any further buses or attachments.
func (n *Network) Freeze() {
	n.frozen = true
}

// Frozen reports whether Freeze has been called.
func (n *Network) Frozen() bool {
	return n.frozen
}

// Buses returns the buses in creation order.
func (n *Network) Buses() []*Bus {
	out := make([]*Bus, len(n.buses))
	copy(out, n.buses)
	return out
}

// Bus looks up a bus by name.
func (n *Network) Bus(name string) (*Bus, bool) {
	b, ok := n.byName[name]
	return b, ok
}

// Members returns the attachments on b in attach order.
func (n *Network) Members(b *Bus) []Attachment {
	out := make([]Attachment, len(n.members[b.PID()]))
	copy(out, n.members[b.PID()])
	return out
}

// Suppliers returns the labels of members delivering energy into b.
func (n *Network) Suppliers(b *Bus) []string {
	preds := n.graph.Predecessors(b)
	out := make([]string, 0, len(preds))
	for _, p := range preds {
		out = append(out, p.Name())
	}
	return out
}

// Consumers returns the labels of members drawing energy from b.
func (n *Network) Consumers(b *Bus) []string {
	edges := n.graph.Edges(b)
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Name())
	}
	return out
}
