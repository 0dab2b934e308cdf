package tech

import "fmt"

// Product is a named material token flowing between technologies.
// Equality and map-key behavior are by name only.
type Product struct {
	Name string `json:"name"`
}

// Transfer describes how a technology partitions each incoming substance
// between its outputs and named loss pathways.
//
// For every substance present in Substances, ToOutputs plus the sum of
// the Losses fractions must equal 1. Substances with no entry pass
// through to outputs unchanged (for a sink, "unchanged" means retained,
// i.e. recovered at the sink).
type Transfer struct {
	// Reliability is the Dirichlet concentration used in Monte Carlo
	// sampling. Larger values tighten draws around the nominal
	// fractions. Zero means DefaultReliability.
	Reliability float64          `json:"reliability,omitempty"`
	Substances  map[string]Split `json:"substances,omitempty"`
}

// DefaultReliability is the concentration assumed when a technology
// does not declare one.
const DefaultReliability = 50.0

// Split is the per-substance partition of incoming mass.
type Split struct {
	ToOutputs float64            `json:"to_outputs"`
	Losses    map[string]float64 `json:"losses,omitempty"` // pathway name -> fraction
}

// Technology is an immutable processing node: ordered input Products,
// ordered output Products, a display name, a group tag, and transfer
// behavior. Zero inputs makes it a source; zero outputs a sink.
//
// Technology names are unique within a pool (catalog contract); the
// name alone is the membership key inside a System.
type Technology struct {
	Name     string    `json:"name"`
	Group    string    `json:"group"`
	Inputs   []Product `json:"inputs,omitempty"`
	Outputs  []Product `json:"outputs,omitempty"`
	Transfer Transfer  `json:"transfer,omitempty"`
}

// NewTechnology constructs a Technology that owns copies of the input
// and output slices; callers may reuse or mutate their arguments after
// the call.
func NewTechnology(name, group string, inputs, outputs []Product, transfer Transfer) Technology {
	t := Technology{
		Name:     name,
		Group:    group,
		Transfer: transfer.clone(),
	}
	if len(inputs) > 0 {
		t.Inputs = make([]Product, len(inputs))
		copy(t.Inputs, inputs)
	}
	if len(outputs) > 0 {
		t.Outputs = make([]Product, len(outputs))
		copy(t.Outputs, outputs)
	}
	return t
}

// IsSource reports whether the technology consumes nothing.
func (t Technology) IsSource() bool { return len(t.Inputs) == 0 }

// IsSink reports whether the technology produces nothing.
func (t Technology) IsSink() bool { return len(t.Outputs) == 0 }

// Produces reports whether p appears among the technology's outputs.
func (t Technology) Produces(p Product) bool {
	for _, out := range t.Outputs {
		if out == p {
			return true
		}
	}
	return false
}

// Consumes reports whether p appears among the technology's inputs.
func (t Technology) Consumes(p Product) bool {
	for _, in := range t.Inputs {
		if in == p {
			return true
		}
	}
	return false
}

// ReliabilityOrDefault returns the declared concentration or
// DefaultReliability when none is set.
func (t Technology) ReliabilityOrDefault() float64 {
	if t.Transfer.Reliability > 0 {
		return t.Transfer.Reliability
	}
	return DefaultReliability
}

func (tr Transfer) clone() Transfer {
	out := Transfer{Reliability: tr.Reliability}
	if tr.Substances != nil {
		out.Substances = make(map[string]Split, len(tr.Substances))
		for sub, split := range tr.Substances {
			out.Substances[sub] = split.clone()
		}
	}
	return out
}

func (s Split) clone() Split {
	out := Split{ToOutputs: s.ToOutputs}
	if s.Losses != nil {
		out.Losses = make(map[string]float64, len(s.Losses))
		for pathway, f := range s.Losses {
			out.Losses[pathway] = f
		}
	}
	return out
}

// Connection is a realized edge: one unit of Product flows from the
// upstream technology's output to the downstream technology's input.
// Endpoints are technology names. Connections are created only by the
// synthesis engine and are immutable once created.
type Connection struct {
	Product    Product `json:"product"`
	Upstream   string  `json:"upstream"`
	Downstream string  `json:"downstream"`
}

// System is the node-state of the synthesis search: an ordered sequence
// of stages (stage 0 holds the chosen source), the Connections realizing
// its flows, and a Complete flag. Complete is terminal: once set, all
// structural mutation is forbidden.
//
// A partial System is exclusively owned by one branch of the search
// tree; branches Clone before mutating so siblings evolve independently.
type System struct {
	// ID is assigned at completion (UUIDv7). Empty on partial systems.
	ID          string          `json:"id,omitempty"`
	Stages      [][]Technology  `json:"stages"`
	Connections []Connection    `json:"connections,omitempty"`
	Complete    bool            `json:"complete"`
	Result      *MassflowResult `json:"result,omitempty"`
}

// NewSystem starts a System with the given technologies as stage 0.
func NewSystem(sources ...Technology) *System {
	stage := make([]Technology, len(sources))
	copy(stage, sources)
	return &System{Stages: [][]Technology{stage}}
}

// Technologies returns every technology in stage order. The returned
// slice is freshly allocated; the Technology values are shared (they
// are immutable).
func (s *System) Technologies() []Technology {
	var out []Technology
	for _, stage := range s.Stages {
		out = append(out, stage...)
	}
	return out
}

// Technology looks up a member technology by name.
func (s *System) Technology(name string) (Technology, bool) {
	for _, stage := range s.Stages {
		for _, t := range stage {
			if t.Name == name {
				return t, true
			}
		}
	}
	return Technology{}, false
}

// Contains reports whether a technology with the given name is a member.
func (s *System) Contains(name string) bool {
	_, ok := s.Technology(name)
	return ok
}

// Size returns the number of member technologies.
func (s *System) Size() int {
	n := 0
	for _, stage := range s.Stages {
		n += len(stage)
	}
	return n
}

// Sources returns the technologies of stage 0.
func (s *System) Sources() []Technology {
	if len(s.Stages) == 0 {
		return nil
	}
	out := make([]Technology, len(s.Stages[0]))
	copy(out, s.Stages[0])
	return out
}

// Clone deep-copies the System: fresh stage and connection slices and a
// fresh Result. Technology values are shared - they are immutable.
func (s *System) Clone() *System {
	c := &System{
		ID:       s.ID,
		Complete: s.Complete,
	}
	c.Stages = make([][]Technology, len(s.Stages))
	for i, stage := range s.Stages {
		c.Stages[i] = make([]Technology, len(stage))
		copy(c.Stages[i], stage)
	}
	if len(s.Connections) > 0 {
		c.Connections = make([]Connection, len(s.Connections))
		copy(c.Connections, s.Connections)
	}
	if s.Result != nil {
		c.Result = s.Result.Clone()
	}
	return c
}

// Validate checks the structural invariant: every Connection endpoint
// names a technology present in the stages. A violation means a
// synthesis bug, not bad caller input.
func (s *System) Validate() error {
	for _, conn := range s.Connections {
		if !s.Contains(conn.Upstream) {
			return fmt.Errorf("connection %q %s->%s: upstream technology not in system", conn.Product.Name, conn.Upstream, conn.Downstream)
		}
		if !s.Contains(conn.Downstream) {
			return fmt.Errorf("connection %q %s->%s: downstream technology not in system", conn.Product.Name, conn.Upstream, conn.Downstream)
		}
	}
	return nil
}
