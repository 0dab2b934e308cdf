package synth

import "sanigraph/internal/tech"

// Port identifies one side of an open flow: a product offered (or
// demanded) by a named technology. Counters are kept per port, never
// globally per product, so one output unit can never be consumed twice
// by way of a sibling technology offering the same product.
type Port struct {
	Technology string
	Product    tech.Product
}

// OpenOutputs returns the multiset of unconsumed output units: for
// every technology in the system, one unit per declared output
// occurrence, minus one unit per Connection already consuming that
// product from that technology. Ports with no remaining units are
// absent from the map.
func OpenOutputs(sys *tech.System) map[Port]int {
	open := make(map[Port]int)
	for _, t := range sys.Technologies() {
		for _, out := range t.Outputs {
			open[Port{Technology: t.Name, Product: out}]++
		}
	}
	for _, conn := range sys.Connections {
		p := Port{Technology: conn.Upstream, Product: conn.Product}
		open[p]--
		if open[p] <= 0 {
			delete(open, p)
		}
	}
	return open
}

// OpenInputs returns the symmetric counter of unmet input demand.
// Non-empty open inputs at completion are recorded but never block
// completion: they are needs no available technology can satisfy.
func OpenInputs(sys *tech.System) map[Port]int {
	open := make(map[Port]int)
	for _, t := range sys.Technologies() {
		for _, in := range t.Inputs {
			open[Port{Technology: t.Name, Product: in}]++
		}
	}
	for _, conn := range sys.Connections {
		p := Port{Technology: conn.Downstream, Product: conn.Product}
		open[p]--
		if open[p] <= 0 {
			delete(open, p)
		}
	}
	return open
}

// Candidates returns the pool technologies not yet present in the
// system whose input products intersect the currently open outputs.
// The result preserves pool order, which keeps branching deterministic.
func Candidates(sys *tech.System, pool []tech.Technology) []tech.Technology {
	offered := make(map[tech.Product]bool)
	for port, n := range OpenOutputs(sys) {
		if n > 0 {
			offered[port.Product] = true
		}
	}
	if len(offered) == 0 {
		return nil
	}

	var out []tech.Technology
	for _, cand := range pool {
		if sys.Contains(cand.Name) {
			continue
		}
		for _, in := range cand.Inputs {
			if offered[in] {
				out = append(out, cand)
				break
			}
		}
	}
	return out
}

// Extend returns a new System with candidate appended as the next
// stage. For every input product of candidate that appears among open
// outputs, one Connection is created from every technology currently
// offering that product (fan-in: multiple upstream producers all feed
// the new consumer), and each contributing open-output unit is
// decremented. Inputs with no open-output match remain open.
//
// The receiver is never mutated: the candidate lands on a private
// clone, so sibling branches of the search stay independent.
func Extend(sys *tech.System, candidate tech.Technology) *tech.System {
	next := sys.Clone()
	next.Stages = append(next.Stages, []tech.Technology{candidate})

	open := OpenOutputs(next)
	// Offer order must be deterministic: walk members in stage order,
	// not in map order.
	members := next.Technologies()

	for _, in := range candidate.Inputs {
		for _, member := range members {
			if member.Name == candidate.Name {
				continue
			}
			port := Port{Technology: member.Name, Product: in}
			if open[port] <= 0 {
				continue
			}
			next.Connections = append(next.Connections, tech.Connection{
				Product:    in,
				Upstream:   member.Name,
				Downstream: candidate.Name,
			})
			open[port]--
			if open[port] == 0 {
				delete(open, port)
			}
		}
	}
	return next
}
