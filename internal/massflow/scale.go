package massflow

import "sanigraph/internal/tech"

// Scale returns an independently scaled copy of the system's attached
// mass-flow result: every statistic in every category multiplied by
// factor. The system and its attached result are untouched.
//
// A system without an attached result cannot be scaled; that is a
// precondition error, not a silent no-op.
func Scale(sys *tech.System, factor float64) (*tech.MassflowResult, error) {
	if err := requireResult(sys); err != nil {
		return nil, err
	}
	res := sys.Result.Clone()
	res.Scale(factor)
	return res, nil
}

// ScaleInto is Scale applied to the attached result itself.
func ScaleInto(sys *tech.System, factor float64) error {
	if err := requireResult(sys); err != nil {
		return err
	}
	sys.Result.Scale(factor)
	return nil
}

func requireResult(sys *tech.System) error {
	if sys == nil || sys.Result == nil {
		return NewPreconditionError(systemID(sys), "no mass-flow result attached to scale")
	}
	return nil
}
