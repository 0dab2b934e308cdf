package export

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanigraph/internal/tech"
)

func goldenAsserter(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// makeChainSystem builds Household -> Septic Tank -> Soak Pit, with a
// greywater edge skipping the middle stage.
func makeChainSystem() *tech.System {
	household := tech.NewTechnology("Household", "source", nil,
		[]tech.Product{{Name: "blackwater"}, {Name: "greywater"}}, tech.Transfer{})
	septic := tech.NewTechnology("Septic Tank", "treatment",
		[]tech.Product{{Name: "blackwater"}},
		[]tech.Product{{Name: "effluent"}}, tech.Transfer{})
	soakPit := tech.NewTechnology("Soak Pit", "sink",
		[]tech.Product{{Name: "effluent"}, {Name: "greywater"}}, nil, tech.Transfer{})

	sys := tech.NewSystem(household)
	sys.Stages = append(sys.Stages, []tech.Technology{septic}, []tech.Technology{soakPit})
	sys.Connections = []tech.Connection{
		{Product: tech.Product{Name: "blackwater"}, Upstream: "Household", Downstream: "Septic Tank"},
		{Product: tech.Product{Name: "effluent"}, Upstream: "Septic Tank", Downstream: "Soak Pit"},
		{Product: tech.Product{Name: "greywater"}, Upstream: "Household", Downstream: "Soak Pit"},
	}
	sys.ID = "sys-chain"
	sys.Complete = true
	return sys
}

// makeDiamondSystem builds A -> {P1, P2} -> C with a two-node stage.
func makeDiamondSystem() *tech.System {
	w := tech.Product{Name: "w"}
	y := tech.Product{Name: "y"}
	a := tech.NewTechnology("A", "source", nil, []tech.Product{w, w}, tech.Transfer{})
	p1 := tech.NewTechnology("P1", "treatment", []tech.Product{w}, []tech.Product{y}, tech.Transfer{})
	p2 := tech.NewTechnology("P2", "treatment", []tech.Product{w}, []tech.Product{y}, tech.Transfer{})
	c := tech.NewTechnology("C", "sink", []tech.Product{y, y}, nil, tech.Transfer{})

	sys := tech.NewSystem(a)
	sys.Stages = append(sys.Stages, []tech.Technology{p1, p2}, []tech.Technology{c})
	sys.Connections = []tech.Connection{
		{Product: w, Upstream: "A", Downstream: "P1"},
		{Product: w, Upstream: "A", Downstream: "P2"},
		{Product: y, Upstream: "P1", Downstream: "C"},
		{Product: y, Upstream: "P2", Downstream: "C"},
	}
	sys.ID = "sys-diamond"
	sys.Complete = true
	return sys
}

func TestWriteDOTChain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, makeChainSystem()))

	goldenAsserter(t).Assert(t, "treatment_chain", buf.Bytes())
}

func TestWriteDOTParallelStages(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, makeDiamondSystem()))

	goldenAsserter(t).Assert(t, "parallel_treatment", buf.Bytes())
}

func TestWriteDOTConnectionOrderIndependent(t *testing.T) {
	sys := makeChainSystem()
	shuffled := makeChainSystem()
	for i, j := 0, len(shuffled.Connections)-1; i < j; i, j = i+1, j-1 {
		shuffled.Connections[i], shuffled.Connections[j] = shuffled.Connections[j], shuffled.Connections[i]
	}

	var a, b bytes.Buffer
	require.NoError(t, WriteDOT(&a, sys))
	require.NoError(t, WriteDOT(&b, shuffled))

	assert.Equal(t, a.String(), b.String(), "connection order must not change the rendering")
}

func TestWriteDOTEscapesQuotes(t *testing.T) {
	src := tech.NewTechnology(`Pit "A"`, "source", nil, []tech.Product{{Name: "x"}}, tech.Transfer{})
	sys := tech.NewSystem(src)

	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, sys))

	assert.Contains(t, buf.String(), `"Pit \"A\""`)
}

func TestWriteDOTNilSystem(t *testing.T) {
	var buf bytes.Buffer
	err := WriteDOT(&buf, nil)
	require.Error(t, err)
}
