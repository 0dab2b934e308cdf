package synth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanigraph/internal/tech"
)

// recordingSink collects emissions for assertions.
type recordingSink struct {
	systems []*tech.System
	fail    bool
}

func (s *recordingSink) Emit(sys *tech.System) error {
	if s.fail {
		return errors.New("sink unavailable")
	}
	s.systems = append(s.systems, sys)
	return nil
}

type recordingDiagnostics struct {
	sources []string
	reasons []string
}

func (d *recordingDiagnostics) Diagnose(source, reason string) error {
	d.sources = append(d.sources, source)
	d.reasons = append(d.reasons, reason)
	return nil
}

func TestEnumerateSingleSourceSinkPair(t *testing.T) {
	a := makeTestTech("A", "source", nil, []string{"x"})
	b := makeTestTech("B", "sink", []string{"x"}, nil)

	eng := New([]tech.Technology{a, b}, WithIDGenerator(NewFixedGenerator("sys-1")))
	systems, err := eng.Enumerate(context.Background(), a)
	require.NoError(t, err)

	require.Len(t, systems, 1, "exactly one complete system")
	sys := systems[0]
	assert.True(t, sys.Complete)
	assert.Equal(t, "sys-1", sys.ID)
	require.Len(t, sys.Stages, 2)
	assert.Equal(t, "A", sys.Stages[0][0].Name)
	assert.Equal(t, "B", sys.Stages[1][0].Name)
	require.Len(t, sys.Connections, 1)
	assert.Equal(t, tech.Connection{
		Product: tech.Product{Name: "x"}, Upstream: "A", Downstream: "B",
	}, sys.Connections[0])
	assert.NoError(t, sys.Validate())
}

func TestEnumerateBranchesPerCandidate(t *testing.T) {
	// A's single x unit can go to either T1 or T2, never both: the
	// search must branch and yield two alternative systems.
	a := makeTestTech("A", "source", nil, []string{"x"})
	t1 := makeTestTech("T1", "treatment", []string{"x"}, []string{"y"})
	t2 := makeTestTech("T2", "treatment", []string{"x"}, []string{"y"})
	s := makeTestTech("S", "sink", []string{"y"}, nil)

	eng := New([]tech.Technology{t1, t2, s})
	systems, err := eng.Enumerate(context.Background(), a)
	require.NoError(t, err)

	require.Len(t, systems, 2)
	var mids []string
	for _, sys := range systems {
		require.Equal(t, 3, sys.Size())
		assert.True(t, sys.Contains("S"))
		mids = append(mids, sys.Stages[1][0].Name)
	}
	sort.Strings(mids)
	assert.Equal(t, []string{"T1", "T2"}, mids)
}

func TestEnumerateFanInSystems(t *testing.T) {
	// Two producers of x can both feed C, or C can attach early and
	// take only the first producer's unit.
	a := makeTestTech("A", "source", nil, []string{"w", "w"})
	p1 := makeTestTech("P1", "treatment", []string{"w"}, []string{"x"})
	p2 := makeTestTech("P2", "treatment", []string{"w"}, []string{"x"})
	c := makeTestTech("C", "sink", []string{"x"}, nil)

	eng := New([]tech.Technology{p1, p2, c})
	systems, err := eng.Enumerate(context.Background(), a)
	require.NoError(t, err)

	require.Len(t, systems, 4)

	fanIn := 0
	for _, sys := range systems {
		intoC := 0
		for _, conn := range sys.Connections {
			if conn.Downstream == "C" {
				intoC++
			}
		}
		if intoC == 2 {
			fanIn++
		}
		assert.NoError(t, sys.Validate())
	}
	assert.Equal(t, 2, fanIn, "systems where C joined last receive fan-in from both producers")
}

func TestEnumerateDeterminism(t *testing.T) {
	a := makeTestTech("A", "source", nil, []string{"w", "w"})
	p1 := makeTestTech("P1", "treatment", []string{"w"}, []string{"x"})
	p2 := makeTestTech("P2", "treatment", []string{"w"}, []string{"x"})
	c := makeTestTech("C", "sink", []string{"x"}, nil)
	pool := []tech.Technology{p1, p2, c}

	hashes := func() []string {
		systems, err := New(pool).Enumerate(context.Background(), a)
		require.NoError(t, err)
		var hs []string
		for _, sys := range systems {
			hs = append(hs, sys.MustStructureHash())
		}
		return hs
	}

	assert.Equal(t, hashes(), hashes(), "re-running synthesis yields the same systems in the same order")
}

func TestEnumerateUnproductiveSource(t *testing.T) {
	a := makeTestTech("A", "source", nil, []string{"x"})
	unrelated := makeTestTech("B", "sink", []string{"y"}, nil)

	diags := &recordingDiagnostics{}
	eng := New([]tech.Technology{unrelated}, WithDiagnosticSink(diags))
	systems, err := eng.Enumerate(context.Background(), a)
	require.NoError(t, err, "an unusable source is a diagnostic, not an error")

	require.Len(t, systems, 1, "the trivial source-only system is still terminal")
	assert.True(t, systems[0].Complete)
	assert.Equal(t, 1, systems[0].Size())

	require.Len(t, diags.sources, 1)
	assert.Equal(t, "A", diags.sources[0])
	assert.NotEmpty(t, diags.reasons[0])
}

func TestEnumerateStreamsToResultSink(t *testing.T) {
	a := makeTestTech("A", "source", nil, []string{"x"})
	b := makeTestTech("B", "sink", []string{"x"}, nil)

	sink := &recordingSink{}
	eng := New([]tech.Technology{b}, WithResultSink(sink))
	systems, err := eng.Enumerate(context.Background(), a)
	require.NoError(t, err)

	require.Len(t, sink.systems, 1)
	assert.Same(t, systems[0], sink.systems[0], "sink sees the same system in discovery order")
}

func TestEnumerateSinkFailureDoesNotAbort(t *testing.T) {
	a := makeTestTech("A", "source", nil, []string{"x"})
	b := makeTestTech("B", "sink", []string{"x"}, nil)

	eng := New([]tech.Technology{b}, WithResultSink(&recordingSink{fail: true}))
	systems, err := eng.Enumerate(context.Background(), a)

	require.NoError(t, err, "sinks are observers; their failures are logged, not returned")
	assert.Len(t, systems, 1)
}

func TestEnumerateMaxSystemsCap(t *testing.T) {
	a := makeTestTech("A", "source", nil, []string{"w", "w"})
	p1 := makeTestTech("P1", "treatment", []string{"w"}, []string{"x"})
	p2 := makeTestTech("P2", "treatment", []string{"w"}, []string{"x"})
	c := makeTestTech("C", "sink", []string{"x"}, nil)

	eng := New([]tech.Technology{p1, p2, c}, WithMaxSystems(2))
	systems, err := eng.Enumerate(context.Background(), a)

	require.Error(t, err)
	assert.True(t, IsMaxSystemsExceededError(err))
	assert.Len(t, systems, 2, "systems found before the cap are still returned")

	var me *MaxSystemsExceededError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "A", me.Source)
	assert.Equal(t, 2, me.Limit)
}

func TestEnumerateContextCancellation(t *testing.T) {
	a := makeTestTech("A", "source", nil, []string{"x"})
	b := makeTestTech("B", "sink", []string{"x"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New([]tech.Technology{b}).Enumerate(ctx, a)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnumerateAll(t *testing.T) {
	a1 := makeTestTech("A1", "source", nil, []string{"x"})
	a2 := makeTestTech("A2", "source", nil, []string{"y"})
	b := makeTestTech("B", "sink", []string{"x"}, nil)
	c := makeTestTech("C", "sink", []string{"y"}, nil)

	eng := New([]tech.Technology{b, c})
	bySource, err := eng.EnumerateAll(context.Background(), []tech.Technology{a1, a2})
	require.NoError(t, err)

	require.Len(t, bySource, 2)
	assert.Len(t, bySource["A1"], 1)
	assert.Len(t, bySource["A2"], 1)
	assert.True(t, bySource["A1"][0].Contains("B"))
	assert.True(t, bySource["A2"][0].Contains("C"))
}

func TestPoolIsCopied(t *testing.T) {
	a := makeTestTech("A", "source", nil, []string{"x"})
	pool := []tech.Technology{makeTestTech("B", "sink", []string{"x"}, nil)}

	eng := New(pool)
	pool[0] = makeTestTech("Z", "sink", []string{"nothing"}, nil)

	systems, err := eng.Enumerate(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, systems, 1)
	assert.True(t, systems[0].Contains("B"), "mutating the caller's pool must not reach the engine")
}

func TestUniqueIDsAcrossSystems(t *testing.T) {
	a := makeTestTech("A", "source", nil, []string{"x"})
	t1 := makeTestTech("T1", "treatment", []string{"x"}, []string{"y"})
	t2 := makeTestTech("T2", "treatment", []string{"x"}, []string{"y"})
	s := makeTestTech("S", "sink", []string{"y"}, nil)

	systems, err := New([]tech.Technology{t1, t2, s}).Enumerate(context.Background(), a)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, sys := range systems {
		require.NotEmpty(t, sys.ID)
		require.False(t, seen[sys.ID], "duplicate id %s", sys.ID)
		seen[sys.ID] = true
	}
}

func ExampleEngine_Enumerate() {
	source := tech.NewTechnology("A", "source", nil, []tech.Product{{Name: "x"}}, tech.Transfer{})
	sink := tech.NewTechnology("B", "sink", []tech.Product{{Name: "x"}}, nil, tech.Transfer{})

	eng := New([]tech.Technology{sink}, WithIDGenerator(NewFixedGenerator("sys-1")))
	systems, _ := eng.Enumerate(context.Background(), source)

	for _, sys := range systems {
		fmt.Printf("%d technologies, %d connections\n", sys.Size(), len(sys.Connections))
	}
	// Output: 2 technologies, 1 connections
}
