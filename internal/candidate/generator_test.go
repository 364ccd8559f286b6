package candidate

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/nucleate/grid"
	"github.com/arloliu/nucleate/internal/domaintest"
	"github.com/arloliu/nucleate/internal/geometry"
	"github.com/arloliu/nucleate/internal/metrics"
	"github.com/arloliu/nucleate/types"
)

type recordingMetrics struct {
	metrics.NopMetrics
	clamped  map[int]int
	rejected map[string]int
	scanned  int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{clamped: map[int]int{}, rejected: map[string]int{}}
}

func (r *recordingMetrics) RecordProbabilityClamped(op int) { r.clamped[op]++ }
func (r *recordingMetrics) RecordPositionRejected(reason string) { r.rejected[reason]++ }
func (r *recordingMetrics) RecordCellsScanned(count int) { r.scanned += count }

func shapes2D(t *testing.T, extent float64, ops ...geometry.OrderParameter) *geometry.Set {
	t.Helper()
	set, err := geometry.NewSet([]float64{extent, extent}, ops)
	require.NoError(t, err)

	return set
}

func op0(border float64) geometry.OrderParameter {
	return geometry.OrderParameter{
		Index:           0,
		Periodic:        []bool{false, false},
		BorderThickness: border,
		Semiaxes:        []float64{2, 2},
		FreezeSemiaxes:  []float64{3, 3},
		HoldTime:        4,
	}
}

func constant(p float64) types.ProbabilityFunc {
	return func(map[int]float64, float64, types.Point, int) float64 { return p }
}

func TestGenerator_EndToEndSingleCandidate(t *testing.T) {
	const cellWidth = 4.0

	// only the cell containing (50, 50) has a non-zero probability
	oracle := types.ProbabilityFunc(func(_ map[int]float64, _ float64, center types.Point, _ int) float64 {
		if math.Abs(center[0]-50) <= cellWidth/2 && math.Abs(center[1]-50) <= cellWidth/2 {
			return 1.0
		}

		return 0.0
	})

	for seed := range uint64(20) {
		mesh, err := grid.New(grid.Config{
			Size:          []float64{100, 100},
			Subdivisions:  []int{25, 25},
			PointsPerAxis: 2,
		})
		require.NoError(t, err)
		mesh.SetField(0, func(types.Point) float64 { return 0 })

		gen, err := New(
			Config{NeededVariables: []int{0}, OrderParameterCutoff: 0.01},
			shapes2D(t, 100, op0(5)),
			mesh.View(0),
			oracle,
			rand.New(rand.NewPCG(seed, seed+1)),
			nil, nil,
		)
		require.NoError(t, err)

		batch, err := gen.Generate(context.Background(), types.Clock{Time: 0.5, Increment: 5}, nil)
		require.NoError(t, err)
		require.Len(t, batch, 1, "seed %d", seed)

		n := batch[0]
		require.Equal(t, 0, n.ID)
		require.Equal(t, 0, n.OrderParameter)
		require.InDelta(t, 0.5, n.SeededTime, 0)
		require.Equal(t, 5, n.SeededStep)
		require.InDelta(t, 4.0, n.HoldTime, 0)
		require.Equal(t, []float64{2, 2}, n.Semiaxes)
		for a := range 2 {
			require.GreaterOrEqual(t, n.Center[a], 5.0)
			require.LessOrEqual(t, n.Center[a], 95.0)
			require.GreaterOrEqual(t, n.Center[a], 48.0)
			require.LessOrEqual(t, n.Center[a], 52.0)
		}

		stats := gen.LastStats()
		require.Equal(t, 625, stats.CellsScanned)
		require.Equal(t, 1, stats.Sites)
	}
}

func TestClearOfBorder(t *testing.T) {
	extent := []float64{100, 100}
	nonPeriodic := []bool{false, false}

	tests := []struct {
		name     string
		pos      types.Point
		periodic []bool
		want     bool
	}{
		{name: "exactly at lower margin", pos: types.Point{5, 50}, periodic: nonPeriodic, want: true},
		{name: "exactly at upper margin", pos: types.Point{50, 95}, periodic: nonPeriodic, want: true},
		{name: "strictly inside lower margin", pos: types.Point{4.999, 50}, periodic: nonPeriodic, want: false},
		{name: "strictly inside upper margin", pos: types.Point{50, 95.001}, periodic: nonPeriodic, want: false},
		{name: "interior", pos: types.Point{50, 50}, periodic: nonPeriodic, want: true},
		{name: "periodic axis ignores margin", pos: types.Point{0.5, 50}, periodic: []bool{true, false}, want: true},
		{name: "missing flags are non-periodic", pos: types.Point{50, 1}, periodic: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ClearOfBorder(tt.pos, extent, tt.periodic, 5))
		})
	}
}

func TestGenerator_BorderBoundary(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		accepted bool
	}{
		// cell spans x in [0, 10]: fraction 0.5 lands exactly on the margin
		{name: "at margin accepted", fraction: 0.5, accepted: true},
		{name: "inside margin rejected", fraction: 0.4999, accepted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain := &domaintest.Domain{Cells: []*domaintest.Cell{domaintest.Square(0, 40, 10, nil)}}
			rec := newRecordingMetrics()
			// draw, x fraction, y fraction
			rng := &domaintest.SequenceSource{Values: []float64{0, tt.fraction, 0.5}}

			gen, err := New(Config{OrderParameterCutoff: 0.01}, shapes2D(t, 100, op0(5)), domain, constant(1), rng, nil, rec)
			require.NoError(t, err)

			batch, err := gen.Generate(context.Background(), types.Clock{}, nil)
			require.NoError(t, err)
			if tt.accepted {
				require.Len(t, batch, 1)
				require.InDelta(t, 5.0, batch[0].Center[0], 1e-12)
			} else {
				require.Empty(t, batch)
				require.Equal(t, 1, rec.rejected[RejectBorder])
			}
		})
	}
}

func TestGenerator_SkipsOccupiedOrderParameter(t *testing.T) {
	domain := &domaintest.Domain{Cells: []*domaintest.Cell{
		domaintest.Square(40, 40, 10, nil),
		domaintest.Square(50, 40, 10, nil),
	}}
	existing := []types.Nucleus{{ID: 0, OrderParameter: 0}}

	t.Run("single nucleus per order parameter", func(t *testing.T) {
		rng := &domaintest.SequenceSource{Values: []float64{0}}
		gen, err := New(Config{OrderParameterCutoff: 0.01}, shapes2D(t, 100, op0(5)), domain, constant(1), rng, nil, nil)
		require.NoError(t, err)

		batch, err := gen.Generate(context.Background(), types.Clock{}, existing)
		require.NoError(t, err)
		require.Empty(t, batch)
		require.Zero(t, rng.Draws(), "skipped order parameters must not consume draws")
	})

	t.Run("multiple allowed", func(t *testing.T) {
		rng := &domaintest.SequenceSource{Values: []float64{0, 0.5, 0.5}}
		gen, err := New(Config{MultiplePerOrderParameter: true, OrderParameterCutoff: 0.01},
			shapes2D(t, 100, op0(5)), domain, constant(1), rng, nil, nil)
		require.NoError(t, err)

		batch, err := gen.Generate(context.Background(), types.Clock{}, existing)
		require.NoError(t, err)
		require.Len(t, batch, 2)
		require.Equal(t, 1, batch[0].ID)
		require.Equal(t, 2, batch[1].ID)
	})
}

func TestGenerator_ProbabilityClamping(t *testing.T) {
	tests := []struct {
		name       string
		p          float64
		candidates int
	}{
		{name: "above one", p: 1.7, candidates: 1},
		{name: "negative", p: -0.5, candidates: 0},
		{name: "nan", p: math.NaN(), candidates: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain := &domaintest.Domain{Cells: []*domaintest.Cell{domaintest.Square(40, 40, 10, nil)}}
			rec := newRecordingMetrics()
			rng := &domaintest.SequenceSource{Values: []float64{0.999, 0.5, 0.5}}

			gen, err := New(Config{OrderParameterCutoff: 0.01}, shapes2D(t, 100, op0(5)), domain, constant(tt.p), rng, nil, rec)
			require.NoError(t, err)

			batch, err := gen.Generate(context.Background(), types.Clock{}, nil)
			require.NoError(t, err)
			require.Len(t, batch, tt.candidates)
			require.Equal(t, 1, rec.clamped[0])
		})
	}

	t.Run("zero draw accepted at zero probability", func(t *testing.T) {
		domain := &domaintest.Domain{Cells: []*domaintest.Cell{domaintest.Square(40, 40, 10, nil)}}
		rng := &domaintest.SequenceSource{Values: []float64{0, 0.5, 0.5}}

		gen, err := New(Config{OrderParameterCutoff: 0.01}, shapes2D(t, 100, op0(5)), domain, constant(0), rng, nil, nil)
		require.NoError(t, err)

		batch, err := gen.Generate(context.Background(), types.Clock{}, nil)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		require.Zero(t, gen.LastStats().Sites)
		require.Equal(t, 1, gen.LastStats().Rolled)
	})

	t.Run("clamp values", func(t *testing.T) {
		p, clamped := Clamp(0.25)
		require.InDelta(t, 0.25, p, 0)
		require.False(t, clamped)

		p, clamped = Clamp(math.Inf(1))
		require.InDelta(t, 1.0, p, 0)
		require.True(t, clamped)
	})
}

func TestGenerator_TransformedCellRejected(t *testing.T) {
	transformed := map[int][]float64{0: {0.9, 0.95, 1, 1}}
	partial := map[int][]float64{0: {0.9, 0.0, 1, 1}}

	for name, values := range map[string]map[int][]float64{"transformed": transformed, "partial": partial} {
		t.Run(name, func(t *testing.T) {
			domain := &domaintest.Domain{Cells: []*domaintest.Cell{domaintest.Square(40, 40, 10, values)}}
			rec := newRecordingMetrics()
			rng := &domaintest.SequenceSource{Values: []float64{0, 0.5, 0.5}}

			gen, err := New(Config{OrderParameterCutoff: 0.01}, shapes2D(t, 100, op0(5)), domain, constant(1), rng, nil, rec)
			require.NoError(t, err)

			batch, err := gen.Generate(context.Background(), types.Clock{}, nil)
			require.NoError(t, err)
			if name == "transformed" {
				require.Empty(t, batch)
				require.Equal(t, 1, rec.rejected[RejectTransformed])
			} else {
				require.Len(t, batch, 1)
			}
		})
	}
}

func TestGenerator_OracleInputs(t *testing.T) {
	cell := domaintest.Square(10, 20, 4, map[int][]float64{
		3: {1, 2, 3, 6},
	})
	domain := &domaintest.Domain{Cells: []*domaintest.Cell{cell}}

	var gotValues map[int]float64
	var gotVolume float64
	var gotCenter types.Point
	var gotOP int
	oracle := types.ProbabilityFunc(func(values map[int]float64, volume float64, center types.Point, op int) float64 {
		gotValues, gotVolume, gotCenter, gotOP = values, volume, center, op

		return 0
	})

	gen, err := New(Config{NeededVariables: []int{3}}, shapes2D(t, 100, op0(0)), domain, oracle,
		&domaintest.SequenceSource{Values: []float64{0.5}}, nil, nil)
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), types.Clock{}, nil)
	require.NoError(t, err)

	require.InDelta(t, 16.0, gotVolume, 1e-12)
	require.InDelta(t, 3.0, gotValues[3], 1e-12)
	require.InDeltaSlice(t, []float64{12, 22}, gotCenter, 1e-12)
	require.Equal(t, 0, gotOP)
}

func TestGenerator_IndependentDrawPerOrderParameter(t *testing.T) {
	domain := &domaintest.Domain{Cells: []*domaintest.Cell{
		domaintest.Square(0, 0, 10, nil),
		domaintest.Square(10, 0, 10, nil),
		domaintest.Square(20, 0, 10, nil),
	}}
	op1 := op0(0)
	op1.Index = 1
	rng := &domaintest.SequenceSource{Values: []float64{0.5}}

	gen, err := New(Config{}, shapes2D(t, 100, op0(0), op1), domain, constant(0), rng, nil, nil)
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), types.Clock{}, nil)
	require.NoError(t, err)
	require.Equal(t, 6, rng.Draws())
	require.Zero(t, gen.LastStats().Sites)
}

func TestGenerator_Errors(t *testing.T) {
	shapes := shapes2D(t, 100, op0(5))
	rng := &domaintest.SequenceSource{Values: []float64{0}}

	t.Run("missing collaborators", func(t *testing.T) {
		domain := &domaintest.Domain{}
		_, err := New(Config{}, shapes, nil, constant(1), rng, nil, nil)
		require.ErrorIs(t, err, types.ErrDomainRequired)
		_, err = New(Config{}, shapes, domain, nil, rng, nil, nil)
		require.ErrorIs(t, err, types.ErrOracleRequired)
		_, err = New(Config{}, shapes, domain, constant(1), nil, nil, nil)
		require.ErrorIs(t, err, types.ErrRandomSourceRequired)
		_, err = New(Config{}, nil, domain, constant(1), rng, nil, nil)
		require.ErrorIs(t, err, types.ErrInvalidConfig)
	})

	t.Run("failing sample accessor aborts", func(t *testing.T) {
		bad := domaintest.Square(40, 40, 10, nil)
		bad.FailValues = true
		domain := &domaintest.Domain{Cells: []*domaintest.Cell{domaintest.Square(0, 0, 10, nil), bad}}

		gen, err := New(Config{}, shapes, domain, constant(1), rng, nil, nil)
		require.NoError(t, err)

		batch, err := gen.Generate(context.Background(), types.Clock{}, nil)
		require.ErrorIs(t, err, types.ErrSampleEvaluation)
		require.ErrorIs(t, err, domaintest.ErrInjected)
		require.Nil(t, batch)
	})

	t.Run("cancelled context", func(t *testing.T) {
		domain := &domaintest.Domain{Cells: []*domaintest.Cell{domaintest.Square(0, 0, 10, nil)}}
		gen, err := New(Config{}, shapes, domain, constant(1), rng, nil, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = gen.Generate(ctx, types.Clock{}, nil)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func BenchmarkGenerator_Generate(b *testing.B) {
	mesh, err := grid.New(grid.Config{Size: []float64{100, 100}, Subdivisions: []int{32, 32}, PointsPerAxis: 3})
	require.NoError(b, err)
	mesh.SetField(0, func(types.Point) float64 { return 0 })
	set, err := geometry.NewSet([]float64{100, 100}, []geometry.OrderParameter{op0(5)})
	require.NoError(b, err)

	gen, err := New(Config{MultiplePerOrderParameter: true, NeededVariables: []int{0}, OrderParameterCutoff: 0.01},
		set, mesh.View(0), constant(0.001), rand.New(rand.NewPCG(1, 2)), nil, nil)
	require.NoError(b, err)

	for b.Loop() {
		_, _ = gen.Generate(context.Background(), types.Clock{}, nil)
	}
}
