package fuzzy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grid(n int, f func(x float64) float64) ([]float64, []float64) {
	xs := make([]float64, n+1)
	mu := make([]float64, n+1)
	for j := range xs {
		xs[j] = float64(j) / float64(n)
		mu[j] = f(xs[j])
	}
	return xs, mu
}

var methods = []Method{Centroid, Bisector, SmallestOfMaximum, MeanOfMaximum, LargestOfMaximum}

func TestDefuzzify_SymmetricTriangleRoundTrip(t *testing.T) {
	rs := mustParse(t, "IF a IS high THEN b IS mid")
	ims, err := NewEvaluator().Evaluate(rs, Binding{"a": surface(1)})
	require.NoError(t, err)

	for _, m := range methods {
		got := ims["b"].Defuzzify(m)
		require.Len(t, got, 1)
		assert.InDelta(t, 0.5, got[0], 1e-9, m.String())
	}
}

func TestDefuzzify_ClippedTrianglePlateau(t *testing.T) {
	rs := mustParse(t, "IF a IS high THEN b IS mid")
	ims, err := NewEvaluator().Evaluate(rs, Binding{"a": surface(0.5)})
	require.NoError(t, err)
	im := ims["b"]

	assert.InDelta(t, 0.375, im.Defuzzify(SmallestOfMaximum)[0], 1e-9)
	assert.InDelta(t, 0.625, im.Defuzzify(LargestOfMaximum)[0], 1e-9)
	assert.InDelta(t, 0.5, im.Defuzzify(MeanOfMaximum)[0], 1e-9)
	assert.InDelta(t, 0.5, im.Defuzzify(Centroid)[0], 1e-9)
	assert.InDelta(t, 0.5, im.Defuzzify(Bisector)[0], 1e-9)
}

func TestDefuzzify_Ramp(t *testing.T) {
	xs, mu := grid(1000, func(x float64) float64 { return x })

	c, ok := Defuzzify(Centroid, xs, mu)
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, c, 1e-9)

	b, ok := Defuzzify(Bisector, xs, mu)
	require.True(t, ok)
	assert.InDelta(t, 1/math.Sqrt2, b, 0.002)

	v, ok := Defuzzify(LargestOfMaximum, xs, mu)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	v, ok = Defuzzify(SmallestOfMaximum, xs, mu)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestDefuzzify_OddIntervalCount(t *testing.T) {
	xs, mu := grid(5, func(float64) float64 { return 1 })
	c, ok := Defuzzify(Centroid, xs, mu)
	require.True(t, ok)
	assert.InDelta(t, 0.5, c, 1e-9)

	xs, mu = grid(1, func(float64) float64 { return 1 })
	c, ok = Defuzzify(Centroid, xs, mu)
	require.True(t, ok)
	assert.InDelta(t, 0.5, c, 1e-12)
}

func TestDefuzzify_Constant(t *testing.T) {
	xs, mu := grid(100, func(float64) float64 { return 0.4 })
	for _, m := range []Method{Centroid, Bisector, MeanOfMaximum} {
		v, ok := Defuzzify(m, xs, mu)
		require.True(t, ok)
		assert.InDelta(t, 0.5, v, 1e-9, m.String())
	}
	v, _ := Defuzzify(SmallestOfMaximum, xs, mu)
	assert.Equal(t, 0.0, v)
	v, _ = Defuzzify(LargestOfMaximum, xs, mu)
	assert.Equal(t, 1.0, v)
}

func TestDefuzzify_AllZeroIsNoData(t *testing.T) {
	xs, mu := grid(10, func(float64) float64 { return 0 })
	for _, m := range methods {
		v, ok := Defuzzify(m, xs, mu)
		assert.False(t, ok, m.String())
		assert.True(t, IsNoData(v))
	}

	_, ok := Defuzzify(Centroid, nil, nil)
	assert.False(t, ok)
	_, ok = Defuzzify(Centroid, []float64{0, 1}, []float64{1})
	assert.False(t, ok)
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in   string
		want Method
		ok   bool
	}{
		{"", Centroid, true},
		{"Centroid", Centroid, true},
		{"bisector", Bisector, true},
		{"som", SmallestOfMaximum, true},
		{"mean_of_maximum", MeanOfMaximum, true},
		{" LOM ", LargestOfMaximum, true},
		{"median", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseMethod(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.in)
			back, _ := ParseMethod(got.String())
			assert.Equal(t, got, back)
		}
	}
}
