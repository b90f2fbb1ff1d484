package vectormath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{
			name: "Identical direction",
			a:    []float32{1, 2, 3},
			b:    []float32{2, 4, 6},
			want: 1,
		},
		{
			name: "Orthogonal",
			a:    []float32{1, 0},
			b:    []float32{0, 1},
			want: 0,
		},
		{
			name: "Opposite direction",
			a:    []float32{1, 0},
			b:    []float32{-1, 0},
			want: -1,
		},
		{
			name: "Zero vector scores zero",
			a:    []float32{0, 0, 0},
			b:    []float32{1, 2, 3},
			want: 0,
		},
		{
			name:    "Length mismatch fails loudly",
			a:       []float32{1, 2},
			b:       []float32{1, 2, 3},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	pairs := [][2][]float32{
		{{0.3, -0.2, 0.9}, {0.1, 0.8, -0.5}},
		{{1, 1, 1, 1}, {4, 3, 2, 1}},
		{{0.001, 0.002}, {100, 200}},
	}

	for _, p := range pairs {
		ab, err := CosineSimilarity(p[0], p[1])
		require.NoError(t, err)
		ba, err := CosineSimilarity(p[1], p[0])
		require.NoError(t, err)
		assert.InDelta(t, ab, ba, 1e-12)
	}
}

func TestCosineSimilaritySelf(t *testing.T) {
	vecs := [][]float32{
		{1},
		{0.5, -0.5},
		{3, 1, 4, 1, 5, 9, 2, 6},
	}

	for _, v := range vecs {
		got, err := CosineSimilarity(v, v)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, got, 1e-9)
	}
}

func TestMean(t *testing.T) {
	got, err := Mean([][]float32{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, got)

	got, err = Mean(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = Mean([][]float32{{1, 2}, {1}})
	require.Error(t, err)
}

func TestCosineDistance(t *testing.T) {
	d, err := CosineDistance([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-9)

	d, err = CosineDistance([]float32{2, 0}, []float32{5, 0})
	require.NoError(t, err)
	assert.True(t, math.Abs(d) < 1e-9)
}
