package embed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input []float32
		want  []float32
	}{
		{name: "unit vector unchanged", input: []float32{1, 0, 0}, want: []float32{1, 0, 0}},
		{name: "scales to unit length", input: []float32{3, 4}, want: []float32{0.6, 0.8}},
		{name: "zero vector untouched", input: []float32{0, 0, 0}, want: []float32{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-6)
			}
		})
	}
}

func TestNormalizeUnitLength(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.SliceOfN(rapid.Float32Range(-100, 100), 1, 64).Draw(t, "v")

		var nonzero bool
		for _, x := range v {
			if x != 0 {
				nonzero = true
				break
			}
		}
		if !nonzero {
			return
		}

		got := Normalize(v)
		var sum float64
		for _, x := range got {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-3)
	})
}
