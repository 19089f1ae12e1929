package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten_NestedMaps(t *testing.T) {
	got, err := Flatten(map[string]any{
		"model": map[string]any{"hidden": 256, "layers": 4},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"model/hidden": 256,
		"model/layers": 4,
	}, got)
}

func TestFlatten_SequencesIndexByPosition(t *testing.T) {
	got, err := Flatten(map[string]any{
		"tags": []any{10, 20},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"tags/0": 10,
		"tags/1": 20,
	}, got)
}

func TestFlatten_TypedSlicesAndMaps(t *testing.T) {
	got, err := Flatten(map[string]any{
		"dims":  []int{3, 5},
		"flags": map[string]bool{"amp": true},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"dims/0":    3,
		"dims/1":    5,
		"flags/amp": true,
	}, got)
}

func TestFlatten_MapsInsideSequences(t *testing.T) {
	got, err := Flatten(map[string]any{
		"stages": []any{
			map[string]any{"lr": 0.1},
			map[string]any{"lr": 0.01},
		},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"stages/0/lr": 0.1,
		"stages/1/lr": 0.01,
	}, got)
}

func TestFlatten_UnsupportedLeafFailsFast(t *testing.T) {
	type opaque struct{ n int }
	_, err := Flatten(map[string]any{
		"bad": map[string]any{"leaf": opaque{1}},
	}, false)
	require.ErrorIs(t, err, ErrUnsupported)
	assert.Contains(t, err.Error(), "bad/leaf")
}

func TestFlatten_CoercionIsTotal(t *testing.T) {
	type opaque struct{ N int }
	got, err := Flatten(map[string]any{
		"bad": opaque{7},
		"ok":  1,
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, got["ok"])
	assert.IsType(t, "", got["bad"])
}

func TestFlatten_DoesNotMutateInput(t *testing.T) {
	in := map[string]any{"a": map[string]any{"b": 1}}
	_, err := Flatten(in, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1}}, in)
}
