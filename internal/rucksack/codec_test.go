package rucksack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeIndex(t *testing.T) {
	items, err := DecodeIndex([]byte(
		`{"items":[{"name":"Foo","kind":{"tag":"NODE","filename":0,"kind":"LAYER"}}]}`))
	require.NoError(t, err)
	require.Equal(t, []Item{{Name: "Foo", Data: NodeRef{Filename: 0, Kind: KindLayer}}}, items)

	items, err = DecodeIndex([]byte(`{"items":[]}`))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRoundTrip(t *testing.T) {
	all := []Item{
		{Name: "paint", Data: NodeRef{Filename: 0, Kind: KindLayer}},
		{Name: "selection", Data: NodeRef{Filename: 1023, Kind: KindMaskSelection}},
		{Name: "logo", Data: Vector{SVG: "<svg>...</svg>"}},
		{Name: "empty vector", Data: Vector{SVG: ""}},
		{Name: "caption", Data: Vector{SVG: "<svg><text/></svg>", IsText: true}},
		{Name: "glow", Data: LayerStyle{ASL: "8BSL..."}},
		{Name: "empty style", Data: LayerStyle{ASL: ""}},
	}
	data, err := EncodeIndex(all)
	require.NoError(t, err)
	decoded, err := DecodeIndex(data)
	require.NoError(t, err)
	assert.Equal(t, all, decoded)

	// Deterministic output.
	again, err := EncodeIndex(all)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestLegacyLayerTag(t *testing.T) {
	items, err := DecodeIndex([]byte(
		`{"items":[{"name":"old","kind":{"tag":"LAYER","filename":2}}]}`))
	require.NoError(t, err)
	require.Equal(t, []Item{{Name: "old", Data: NodeRef{Filename: 2, Kind: KindLayer}}}, items)

	// Re-encoding uses the current tag set and stays decodable to the
	// same value.
	data, err := EncodeIndex(items)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"NODE"`)
	assert.NotContains(t, string(data), `"LAYER_FILE"`)
	decoded, err := DecodeIndex(data)
	require.NoError(t, err)
	assert.Equal(t, items, decoded)

	// The legacy shape has no inner kind key.
	_, err = DecodeIndex([]byte(
		`{"items":[{"name":"old","kind":{"tag":"LAYER","filename":2,"kind":"LAYER"}}]}`))
	require.EqualError(t, err, "error at .items[0].kind: unexpected key kind")
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{
			"not an object",
			`[]`,
			"error at root: expected object",
		},
		{
			"missing items",
			`{}`,
			"error at root: expected key items",
		},
		{
			"unknown top-level key",
			`{"items":[],"extra":1}`,
			"error at root: unexpected key extra",
		},
		{
			"item not an object",
			`{"items":[5]}`,
			"error at .items[0]: expected object",
		},
		{
			"empty name",
			`{"items":[{"name":"","kind":{"tag":"VECTOR","svg":""}}]}`,
			"error at .items[0].name: expected nonempty string",
		},
		{
			"unknown item key",
			`{"items":[{"name":"x","kind":{"tag":"VECTOR","svg":""},"extra":true}]}`,
			"error at .items[0]: unexpected key extra",
		},
		{
			"unknown tag",
			`{"items":[{"name":"x","kind":{"tag":"GRADIENT"}}]}`,
			"error at .items[0].kind.tag: expected one of NODE, VECTOR, TEXT, LAYER_STYLE, LAYER",
		},
		{
			"negative filename",
			`{"items":[{"name":"x","kind":{"tag":"NODE","filename":-1,"kind":"LAYER"}}]}`,
			"error at .items[0].kind.filename: expected integer that is at least 0; found -1",
		},
		{
			"unknown node kind",
			`{"items":[{"name":"x","kind":{"tag":"NODE","filename":0,"kind":"BRUSH"}}]}`,
			"error at .items[0].kind.kind: expected one of LAYER, LAYER_FILE, LAYER_FILL, " +
				"LAYER_FILTER, LAYER_GROUP, LAYER_VECTOR, MASK_COLORIZE, MASK_FILTER, " +
				"MASK_SELECTION, MASK_TRANSFORM, MASK_TRANSPARENCY",
		},
		{
			"missing svg",
			`{"items":[{"name":"x","kind":{"tag":"VECTOR"}}]}`,
			"error at .items[0].kind: expected key svg",
		},
		{
			"vector payload with stray key",
			`{"items":[{"name":"x","kind":{"tag":"VECTOR","svg":"","asl":""}}]}`,
			"error at .items[0].kind: unexpected key asl",
		},
		{
			"second item reported at its own path",
			`{"items":[{"name":"x","kind":{"tag":"VECTOR","svg":""}},{"name":"y","kind":{"tag":"LAYER_STYLE"}}]}`,
			"error at .items[1].kind: expected key asl",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeIndex([]byte(tc.src))
			require.EqualError(t, err, tc.want)
		})
	}
}

func TestNodeKind(t *testing.T) {
	masks := 0
	for k := KindLayer; k <= KindMaskTransparency; k++ {
		if k.IsMask() {
			masks++
			assert.Contains(t, k.String(), "MASK_")
		} else {
			assert.Contains(t, k.String(), "LAYER")
		}
	}
	assert.Equal(t, 5, masks)
	assert.Equal(t, "LAYER", KindLayer.String())
	assert.Equal(t, "MASK_TRANSPARENCY", KindMaskTransparency.String())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "layer", Describe(NodeRef{Kind: KindLayerGroup}))
	assert.Equal(t, "mask", Describe(NodeRef{Kind: KindMaskFilter}))
	assert.Equal(t, "vector", Describe(Vector{}))
	assert.Equal(t, "text", Describe(Vector{IsText: true}))
	assert.Equal(t, "layer style", Describe(LayerStyle{}))
}
