package navmesh

import (
	"bytes"
	"testing"

	"github.com/arl/gogeo/f32/d3"
	"github.com/polyweave/navmesh/detour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Encoding a built navmesh and decoding it back must produce a mesh
// whose queries return the same results, and whose re-encoded form is
// byte-identical.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	res, q1, filter := buildFlatFloor(t, 10)

	var buf bytes.Buffer
	require.NoError(t, res.NavMesh.Encode(&buf))
	encoded := append([]byte(nil), buf.Bytes()...)

	mesh2, err := detour.Decode(&buf)
	require.NoError(t, err)

	st, q2 := detour.NewNavMeshQuery(mesh2, 2048)
	require.False(t, detour.StatusFailed(st))

	center := d3.NewVec3XYZ(5, 0, 5)
	extents := d3.NewVec3XYZ(2, 2, 2)

	st, ref1, pt1 := q1.FindNearestPoly(center, extents, filter)
	require.False(t, detour.StatusFailed(st))
	require.NotZero(t, ref1)

	st, ref2, pt2 := q2.FindNearestPoly(center, extents, filter)
	require.False(t, detour.StatusFailed(st))

	assert.Equal(t, ref1, ref2)
	assert.Equal(t, pt1, pt2)

	// Distance-to-wall agrees too.
	r1, st := q1.FindDistanceToWall(ref1, pt1, 10, filter)
	require.False(t, detour.StatusFailed(st))
	r2, st := q2.FindDistanceToWall(ref2, pt2, 10, filter)
	require.False(t, detour.StatusFailed(st))
	assert.Equal(t, r1.Distance, r2.Distance)

	var buf2 bytes.Buffer
	require.NoError(t, mesh2.Encode(&buf2))
	assert.True(t, bytes.Equal(encoded, buf2.Bytes()))
}

// Decode must reject a stream with a corrupted magic word.
func TestDecodeRejectsBadMagic(t *testing.T) {
	res, _, _ := buildFlatFloor(t, 10)

	var buf bytes.Buffer
	require.NoError(t, res.NavMesh.Encode(&buf))

	data := buf.Bytes()
	data[0] ^= 0xff
	_, err := detour.Decode(bytes.NewReader(data))
	assert.Error(t, err)
}
