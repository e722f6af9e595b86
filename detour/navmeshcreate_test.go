package detour

import (
	"testing"

	"github.com/arl/gogeo/f32/d3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoPolyParams describes a 10x10 floor split into two triangles
// sharing the diagonal, in the packed form the build pipeline's
// polygon mesh uses.
func twoPolyParams() *NavMeshCreateParams {
	const nvp = 6
	const null = nullMeshIdx

	verts := []uint16{
		0, 0, 0,
		10, 0, 0,
		10, 0, 10,
		0, 0, 10,
	}
	polys := []uint16{
		// poly 0: triangle (0, 1, 2), third edge shared with poly 1.
		0, 1, 2, null, null, null,
		null, null, 1, null, null, null,
		// poly 1: triangle (0, 2, 3), first edge shared with poly 0.
		0, 2, 3, null, null, null,
		0, null, null, null, null, null,
	}

	return &NavMeshCreateParams{
		Verts:          verts,
		VertCount:      4,
		Polys:          polys,
		PolyFlags:      []uint16{1, 1},
		PolyAreas:      []uint8{63, 63},
		PolyCount:      2,
		Nvp:            nvp,
		BMin:           [3]float32{0, 0, 0},
		BMax:           [3]float32{10, 1, 10},
		WalkableHeight: 2,
		WalkableRadius: 0,
		WalkableClimb:  1,
		Cs:             1,
		Ch:             1,
		BuildBvTree:    true,
	}
}

// The encoded tile's length must match what its header's counts imply,
// and the header must decode back to the same values.
func TestCreateNavMeshDataLayout(t *testing.T) {
	data, err := CreateNavMeshData(twoPolyParams())
	require.NoError(t, err)

	var hdr MeshHeader
	require.NoError(t, hdr.unserialize(data))

	assert.Equal(t, navMeshMagic, hdr.Magic)
	assert.Equal(t, navMeshVersion, hdr.Version)
	assert.Equal(t, int32(2), hdr.PolyCount)
	assert.Equal(t, int32(4), hdr.VertCount)
	assert.Greater(t, hdr.BvNodeCount, int32(0))
	assert.Equal(t, tileDataSize(&hdr), int32(len(data)))
}

// Adding the tile must thread symmetric links between the two
// polygons: each one's link list points at the other.
func TestAddTileConnectsInternalLinks(t *testing.T) {
	data, err := CreateNavMeshData(twoPolyParams())
	require.NoError(t, err)

	var mesh NavMesh
	require.False(t, StatusFailed(mesh.InitForSingleTile(data, 0)))

	tile := &mesh.Tiles[0]
	require.NotNil(t, tile.Header)
	base := mesh.polyRefBase(tile)

	linkedTo := func(p *Poly) []PolyRef {
		var refs []PolyRef
		for i := p.FirstLink; i != nullLink; i = tile.Links[i].Next {
			refs = append(refs, tile.Links[i].Ref)
		}
		return refs
	}

	require.Equal(t, []PolyRef{base | 1}, linkedTo(&tile.Polys[0]))
	require.Equal(t, []PolyRef{base | 0}, linkedTo(&tile.Polys[1]))
}

// The BV-tree query must report every polygon whose box overlaps the
// query box, here both triangles around the shared diagonal.
func TestQueryPolygonsInTile(t *testing.T) {
	data, err := CreateNavMeshData(twoPolyParams())
	require.NoError(t, err)

	var mesh NavMesh
	require.False(t, StatusFailed(mesh.InitForSingleTile(data, 0)))

	tile := &mesh.Tiles[0]
	var polys [8]PolyRef
	n := mesh.queryPolygonsInTile(tile,
		d3.NewVec3XYZ(4, -1, 4), d3.NewVec3XYZ(6, 1, 6), polys[:])
	assert.Equal(t, int32(2), n)
}

func TestCreateNavMeshDataRejectsBadInput(t *testing.T) {
	p := twoPolyParams()
	p.Nvp = 7 // beyond the format's per-polygon vertex capacity
	_, err := CreateNavMeshData(p)
	assert.Error(t, err)

	p = twoPolyParams()
	p.VertCount = 0
	_, err = CreateNavMeshData(p)
	assert.Error(t, err)

	p = twoPolyParams()
	p.PolyCount = 0
	_, err = CreateNavMeshData(p)
	assert.Error(t, err)
}
