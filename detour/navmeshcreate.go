package detour

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/arl/aligned"
	"github.com/arl/gogeo/f32"
	"github.com/arl/gogeo/f32/d3"
	"github.com/arl/math32"
)

// nullMeshIdx marks an unused vertex slot in an input polygon.
const nullMeshIdx uint16 = 0xffff

// NavMeshCreateParams is the source data CreateNavMeshData encodes into
// a navigation mesh tile.
type NavMeshCreateParams struct {
	// Polygon mesh attributes, straight from the build pipeline's
	// polygon mesh. Verts are in cell units; Polys is packed as
	// [v0..v(nvp-1), n0..n(nvp-1)] per polygon.
	Verts     []uint16
	VertCount int32
	Polys     []uint16
	PolyFlags []uint16
	PolyAreas []uint8
	PolyCount int32
	Nvp       int32

	// Height detail attributes, optional. When absent a flat detail
	// mesh is derived by fan-triangulating the polygons.
	DetailMeshes     []int32
	DetailVerts      []float32 // World units.
	DetailVertsCount int32
	DetailTris       []uint8
	DetailTriCount   int32

	// Off-mesh connection attributes, optional. Two endpoints, a
	// radius, flags, an area and a direction per connection.
	OffMeshConVerts  []float32 // World units.
	OffMeshConRad    []float32
	OffMeshConFlags  []uint16
	OffMeshConAreas  []uint8
	OffMeshConDir    []uint8
	OffMeshConUserID []uint32
	OffMeshConCount  int32

	// Tile attributes. The grid location can stay zero for a single
	// tile mesh.
	UserID    uint32
	TileX     int32
	TileY     int32
	TileLayer int32
	BMin      [3]float32 // World units.
	BMax      [3]float32

	// Agent dimensions, world units.
	WalkableHeight float32
	WalkableRadius float32
	WalkableClimb  float32

	// Cell quantization the vertices were built with.
	Cs float32
	Ch float32

	// BuildBvTree selects whether the tile carries a bounding volume
	// tree. Always worth it except for layered meshes.
	BuildBvTree bool
}

type bvItem struct {
	bmin, bmax [3]uint16
	i          int32
}

func calcItemExtents(items []bvItem, imin, imax int32, bmin, bmax []uint16) {
	copy(bmin, items[imin].bmin[:])
	copy(bmax, items[imin].bmax[:])
	for i := imin + 1; i < imax; i++ {
		it := &items[i]
		for k := 0; k < 3; k++ {
			if it.bmin[k] < bmin[k] {
				bmin[k] = it.bmin[k]
			}
			if it.bmax[k] > bmax[k] {
				bmax[k] = it.bmax[k]
			}
		}
	}
}

func longestAxis(x, y, z uint16) int {
	axis := 0
	maxVal := x
	if y > maxVal {
		axis = 1
		maxVal = y
	}
	if z > maxVal {
		axis = 2
	}
	return axis
}

// subdivide emits the BV-tree nodes for items[imin:imax] in DFS order,
// splitting at the median along the longest axis, and returns the next
// free node index. Internal nodes store the negated subtree size so a
// traversal can skip them.
func subdivide(items []bvItem, imin, imax, curNode int32, nodes []BvNode) int32 {
	inum := imax - imin
	icur := curNode

	node := &nodes[curNode]
	curNode++

	if inum == 1 {
		// Leaf.
		node.Bmin = items[imin].bmin
		node.Bmax = items[imin].bmax
		node.I = items[imin].i
		return curNode
	}

	calcItemExtents(items, imin, imax, node.Bmin[:], node.Bmax[:])

	axis := longestAxis(
		node.Bmax[0]-node.Bmin[0],
		node.Bmax[1]-node.Bmin[1],
		node.Bmax[2]-node.Bmin[2])
	seg := items[imin:imax]
	sort.SliceStable(seg, func(i, j int) bool {
		return seg[i].bmin[axis] < seg[j].bmin[axis]
	})

	isplit := imin + inum/2
	curNode = subdivide(items, imin, isplit, curNode, nodes)
	curNode = subdivide(items, isplit, imax, curNode, nodes)

	node.I = -(curNode - icur)
	return curNode
}

// createBVTree builds the bounding volume tree over the tile's
// polygons, with AABBs quantized by 1/cs on all three axes.
func createBVTree(params *NavMeshCreateParams) []BvNode {
	quantFactor := 1.0 / params.Cs
	items := make([]bvItem, params.PolyCount)
	for i := int32(0); i < params.PolyCount; i++ {
		it := &items[i]
		it.i = i

		if len(params.DetailMeshes) > 0 {
			// Bounds from the detail vertices.
			vb := int32(params.DetailMeshes[i*4+0])
			ndv := int32(params.DetailMeshes[i*4+1])
			var bmin, bmax [3]float32

			dv := params.DetailVerts[vb*3:]
			copy(bmin[:], dv[:3])
			copy(bmax[:], dv[:3])
			for j := int32(1); j < ndv; j++ {
				d3.Vec3Min(bmin[:], dv[j*3:])
				d3.Vec3Max(bmax[:], dv[j*3:])
			}

			for k := 0; k < 3; k++ {
				it.bmin[k] = uint16(f32.Clamp((bmin[k]-params.BMin[k])*quantFactor, 0, 0xffff))
				it.bmax[k] = uint16(f32.Clamp((bmax[k]-params.BMin[k])*quantFactor, 0, 0xffff))
			}
		} else {
			// Bounds straight from the cell-unit polygon vertices.
			p := params.Polys[i*params.Nvp*2:]
			it.bmin[0] = params.Verts[p[0]*3+0]
			it.bmin[1] = params.Verts[p[0]*3+1]
			it.bmin[2] = params.Verts[p[0]*3+2]
			it.bmax = it.bmin

			for j := int32(1); j < params.Nvp; j++ {
				if p[j] == nullMeshIdx {
					break
				}
				x := params.Verts[p[j]*3+0]
				y := params.Verts[p[j]*3+1]
				z := params.Verts[p[j]*3+2]

				if x < it.bmin[0] {
					it.bmin[0] = x
				}
				if y < it.bmin[1] {
					it.bmin[1] = y
				}
				if z < it.bmin[2] {
					it.bmin[2] = z
				}
				if x > it.bmax[0] {
					it.bmax[0] = x
				}
				if y > it.bmax[1] {
					it.bmax[1] = y
				}
				if z > it.bmax[2] {
					it.bmax[2] = z
				}
			}
			// The tree uses cs on all axes; remap y from ch units.
			it.bmin[1] = uint16(math32.Floor(float32(it.bmin[1]) * params.Ch / params.Cs))
			it.bmax[1] = uint16(math32.Ceil(float32(it.bmax[1]) * params.Ch / params.Cs))
		}
	}

	nodes := make([]BvNode, params.PolyCount*2)
	n := subdivide(items, 0, params.PolyCount, 0, nodes)
	return nodes[:n]
}

// classifyOffMeshPoint returns the portal side a point lies beyond, or
// 0xff when the point is inside the bounds.
func classifyOffMeshPoint(pt, bmin, bmax d3.Vec3) uint8 {
	const (
		xp uint8 = 1 << 0
		zp uint8 = 1 << 1
		xm uint8 = 1 << 2
		zm uint8 = 1 << 3
	)

	var outcode uint8
	if pt[0] >= bmax[0] {
		outcode |= xp
	}
	if pt[2] >= bmax[2] {
		outcode |= zp
	}
	if pt[0] < bmin[0] {
		outcode |= xm
	}
	if pt[2] < bmin[2] {
		outcode |= zm
	}

	switch outcode {
	case xp:
		return 0
	case xp | zp:
		return 1
	case zp:
		return 2
	case xm | zp:
		return 3
	case xm:
		return 4
	case xm | zm:
		return 5
	case zm:
		return 6
	case xp | zm:
		return 7
	}
	return 0xff
}

// CreateNavMeshData encodes the given polygon mesh (plus optional
// detail mesh and off-mesh connections) into a tile blob that
// NavMesh.AddTile and NavMesh.InitForSingleTile accept.
func CreateNavMeshData(params *NavMeshCreateParams) ([]uint8, error) {
	if params.Nvp > int32(VertsPerPolygon) {
		return nil, fmt.Errorf("detour: Nvp (%d) exceeds %d", params.Nvp, VertsPerPolygon)
	}
	if params.VertCount >= 0xffff {
		return nil, fmt.Errorf("detour: too many vertices: %d", params.VertCount)
	}
	if params.VertCount == 0 || len(params.Verts) == 0 {
		return nil, fmt.Errorf("detour: no vertices")
	}
	if params.PolyCount == 0 || len(params.Polys) == 0 {
		return nil, fmt.Errorf("detour: no polygons")
	}

	nvp := params.Nvp

	// Classify off-mesh connection points. Only connections whose start
	// point is inside the tile are stored.
	var (
		offMeshConClass       []uint8
		storedOffMeshConCount int32
		offMeshConLinkCount   int32
	)
	if params.OffMeshConCount > 0 {
		offMeshConClass = make([]uint8, params.OffMeshConCount*2)

		// Tight height bounds for culling out-of-tile start locations.
		hmin := float32(math32.MaxFloat32)
		hmax := -float32(math32.MaxFloat32)
		if len(params.DetailVerts) > 0 && params.DetailVertsCount != 0 {
			for i := int32(0); i < params.DetailVertsCount; i++ {
				h := params.DetailVerts[i*3+1]
				f32.SetMin(&hmin, h)
				f32.SetMax(&hmax, h)
			}
		} else {
			for i := int32(0); i < params.VertCount; i++ {
				h := params.BMin[1] + float32(params.Verts[i*3+1])*params.Ch
				f32.SetMin(&hmin, h)
				f32.SetMax(&hmax, h)
			}
		}
		var bmin, bmax [3]float32
		copy(bmin[:], params.BMin[:])
		copy(bmax[:], params.BMax[:])
		bmin[1] = hmin - params.WalkableClimb
		bmax[1] = hmax + params.WalkableClimb

		for i := int32(0); i < params.OffMeshConCount; i++ {
			p0 := d3.Vec3(params.OffMeshConVerts[(i*2+0)*3:])
			p1 := d3.Vec3(params.OffMeshConVerts[(i*2+1)*3:])
			offMeshConClass[i*2+0] = classifyOffMeshPoint(p0, bmin[:], bmax[:])
			offMeshConClass[i*2+1] = classifyOffMeshPoint(p1, bmin[:], bmax[:])

			// Cull start positions that can't even touch the mesh
			// vertically.
			if offMeshConClass[i*2+0] == 0xff {
				if p0[1] < bmin[1] || p0[1] > bmax[1] {
					offMeshConClass[i*2+0] = 0
				}
			}

			if offMeshConClass[i*2+0] == 0xff {
				offMeshConLinkCount++
				storedOffMeshConCount++
			}
			if offMeshConClass[i*2+1] == 0xff {
				offMeshConLinkCount++
			}
		}
	}

	// Off-mesh connections are stored as polygons.
	totPolyCount := params.PolyCount + storedOffMeshConCount
	totVertCount := params.VertCount + storedOffMeshConCount*2

	// Count edges and tile border portals for link arena sizing.
	var edgeCount, portalCount int32
	for i := int32(0); i < params.PolyCount; i++ {
		p := params.Polys[i*2*nvp:]
		for j := int32(0); j < nvp; j++ {
			if p[j] == nullMeshIdx {
				break
			}
			edgeCount++
			if p[nvp+j]&0x8000 != 0 {
				if p[nvp+j]&0xf != 0xf {
					portalCount++
				}
			}
		}
	}
	maxLinkCount := edgeCount + portalCount*2 + offMeshConLinkCount*2

	// Count detail vertices beyond the polygon vertices, and detail
	// triangles.
	var uniqueDetailVertCount, detailTriCount int32
	if params.DetailMeshes != nil {
		detailTriCount = params.DetailTriCount
		for i := int32(0); i < params.PolyCount; i++ {
			p := params.Polys[i*nvp*2:]
			ndv := params.DetailMeshes[i*4+1]
			var nv int32
			for j := int32(0); j < nvp; j++ {
				if p[j] == nullMeshIdx {
					break
				}
				nv++
			}
			uniqueDetailVertCount += ndv - nv
		}
	} else {
		// Flat detail mesh derived from the polygons themselves.
		for i := int32(0); i < params.PolyCount; i++ {
			p := params.Polys[i*nvp*2:]
			var nv int32
			for j := int32(0); j < nvp; j++ {
				if p[j] == nullMeshIdx {
					break
				}
				nv++
			}
			detailTriCount += nv - 2
		}
	}

	var navBvtree []BvNode
	if params.BuildBvTree {
		navBvtree = createBVTree(params)
	}

	hdr := MeshHeader{
		Magic:           navMeshMagic,
		Version:         navMeshVersion,
		X:               params.TileX,
		Y:               params.TileY,
		Layer:           params.TileLayer,
		UserID:          params.UserID,
		PolyCount:       totPolyCount,
		VertCount:       totVertCount,
		MaxLinkCount:    maxLinkCount,
		DetailMeshCount: params.PolyCount,
		DetailVertCount: uniqueDetailVertCount,
		DetailTriCount:  detailTriCount,
		BvNodeCount:     int32(len(navBvtree)),
		OffMeshConCount: storedOffMeshConCount,
		OffMeshBase:     params.PolyCount,
		WalkableHeight:  params.WalkableHeight,
		WalkableRadius:  params.WalkableRadius,
		WalkableClimb:   params.WalkableClimb,
		BvQuantFactor:   1.0 / params.Cs,
	}
	copy(hdr.Bmin[:], params.BMin[:])
	copy(hdr.Bmax[:], params.BMax[:])

	navVerts := make([]float32, 3*totVertCount)
	navPolys := make([]Poly, totPolyCount)
	navDMeshes := make([]PolyDetail, params.PolyCount)
	navDVerts := make([]float32, 3*uniqueDetailVertCount)
	navDTris := make([]uint8, 4*detailTriCount)
	offMeshCons := make([]OffMeshConnection, storedOffMeshConCount)

	offMeshVertsBase := params.VertCount
	offMeshPolyBase := params.PolyCount

	// Mesh vertices, dequantized to world units.
	for i := int32(0); i < params.VertCount; i++ {
		iv := params.Verts[i*3 : i*3+3]
		v := navVerts[i*3 : i*3+3]
		v[0] = params.BMin[0] + float32(iv[0])*params.Cs
		v[1] = params.BMin[1] + float32(iv[1])*params.Ch
		v[2] = params.BMin[2] + float32(iv[2])*params.Cs
	}
	// Off-mesh link vertices.
	var n int32
	for i := int32(0); i < params.OffMeshConCount; i++ {
		if offMeshConClass[i*2+0] == 0xff {
			linkv := params.OffMeshConVerts[i*2*3:]
			v := navVerts[(offMeshVertsBase+n*2)*3:]
			copy(v[0:3], linkv[0:3])
			copy(v[3:6], linkv[3:6])
			n++
		}
	}

	// Mesh polygons. Edge neighbors translate to either an internal
	// 1-based index, a portal side, or 0 for a wall.
	src := params.Polys
	for i := int32(0); i < params.PolyCount; i++ {
		p := &navPolys[i]
		p.VertCount = 0
		p.Flags = params.PolyFlags[i]
		p.SetArea(params.PolyAreas[i])
		p.SetType(polyTypeGround)
		for j := int32(0); j < nvp; j++ {
			if src[j] == nullMeshIdx {
				break
			}
			p.Verts[j] = src[j]
			if src[nvp+j]&0x8000 != 0 {
				// Border or portal edge.
				switch src[nvp+j] & 0xf {
				case 0xf: // wall
					p.Neis[j] = 0
				case 0: // portal x-
					p.Neis[j] = extLink | 4
				case 1: // portal z+
					p.Neis[j] = extLink | 2
				case 2: // portal x+
					p.Neis[j] = extLink | 0
				case 3: // portal z-
					p.Neis[j] = extLink | 6
				}
			} else {
				// Internal connection.
				p.Neis[j] = src[nvp+j] + 1
			}
			p.VertCount++
		}
		src = src[nvp*2:]
	}

	// Off-mesh connection polygons.
	n = 0
	for i := int32(0); i < params.OffMeshConCount; i++ {
		if offMeshConClass[i*2+0] == 0xff {
			p := &navPolys[offMeshPolyBase+n]
			p.VertCount = 2
			p.Verts[0] = uint16(offMeshVertsBase + n*2 + 0)
			p.Verts[1] = uint16(offMeshVertsBase + n*2 + 1)
			p.Flags = params.OffMeshConFlags[i]
			p.SetArea(params.OffMeshConAreas[i])
			p.SetType(polyTypeOffMeshConnection)
			n++
		}
	}

	// Detail meshes. The polygon vertices double as the first detail
	// vertices of each sub-mesh, so only the extras are stored.
	if len(params.DetailMeshes) > 0 {
		var vbase uint16
		for i := int32(0); i < params.PolyCount; i++ {
			dtl := &navDMeshes[i]
			vb := uint8(params.DetailMeshes[i*4+0])
			ndv := uint8(params.DetailMeshes[i*4+1])
			nv := navPolys[i].VertCount
			dtl.VertBase = uint32(vbase)
			dtl.VertCount = ndv - nv
			dtl.TriBase = uint32(params.DetailMeshes[i*4+2])
			dtl.TriCount = uint8(params.DetailMeshes[i*4+3])
			if ndv-nv != 0 {
				start, length := (vb+nv)*3, 3*(ndv-nv)
				copy(navDVerts[vbase*3:], params.DetailVerts[start:start+length])
				vbase += uint16(ndv - nv)
			}
		}
		copy(navDTris, params.DetailTris[:4*params.DetailTriCount])
	} else {
		// Flat detail mesh: fan-triangulate each polygon in place.
		var tbase int32
		for i := int32(0); i < params.PolyCount; i++ {
			dtl := &navDMeshes[i]
			nv := navPolys[i].VertCount
			dtl.VertBase = 0
			dtl.VertCount = 0
			dtl.TriBase = uint32(tbase)
			dtl.TriCount = uint8(nv - 2)
			for j := uint8(2); j < nv; j++ {
				t := navDTris[tbase*4:]
				t[0] = 0
				t[1] = j - 1
				t[2] = j
				// Mark the edges lying on the polygon boundary.
				t[3] = 1 << 2
				if j == 2 {
					t[3] |= 1 << 0
				}
				if j == nv-1 {
					t[3] |= 1 << 4
				}
				tbase++
			}
		}
	}

	// Off-mesh connection records.
	n = 0
	for i := int32(0); i < params.OffMeshConCount; i++ {
		if offMeshConClass[i*2+0] == 0xff {
			con := &offMeshCons[n]
			con.Poly = uint16(offMeshPolyBase + n)
			endPts := params.OffMeshConVerts[i*2*3:]
			copy(con.Pos[0:3], endPts[:3])
			copy(con.Pos[3:6], endPts[3:6])
			con.Rad = params.OffMeshConRad[i]
			if params.OffMeshConDir[i] != 0 {
				con.Flags = uint8(offMeshConBidir)
			} else {
				con.Flags = 0
			}
			con.Side = offMeshConClass[i*2+1]
			if len(params.OffMeshConUserID) != 0 {
				con.UserID = params.OffMeshConUserID[i]
			}
			n++
		}
	}

	dataSize := tileDataSize(&hdr)
	var buf bytes.Buffer
	buf.Grow(int(dataSize))
	w := aligned.NewWriter(&buf, 4, binary.LittleEndian)

	if err := w.WriteVal(hdr); err != nil {
		return nil, fmt.Errorf("detour: writing tile header: %w", err)
	}
	if err := w.WriteSlice(navVerts); err != nil {
		return nil, fmt.Errorf("detour: writing tile verts: %w", err)
	}
	if err := w.WriteSlice(navPolys); err != nil {
		return nil, fmt.Errorf("detour: writing tile polys: %w", err)
	}
	// Links are rebuilt on load; reserve zeroed space for them.
	if _, err := w.Write(make([]uint8, linkEncSize*maxLinkCount)); err != nil {
		return nil, fmt.Errorf("detour: writing tile links section: %w", err)
	}
	if err := w.WriteSlice(navDMeshes); err != nil {
		return nil, fmt.Errorf("detour: writing tile detail meshes: %w", err)
	}
	if err := w.WriteSlice(navDVerts); err != nil {
		return nil, fmt.Errorf("detour: writing tile detail verts: %w", err)
	}
	if len(navDTris) > 0 {
		if _, err := w.Write(navDTris); err != nil {
			return nil, fmt.Errorf("detour: writing tile detail tris: %w", err)
		}
	}
	if err := w.WriteSlice(navBvtree); err != nil {
		return nil, fmt.Errorf("detour: writing tile bvtree: %w", err)
	}
	if err := w.WriteSlice(offMeshCons); err != nil {
		return nil, fmt.Errorf("detour: writing tile off-mesh connections: %w", err)
	}

	if int32(buf.Len()) != dataSize {
		return nil, fmt.Errorf("detour: encoded tile is %d bytes, want %d", buf.Len(), dataSize)
	}
	return buf.Bytes(), nil
}
