package recast

import "github.com/arl/assertgo"

// PolyMesh is a convex polygon mesh derived from contours, the final
// artifact of the build pipeline and the input of the navigation mesh
// encoder.
//
// Polys packs each polygon as [v0..v(nvp-1), n0..n(nvp-1)]: nvp vertex
// indices (MeshNullIdx past the polygon's vertex count) followed by
// the adjacent polygon index across each edge (MeshNullIdx for a wall,
// 0x8000|side for a tile portal edge).
type PolyMesh struct {
	Verts        []uint16   // Vertices in cell units. [(x, y, z) * NVerts]
	Polys        []uint16   // Polygon and neighbor data, stride 2*Nvp.
	Regs         []uint16   // Source region id per polygon.
	Flags        []uint16   // User defined flags per polygon.
	Areas        []uint8    // Area id per polygon.
	NVerts       int32
	NPolys       int32
	MaxPolys     int32 // Allocated polygon capacity.
	Nvp          int32 // Maximum vertices per polygon.
	BMin         [3]float32
	BMax         [3]float32
	Cs           float32
	Ch           float32
	BorderSize   int32   // Border painted around the source heightfield.
	MaxEdgeError float32 // Max deviation of the simplified contour edges.
}

// BuildPolyMesh converts a contour set into a polygon mesh: each
// contour is ear-clipped into triangles, adjacent triangles are merged
// into convex polygons of up to nvp vertices, and cross-polygon
// adjacency is recorded.
//
// For meshes feeding a navigation mesh, nvp must not exceed
// detour's polygon vertex capacity.
func BuildPolyMesh(ctx *BuildContext, cset *ContourSet, nvp int32) (*PolyMesh, bool) {
	assert.True(ctx != nil, "ctx should not be nil")

	ctx.StartTimer(TimerBuildPolymesh)
	defer ctx.StopTimer(TimerBuildPolymesh)

	var (
		maxVertices     int32
		maxPolys        int32
		maxVertsPerCont int32
	)
	for i := int32(0); i < cset.NConts; i++ {
		// Degenerate contours contribute nothing.
		if cset.Conts[i].NVerts < 3 {
			continue
		}
		maxVertices += cset.Conts[i].NVerts
		maxPolys += cset.Conts[i].NVerts - 2
		maxVertsPerCont = iMax(maxVertsPerCont, cset.Conts[i].NVerts)
	}

	if maxVertices >= 0xfffe {
		ctx.Errorf("BuildPolyMesh: too many vertices %d", maxVertices)
		return nil, false
	}

	mesh := &PolyMesh{
		Cs:           cset.Cs,
		Ch:           cset.Ch,
		BorderSize:   cset.BorderSize,
		MaxEdgeError: cset.MaxError,
		Verts:        make([]uint16, maxVertices*3),
		Polys:        make([]uint16, maxPolys*nvp*2),
		Regs:         make([]uint16, maxPolys),
		Areas:        make([]uint8, maxPolys),
		Nvp:          nvp,
		MaxPolys:     maxPolys,
	}
	copy(mesh.BMin[:], cset.BMin[:])
	copy(mesh.BMax[:], cset.BMax[:])

	for i := range mesh.Polys {
		mesh.Polys[i] = MeshNullIdx
	}

	// Vertex welding hash.
	vflags := make([]uint8, maxVertices)
	nextVert := make([]int32, maxVertices)
	firstVert := make([]int32, vertexBucketCount)
	for i := range firstVert {
		firstVert[i] = -1
	}

	indices := make([]int64, maxVertsPerCont)
	tris := make([]int32, maxVertsPerCont*3)
	polys := make([]uint16, (maxVertsPerCont+1)*nvp)
	tmpPoly := polys[maxVertsPerCont*nvp:]

	for i := int32(0); i < cset.NConts; i++ {
		cont := cset.Conts[i]
		if cont.NVerts < 3 {
			continue
		}

		for j := int32(0); j < cont.NVerts; j++ {
			indices[j] = int64(j)
		}
		ntris := triangulate(cont.NVerts, cont.Verts, indices, tris)
		if ntris <= 0 {
			// Non-simple contour; keep the triangles that did come out.
			ctx.Warningf("BuildPolyMesh: bad triangulation of contour %d", i)
			ntris = -ntris
		}

		// Weld this contour's vertices into the shared vertex set.
		for j := int32(0); j < cont.NVerts; j++ {
			v := cont.Verts[j*4:]
			indices[j] = int64(addVertex(uint16(v[0]), uint16(v[1]), uint16(v[2]),
				mesh.Verts, firstVert, nextVert, &mesh.NVerts))
			if v[3]&BorderVertex != 0 {
				// Remembered for removal once every contour using it
				// has been stored.
				vflags[indices[j]] = 1
			}
		}

		// Seed polygons from the triangles.
		var npolys int32
		for j := int32(0); j < maxVertsPerCont*nvp; j++ {
			polys[j] = MeshNullIdx
		}
		for j := int32(0); j < ntris; j++ {
			t := tris[j*3:]
			if t[0] != t[1] && t[0] != t[2] && t[1] != t[2] {
				polys[npolys*nvp+0] = uint16(indices[t[0]])
				polys[npolys*nvp+1] = uint16(indices[t[1]])
				polys[npolys*nvp+2] = uint16(indices[t[2]])
				npolys++
			}
		}
		if npolys == 0 {
			continue
		}

		// Greedily merge the pair sharing the longest edge, while the
		// merged polygon stays convex and within nvp vertices.
		if nvp > 3 {
			for {
				var (
					bestMergeVal                   int32
					bestPa, bestPb, bestEa, bestEb int32
				)
				for j := int32(0); j < npolys-1; j++ {
					pj := polys[j*nvp:]
					for k := j + 1; k < npolys; k++ {
						pk := polys[k*nvp:]
						v, ea, eb := polyMergeValue(pj, pk, mesh.Verts, nvp)
						if v > bestMergeVal {
							bestMergeVal = v
							bestPa, bestPb = j, k
							bestEa, bestEb = ea, eb
						}
					}
				}
				if bestMergeVal <= 0 {
					break
				}
				pa := polys[bestPa*nvp:]
				pb := polys[bestPb*nvp:]
				mergePolyVerts(pa, pb, bestEa, bestEb, tmpPoly, nvp)
				lastPoly := polys[(npolys-1)*nvp:]
				if !samePointerSlicesUint16(pb, lastPoly) {
					copy(pb, lastPoly[:nvp])
				}
				npolys--
			}
		}

		// Store this contour's polygons.
		for j := int32(0); j < npolys; j++ {
			p := mesh.Polys[mesh.NPolys*nvp*2:]
			copy(p, polys[j*nvp:(j+1)*nvp])
			mesh.Regs[mesh.NPolys] = cont.Reg
			mesh.Areas[mesh.NPolys] = cont.Area
			mesh.NPolys++
			if mesh.NPolys > maxPolys {
				ctx.Errorf("BuildPolyMesh: too many polygons %d (max %d)", mesh.NPolys, maxPolys)
				return nil, false
			}
		}
	}

	// Remove the border vertices marked during contour tracing, so
	// polygons on both sides of a tile edge line up.
	for i := int32(0); i < mesh.NVerts; i++ {
		if vflags[i] == 0 {
			continue
		}
		if !canRemoveVertex(ctx, mesh, uint16(i)) {
			continue
		}
		if !removeVertex(ctx, mesh, uint16(i), maxPolys) {
			ctx.Errorf("BuildPolyMesh: failed to remove edge vertex %d", i)
			return nil, false
		}
		// removeVertex compacted the vertex array; shift the flags to
		// match and retest the new occupant of slot i.
		copy(vflags[i:], vflags[i+1:mesh.NVerts+1])
		i--
	}

	if !buildMeshAdjacency(mesh.Polys, mesh.NPolys, mesh.NVerts, nvp) {
		ctx.Errorf("BuildPolyMesh: adjacency failed")
		return nil, false
	}

	// Mark tile portal edges: open edges lying exactly on the
	// heightfield border become 0x8000|side instead of walls.
	if mesh.BorderSize > 0 {
		w := cset.Width
		h := cset.Height
		for i := int32(0); i < mesh.NPolys; i++ {
			p := mesh.Polys[i*2*nvp:]
			for j := int32(0); j < nvp; j++ {
				if p[j] == MeshNullIdx {
					break
				}
				if p[nvp+j] != MeshNullIdx {
					continue
				}
				nj := j + 1
				if nj >= nvp || p[nj] == MeshNullIdx {
					nj = 0
				}
				va := mesh.Verts[p[j]*3:]
				vb := mesh.Verts[p[nj]*3:]

				switch {
				case int32(va[0]) == 0 && int32(vb[0]) == 0:
					p[nvp+j] = 0x8000 | 0
				case int32(va[2]) == h && int32(vb[2]) == h:
					p[nvp+j] = 0x8000 | 1
				case int32(va[0]) == w && int32(vb[0]) == w:
					p[nvp+j] = 0x8000 | 2
				case int32(va[2]) == 0 && int32(vb[2]) == 0:
					p[nvp+j] = 0x8000 | 3
				}
			}
		}
	}

	// The flags array is the caller's to fill.
	mesh.Flags = make([]uint16, mesh.NPolys)

	if mesh.NVerts > 0xffff {
		ctx.Errorf("BuildPolyMesh: %d vertices exceed the 16-bit index range", mesh.NVerts)
	}
	if mesh.NPolys > 0xffff {
		ctx.Errorf("BuildPolyMesh: %d polygons exceed the 16-bit index range", mesh.NPolys)
	}
	return mesh, true
}
