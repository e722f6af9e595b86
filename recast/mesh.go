package recast

// multipleRegs is the region id given to a polygon that ended up
// covering spans of more than one region after a vertex removal.
const multipleRegs uint16 = 0

// removableFlag marks a triangulation index whose vertex is the tip of
// a valid ear.
const removableFlag int64 = 0x80000000

// indexMask recovers the vertex index from a flagged triangulation
// index.
const indexMask int64 = 0x0fffffff

type edge struct {
	vert     [2]uint16
	polyEdge [2]uint16
	poly     [2]uint16
}

// buildMeshAdjacency fills the neighbor half of each polygon entry of
// polys: for every edge shared by two polygons, each records the other
// across that edge. Based on Eric Lengyel's edge list construction
// (http://www.terathon.com/code/edges.php).
func buildMeshAdjacency(polys []uint16, npolys, nverts, vertsPerPoly int32) bool {
	maxEdgeCount := npolys * vertsPerPoly
	firstEdge := make([]uint16, nverts+maxEdgeCount)
	nextEdge := firstEdge[nverts:]
	edges := make([]edge, 0, maxEdgeCount)

	for i := int32(0); i < nverts; i++ {
		firstEdge[i] = MeshNullIdx
	}

	// First pass: record each edge once, keyed by its lower vertex.
	for i := int32(0); i < npolys; i++ {
		t := polys[i*vertsPerPoly*2:]
		for j := int32(0); j < vertsPerPoly; j++ {
			if t[j] == MeshNullIdx {
				break
			}
			v0 := t[j]
			v1 := t[0]
			if j+1 < vertsPerPoly && t[j+1] != MeshNullIdx {
				v1 = t[j+1]
			}
			if v0 < v1 {
				edges = append(edges, edge{
					vert:     [2]uint16{v0, v1},
					poly:     [2]uint16{uint16(i), uint16(i)},
					polyEdge: [2]uint16{uint16(j), 0},
				})
				nextEdge[len(edges)-1] = firstEdge[v0]
				firstEdge[v0] = uint16(len(edges) - 1)
			}
		}
	}

	// Second pass: match the reversed occurrences.
	for i := int32(0); i < npolys; i++ {
		t := polys[i*vertsPerPoly*2:]
		for j := int32(0); j < vertsPerPoly; j++ {
			if t[j] == MeshNullIdx {
				break
			}
			v0 := t[j]
			v1 := t[0]
			if j+1 < vertsPerPoly && t[j+1] != MeshNullIdx {
				v1 = t[j+1]
			}
			if v0 > v1 {
				for e := firstEdge[v1]; e != MeshNullIdx; e = nextEdge[e] {
					ed := &edges[e]
					if ed.vert[1] == v0 && ed.poly[0] == ed.poly[1] {
						ed.poly[1] = uint16(i)
						ed.polyEdge[1] = uint16(j)
						break
					}
				}
			}
		}
	}

	for i := range edges {
		e := &edges[i]
		if e.poly[0] != e.poly[1] {
			p0 := polys[int32(e.poly[0])*vertsPerPoly*2:]
			p1 := polys[int32(e.poly[1])*vertsPerPoly*2:]
			p0[vertsPerPoly+int32(e.polyEdge[0])] = e.poly[1]
			p1[vertsPerPoly+int32(e.polyEdge[1])] = e.poly[0]
		}
	}
	return true
}

const vertexBucketCount int32 = 1 << 12

func computeVertexHash(x, y, z int32) int32 {
	// Arbitrarily chosen large multiplicative primes.
	const (
		h1 int64 = 0x8da6b343
		h2 int64 = 0xd8163841
		h3 int64 = 0xcb1ab31f
	)
	n := uint32(h1*int64(x) + h2*int64(y) + h3*int64(z))
	return int32(n & uint32(vertexBucketCount-1))
}

// addVertex returns the shared index of (x, y, z), welding vertices
// whose xz match and whose y differ by at most 2 cells, so both sides
// of a shared contour edge resolve to identical index pairs.
func addVertex(x, y, z uint16, verts []uint16, firstVert, nextVert []int32, nv *int32) uint16 {
	bucket := computeVertexHash(int32(x), 0, int32(z))
	for i := firstVert[bucket]; i != -1; i = nextVert[i] {
		v := verts[i*3:]
		if v[0] == x && iAbs(int32(v[1])-int32(y)) <= 2 && v[2] == z {
			return uint16(i)
		}
	}

	i := *nv
	*nv++
	v := verts[i*3:]
	v[0] = x
	v[1] = y
	v[2] = z
	nextVert[i] = firstVert[bucket]
	firstVert[bucket] = i
	return uint16(i)
}

// inCone reports whether the diagonal (i, j) is strictly inside the
// polygon in the neighborhood of endpoint i.
func inCone(i, j, n int32, verts []int32, indices []int64) bool {
	pi := verts[(indices[i]&indexMask)*4:]
	pj := verts[(indices[j]&indexMask)*4:]
	pi1 := verts[(indices[next(i, n)]&indexMask)*4:]
	pin1 := verts[(indices[prev(i, n)]&indexMask)*4:]

	// Convex vertex at i.
	if leftOn(pin1, pi, pi1) {
		return left(pi, pj, pin1) && left(pj, pi, pi1)
	}
	// Reflex vertex, assuming (i-1, i, i+1) not collinear.
	return !(leftOn(pi, pj, pi1) && leftOn(pj, pi, pin1))
}

// diagonalie reports whether the segment (i, j) crosses no polygon
// edge, ignoring edges incident to either endpoint. It accepts both
// internal and external diagonals.
func diagonalie(i, j, n int32, verts []int32, indices []int64) bool {
	d0 := verts[(indices[i]&indexMask)*4:]
	d1 := verts[(indices[j]&indexMask)*4:]

	for k := int32(0); k < n; k++ {
		k1 := next(k, n)
		if k == i || k1 == i || k == j || k1 == j {
			continue
		}
		p0 := verts[(indices[k]&indexMask)*4:]
		p1 := verts[(indices[k1]&indexMask)*4:]
		if vequal(d0, p0) || vequal(d1, p0) || vequal(d0, p1) || vequal(d1, p1) {
			continue
		}
		if intersect(d0, d1, p0, p1) {
			return false
		}
	}
	return true
}

// diagonal reports whether (i, j) is a proper internal diagonal.
func diagonal(i, j, n int32, verts []int32, indices []int64) bool {
	return inCone(i, j, n, verts, indices) && diagonalie(i, j, n, verts, indices)
}

// Loose variants of the diagonal tests: they accept vertices lying on
// the cone boundary and properly-intersecting-at-endpoint edges, used
// to recover from contours with overlapping segments.

func inConeLoose(i, j, n int32, verts []int32, indices []int64) bool {
	pi := verts[(indices[i]&indexMask)*4:]
	pj := verts[(indices[j]&indexMask)*4:]
	pi1 := verts[(indices[next(i, n)]&indexMask)*4:]
	pin1 := verts[(indices[prev(i, n)]&indexMask)*4:]

	if leftOn(pin1, pi, pi1) {
		return leftOn(pi, pj, pin1) && leftOn(pj, pi, pi1)
	}
	return !(leftOn(pi, pj, pi1) && leftOn(pj, pi, pin1))
}

func diagonalieLoose(i, j, n int32, verts []int32, indices []int64) bool {
	d0 := verts[(indices[i]&indexMask)*4:]
	d1 := verts[(indices[j]&indexMask)*4:]

	for k := int32(0); k < n; k++ {
		k1 := next(k, n)
		if k == i || k1 == i || k == j || k1 == j {
			continue
		}
		p0 := verts[(indices[k]&indexMask)*4:]
		p1 := verts[(indices[k1]&indexMask)*4:]
		if vequal(d0, p0) || vequal(d1, p0) || vequal(d0, p1) || vequal(d1, p1) {
			continue
		}
		if intersectProp(d0, d1, p0, p1) {
			return false
		}
	}
	return true
}

func diagonalLoose(i, j, n int32, verts []int32, indices []int64) bool {
	return inConeLoose(i, j, n, verts, indices) && diagonalieLoose(i, j, n, verts, indices)
}

// triangulate ear-clips the polygon whose n vertex indices are in
// indices, preferring at each step the ear with the shortest diagonal,
// and writes index triples to tris. A negative return value is the
// count of triangles emitted before the polygon turned out to be
// non-simple.
func triangulate(n int32, verts []int32, indices []int64, tris []int32) int32 {
	var ntris int32
	dst := tris

	// Flag every vertex that currently tips a valid ear.
	for i := int32(0); i < n; i++ {
		i1 := next(i, n)
		i2 := next(i1, n)
		if diagonal(i, i2, n, verts, indices) {
			indices[i1] |= removableFlag
		}
	}

	for n > 3 {
		minLen := int32(-1)
		mini := int32(-1)
		for i := int32(0); i < n; i++ {
			i1 := next(i, n)
			if indices[i1]&removableFlag == 0 {
				continue
			}
			p0 := verts[(indices[i]&indexMask)*4:]
			p2 := verts[(indices[next(i1, n)]&indexMask)*4:]
			dx := p2[0] - p0[0]
			dy := p2[2] - p0[2]
			length := dx*dx + dy*dy
			if minLen < 0 || length < minLen {
				minLen = length
				mini = i
			}
		}

		if mini == -1 {
			// No ear found. The contour probably has overlapping
			// segments; retry with the loose diagonal test so a
			// diagonal across the overlap can be picked.
			for i := int32(0); i < n; i++ {
				i1 := next(i, n)
				i2 := next(i1, n)
				if !diagonalLoose(i, i2, n, verts, indices) {
					continue
				}
				p0 := verts[(indices[i]&indexMask)*4:]
				p2 := verts[(indices[next(i2, n)]&indexMask)*4:]
				dx := p2[0] - p0[0]
				dy := p2[2] - p0[2]
				length := dx*dx + dy*dy
				if minLen < 0 || length < minLen {
					minLen = length
					mini = i
				}
			}
			if mini == -1 {
				// Non-simple polygon, typically from too-aggressive
				// contour simplification. Report what was emitted.
				return -ntris
			}
		}

		i := mini
		i1 := next(i, n)
		i2 := next(i1, n)

		dst[0] = int32(indices[i] & indexMask)
		dst[1] = int32(indices[i1] & indexMask)
		dst[2] = int32(indices[i2] & indexMask)
		dst = dst[3:]
		ntris++

		// Clip the ear: drop index i1 and refresh the ear flags of its
		// former neighbors.
		n--
		for k := i1; k < n; k++ {
			indices[k] = indices[k+1]
		}

		if i1 >= n {
			i1 = 0
		}
		i = prev(i1, n)
		if diagonal(prev(i, n), i1, n, verts, indices) {
			indices[i] |= removableFlag
		} else {
			indices[i] &= indexMask
		}
		if diagonal(i, next(i1, n), n, verts, indices) {
			indices[i1] |= removableFlag
		} else {
			indices[i1] &= indexMask
		}
	}

	// The last three vertices form the final triangle.
	dst[0] = int32(indices[0] & indexMask)
	dst[1] = int32(indices[1] & indexMask)
	dst[2] = int32(indices[2] & indexMask)
	ntris++
	return ntris
}

func countPolyVerts(p []uint16, nvp int32) int32 {
	for i := int32(0); i < nvp; i++ {
		if p[i] == MeshNullIdx {
			return i
		}
	}
	return nvp
}

func uleft(a, b, c []uint16) bool {
	return (int32(b[0])-int32(a[0]))*(int32(c[2])-int32(a[2]))-
		(int32(c[0])-int32(a[0]))*(int32(b[2])-int32(a[2])) < 0
}

// polyMergeValue scores merging pa and pb: the squared length of their
// shared edge, or -1 when they share no edge, the merged polygon would
// exceed nvp vertices, or it would go non-convex. ea and eb are the
// shared edge's index in each polygon.
func polyMergeValue(pa, pb, verts []uint16, nvp int32) (val, ea, eb int32) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)

	// Merged size check.
	if na+nb-2 > nvp {
		return -1, -1, -1
	}

	// Find the shared edge.
	ea, eb = -1, -1
	for i := int32(0); i < na; i++ {
		va0 := pa[i]
		va1 := pa[(i+1)%na]
		if va0 > va1 {
			va0, va1 = va1, va0
		}
		for j := int32(0); j < nb; j++ {
			vb0 := pb[j]
			vb1 := pb[(j+1)%nb]
			if vb0 > vb1 {
				vb0, vb1 = vb1, vb0
			}
			if va0 == vb0 && va1 == vb1 {
				ea, eb = i, j
				break
			}
		}
	}
	if ea == -1 || eb == -1 {
		return -1, -1, -1
	}

	// The merged polygon must stay convex at both junction corners.
	va := pa[(ea+na-1)%na]
	vb := pa[ea]
	vc := pb[(eb+2)%nb]
	if !uleft(verts[va*3:], verts[vb*3:], verts[vc*3:]) {
		return -1, -1, -1
	}
	va = pb[(eb+nb-1)%nb]
	vb = pb[eb]
	vc = pa[(ea+2)%na]
	if !uleft(verts[va*3:], verts[vb*3:], verts[vc*3:]) {
		return -1, -1, -1
	}

	va = pa[ea]
	vb = pa[(ea+1)%na]
	dx := int32(verts[va*3+0]) - int32(verts[vb*3+0])
	dy := int32(verts[va*3+2]) - int32(verts[vb*3+2])
	return dx*dx + dy*dy, ea, eb
}

// mergePolyVerts rewrites pa as the union of pa and pb across their
// shared edge (ea, eb).
func mergePolyVerts(pa, pb []uint16, ea, eb int32, tmp []uint16, nvp int32) {
	na := countPolyVerts(pa, nvp)
	nb := countPolyVerts(pb, nvp)

	for i := int32(0); i < nvp; i++ {
		tmp[i] = MeshNullIdx
	}
	var n int32
	for i := int32(0); i < na-1; i++ {
		tmp[n] = pa[(ea+1+i)%na]
		n++
	}
	for i := int32(0); i < nb-1; i++ {
		tmp[n] = pb[(eb+1+i)%nb]
		n++
	}
	copy(pa, tmp[:nvp])
}

func pushFront(v int32, arr []int32) []int32 {
	arr = append(arr, 0)
	copy(arr[1:], arr)
	arr[0] = v
	return arr
}

// canRemoveVertex reports whether removing the vertex leaves a hole
// that can be re-polygonized: enough edges to close a polygon and at
// most two open edges (two non-adjacent polygons sharing the vertex
// would produce more).
func canRemoveVertex(ctx *BuildContext, mesh *PolyMesh, rem uint16) bool {
	nvp := mesh.Nvp

	var (
		numTouchedVerts   int32
		numRemainingEdges int32
	)
	for i := int32(0); i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		nv := countPolyVerts(p, nvp)
		var numRemoved, numVerts int32
		for j := int32(0); j < nv; j++ {
			if p[j] == rem {
				numTouchedVerts++
				numRemoved++
			}
			numVerts++
		}
		if numRemoved != 0 {
			numRemainingEdges += numVerts - (numRemoved + 1)
		}
	}
	// E.g. the tip of a triangle no other polygon shares: nothing
	// would be left to close the hole with.
	if numRemainingEdges <= 2 {
		return false
	}

	// Collect the edges touching the vertex, counting how many
	// polygons share each.
	type touchEdge struct {
		a, b  int32
		share int32
	}
	edges := make([]touchEdge, 0, numTouchedVerts*2)

	for i := int32(0); i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		nv := countPolyVerts(p, nvp)
		for j, k := int32(0), nv-1; j < nv; k, j = j, j+1 {
			if p[j] != rem && p[k] != rem {
				continue
			}
			// Orient the edge so a == rem.
			a, b := int32(p[j]), int32(p[k])
			if b == int32(rem) {
				a, b = b, a
			}
			exists := false
			for m := range edges {
				if edges[m].b == b {
					edges[m].share++
					exists = true
				}
			}
			if !exists {
				edges = append(edges, touchEdge{a: a, b: b, share: 1})
			}
		}
	}

	var numOpenEdges int32
	for i := range edges {
		if edges[i].share < 2 {
			numOpenEdges++
		}
	}
	return numOpenEdges <= 2
}

// removeVertex deletes the vertex from the mesh, removes every polygon
// using it, and re-triangulates and re-merges the resulting hole.
func removeVertex(ctx *BuildContext, mesh *PolyMesh, rem uint16, maxPolys int32) bool {
	nvp := mesh.Nvp

	var numRemovedVerts int32
	for i := int32(0); i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		nv := countPolyVerts(p, nvp)
		for j := int32(0); j < nv; j++ {
			if p[j] == rem {
				numRemovedVerts++
			}
		}
	}

	type holeEdge struct {
		a, b int32
		reg  uint16
		area uint8
	}
	edges := make([]holeEdge, 0, numRemovedVerts*nvp)

	for i := int32(0); i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		nv := countPolyVerts(p, nvp)
		hasRem := false
		for j := int32(0); j < nv; j++ {
			if p[j] == rem {
				hasRem = true
			}
		}
		if !hasRem {
			continue
		}

		// Keep the polygon's edges that don't touch the vertex; they
		// bound the hole.
		for j, k := int32(0), nv-1; j < nv; k, j = j, j+1 {
			if p[j] != rem && p[k] != rem {
				edges = append(edges, holeEdge{
					a:    int32(p[k]),
					b:    int32(p[j]),
					reg:  mesh.Regs[i],
					area: mesh.Areas[i],
				})
			}
		}

		// Remove the polygon by swapping the last one in.
		p2 := mesh.Polys[(mesh.NPolys-1)*nvp*2:]
		if !samePointerSlicesUint16(p, p2) {
			copy(p, p2[:nvp])
		}
		mesh.Regs[i] = mesh.Regs[mesh.NPolys-1]
		mesh.Areas[i] = mesh.Areas[mesh.NPolys-1]
		mesh.NPolys--
		i--
	}

	// Remove the vertex and shift every index above it down.
	for i := int32(rem); i < mesh.NVerts-1; i++ {
		copy(mesh.Verts[i*3:i*3+3], mesh.Verts[(i+1)*3:(i+1)*3+3])
	}
	mesh.NVerts--

	for i := int32(0); i < mesh.NPolys; i++ {
		p := mesh.Polys[i*nvp*2:]
		nv := countPolyVerts(p, nvp)
		for j := int32(0); j < nv; j++ {
			if p[j] > rem {
				p[j]--
			}
		}
	}
	for i := range edges {
		if edges[i].a > int32(rem) {
			edges[i].a--
		}
		if edges[i].b > int32(rem) {
			edges[i].b--
		}
	}

	if len(edges) == 0 {
		return true
	}

	// Chain the loose edges into the hole's boundary loop, growing it
	// from both ends.
	hole := []int32{edges[0].a}
	hreg := []uint16{edges[0].reg}
	harea := []uint8{edges[0].area}

	for len(edges) > 0 {
		match := false
		for i := 0; i < len(edges); i++ {
			e := edges[i]
			var add bool
			if hole[0] == e.b {
				hole = pushFront(e.a, hole)
				hreg = append(hreg, 0)
				copy(hreg[1:], hreg)
				hreg[0] = e.reg
				harea = append(harea, 0)
				copy(harea[1:], harea)
				harea[0] = e.area
				add = true
			} else if hole[len(hole)-1] == e.a {
				hole = append(hole, e.b)
				hreg = append(hreg, e.reg)
				harea = append(harea, e.area)
				add = true
			}
			if add {
				edges[i] = edges[len(edges)-1]
				edges = edges[:len(edges)-1]
				match = true
				i--
			}
		}
		if !match {
			break
		}
	}

	nhole := int32(len(hole))
	tris := make([]int32, nhole*3)
	tverts := make([]int32, nhole*4)
	thole := make([]int64, nhole)

	for i := int32(0); i < nhole; i++ {
		pi := hole[i]
		tverts[i*4+0] = int32(mesh.Verts[pi*3+0])
		tverts[i*4+1] = int32(mesh.Verts[pi*3+1])
		tverts[i*4+2] = int32(mesh.Verts[pi*3+2])
		tverts[i*4+3] = 0
		thole[i] = int64(i)
	}

	ntris := triangulate(nhole, tverts, thole, tris)
	if ntris < 0 {
		ntris = -ntris
		ctx.Warningf("removeVertex: hole triangulation produced a partial result.")
	}

	// Merge the hole triangles back into polygons.
	polys := make([]uint16, (ntris+1)*nvp)
	pregs := make([]uint16, ntris)
	pareas := make([]uint8, ntris)
	tmpPoly := polys[ntris*nvp:]

	var npolys int32
	for i := int32(0); i < ntris*nvp; i++ {
		polys[i] = MeshNullIdx
	}
	for j := int32(0); j < ntris; j++ {
		t := tris[j*3:]
		if t[0] != t[1] && t[0] != t[2] && t[1] != t[2] {
			polys[npolys*nvp+0] = uint16(hole[t[0]])
			polys[npolys*nvp+1] = uint16(hole[t[1]])
			polys[npolys*nvp+2] = uint16(hole[t[2]])

			// A triangle spanning several regions keeps none of them.
			if hreg[t[0]] != hreg[t[1]] || hreg[t[1]] != hreg[t[2]] {
				pregs[npolys] = multipleRegs
			} else {
				pregs[npolys] = hreg[t[0]]
			}
			pareas[npolys] = harea[t[0]]
			npolys++
		}
	}
	if npolys == 0 {
		return true
	}

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
			if pregs[bestPa] != pregs[bestPb] {
				pregs[bestPa] = multipleRegs
			}
			last := polys[(npolys-1)*nvp:]
			if !samePointerSlicesUint16(pb, last) {
				copy(pb, last[:nvp])
			}
			pregs[bestPb] = pregs[npolys-1]
			pareas[bestPb] = pareas[npolys-1]
			npolys--
		}
	}

	// Store the rebuilt polygons.
	for i := int32(0); i < npolys; i++ {
		if mesh.NPolys >= maxPolys {
			break
		}
		p := mesh.Polys[mesh.NPolys*nvp*2:]
		for idx := int32(0); idx < nvp; idx++ {
			p[idx] = MeshNullIdx
		}
		copy(p, polys[i*nvp:(i+1)*nvp])
		mesh.Regs[mesh.NPolys] = pregs[i]
		mesh.Areas[mesh.NPolys] = pareas[i]
		mesh.NPolys++
		if mesh.NPolys > maxPolys {
			ctx.Errorf("removeVertex: too many polygons %d (max %d)", mesh.NPolys, maxPolys)
			return false
		}
	}
	return true
}
