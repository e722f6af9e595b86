package recast

import (
	"sort"

	"github.com/arl/assertgo"
)

// Contour is one region's boundary: the raw vertices traced along the
// voxel corners plus the simplified polygon kept for meshing. Each
// vertex is 4 ints: x, y, z in cell units and a tag carrying the
// neighbor region plus the BorderVertex/AreaBorder flags.
type Contour struct {
	Verts   []int32 // Simplified vertices. [4 * NVerts]
	NVerts  int32
	RVerts  []int32 // Raw vertices. [4 * NRVerts]
	NRVerts int32
	Reg     uint16 // Region the contour bounds.
	Area    uint8  // Area of that region.
}

// ContourSet holds every contour traced from one compact heightfield,
// plus the grid parameters needed to interpret them.
type ContourSet struct {
	Conts      []Contour
	NConts     int32
	BMin       [3]float32
	BMax       [3]float32
	Cs         float32
	Ch         float32
	Width      int32 // Grid extent along x, without the border.
	Height     int32 // Grid extent along z, without the border.
	BorderSize int32
	MaxError   float32 // Simplification tolerance the set was built with.
}

// cornerHeight returns the height of the voxel corner ahead of span i
// in direction dir: the max Y over the up-to-four spans meeting at the
// corner. isBorderVertex reports a corner where two same-region border
// cells meet two same-area interior cells; such vertices are removed
// later so tile borders line up.
func cornerHeight(x, y, i, dir int32, chf *CompactHeightfield) (ch int32, isBorderVertex bool) {
	s := &chf.Spans[i]
	ch = int32(s.Y)
	dirp := (dir + 1) & 0x3

	// Region and area are checked together so a border vertex between
	// two areas survives.
	var regs [4]uint32
	regs[0] = uint32(chf.Spans[i].Reg) | (uint32(chf.Areas[i]) << 16)

	if GetCon(s, dir) != NotConnected {
		ax := x + GetDirOffsetX(dir)
		ay := y + GetDirOffsetY(dir)
		ai := int32(chf.Cells[ax+ay*chf.Width].Index) + GetCon(s, dir)
		as := &chf.Spans[ai]
		ch = iMax(ch, int32(as.Y))
		regs[1] = uint32(chf.Spans[ai].Reg) | (uint32(chf.Areas[ai]) << 16)
		if GetCon(as, dirp) != NotConnected {
			ax2 := ax + GetDirOffsetX(dirp)
			ay2 := ay + GetDirOffsetY(dirp)
			ai2 := int32(chf.Cells[ax2+ay2*chf.Width].Index) + GetCon(as, dirp)
			ch = iMax(ch, int32(chf.Spans[ai2].Y))
			regs[2] = uint32(chf.Spans[ai2].Reg) | (uint32(chf.Areas[ai2]) << 16)
		}
	}
	if GetCon(s, dirp) != NotConnected {
		ax := x + GetDirOffsetX(dirp)
		ay := y + GetDirOffsetY(dirp)
		ai := int32(chf.Cells[ax+ay*chf.Width].Index) + GetCon(s, dirp)
		as := &chf.Spans[ai]
		ch = iMax(ch, int32(as.Y))
		regs[3] = uint32(chf.Spans[ai].Reg) | (uint32(chf.Areas[ai]) << 16)
		if GetCon(as, dir) != NotConnected {
			ax2 := ax + GetDirOffsetX(dir)
			ay2 := ay + GetDirOffsetY(dir)
			ai2 := int32(chf.Cells[ax2+ay2*chf.Width].Index) + GetCon(as, dir)
			ch = iMax(ch, int32(chf.Spans[ai2].Y))
			regs[2] = uint32(chf.Spans[ai2].Reg) | (uint32(chf.Areas[ai2]) << 16)
		}
	}

	for j := int32(0); j < 4; j++ {
		a := j
		b := (j + 1) & 0x3
		c := (j + 2) & 0x3
		d := (j + 3) & 0x3

		twoSameExts := (regs[a]&regs[b]&uint32(BorderReg)) != 0 && regs[a] == regs[b]
		twoInts := ((regs[c] | regs[d]) & uint32(BorderReg)) == 0
		intsSameArea := (regs[c] >> 16) == (regs[d] >> 16)
		noZeros := regs[a] != 0 && regs[b] != 0 && regs[c] != 0 && regs[d] != 0
		if twoSameExts && twoInts && intsSameArea && noZeros {
			isBorderVertex = true
			break
		}
	}
	return ch, isBorderVertex
}

// walkContour traces the boundary loop that starts at span i's first
// unconnected edge, emitting one tagged vertex per boundary corner,
// and clears the boundary flags it consumes.
func walkContour(x, y, i int32, chf *CompactHeightfield, flags []uint8) []int32 {
	var points []int32

	// Start at the first boundary edge.
	var dir uint8
	for flags[i]&(1<<dir) == 0 {
		dir++
	}
	startDir := dir
	starti := i

	area := chf.Areas[i]

	for iter := int32(0); iter+1 < 40000; iter++ {
		if flags[i]&(1<<dir) != 0 {
			// Boundary edge: emit the corner ahead of it.
			px := x
			py, isBorderVertex := cornerHeight(x, y, i, int32(dir), chf)
			pz := y
			switch dir {
			case 0:
				pz++
			case 1:
				px++
				pz++
			case 2:
				px++
			}

			var r int32
			isAreaBorder := false
			s := &chf.Spans[i]
			if GetCon(s, int32(dir)) != NotConnected {
				ax := x + GetDirOffsetX(int32(dir))
				ay := y + GetDirOffsetY(int32(dir))
				ai := int32(chf.Cells[ax+ay*chf.Width].Index) + GetCon(s, int32(dir))
				r = int32(chf.Spans[ai].Reg)
				if area != chf.Areas[ai] {
					isAreaBorder = true
				}
			}
			if isBorderVertex {
				r |= BorderVertex
			}
			if isAreaBorder {
				r |= AreaBorder
			}
			points = append(points, px, py, pz, r)

			flags[i] &= ^(1 << dir) // consume the edge
			dir = (dir + 1) & 0x3   // rotate CW
		} else {
			// Open edge: step into the neighbor and turn CCW.
			ni := int32(-1)
			nx := x + GetDirOffsetX(int32(dir))
			ny := y + GetDirOffsetY(int32(dir))
			s := &chf.Spans[i]
			if GetCon(s, int32(dir)) != NotConnected {
				ni = int32(chf.Cells[nx+ny*chf.Width].Index) + GetCon(s, int32(dir))
			}
			if ni == -1 {
				// Should not happen on a consistent field.
				return points
			}
			x = nx
			y = ny
			i = ni
			dir = (dir + 3) & 0x3 // rotate CCW
		}

		if starti == i && startDir == dir {
			break
		}
	}
	return points
}

// distancePtSeg returns the squared distance from (x, z) to the
// segment (px, pz)-(qx, qz).
func distancePtSeg(x, z, px, pz, qx, qz int32) float32 {
	pqx := float32(qx - px)
	pqz := float32(qz - pz)
	dx := float32(x - px)
	dz := float32(z - pz)
	d := pqx*pqx + pqz*pqz
	t := pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	dx = float32(px) + t*pqx - float32(x)
	dz = float32(pz) + t*pqz - float32(z)
	return dx*dx + dz*dz
}

// insertPoint makes room at simplified index i+1 and writes (x, y, z,
// tag) there.
func insertPoint(simplified []int32, i, x, y, z, tag int32) []int32 {
	simplified = append(simplified, 0, 0, 0, 0)
	n := int32(len(simplified) / 4)
	for j := n - 1; j > i; j-- {
		copy(simplified[j*4:j*4+4], simplified[(j-1)*4:(j-1)*4+4])
	}
	simplified[(i+1)*4+0] = x
	simplified[(i+1)*4+1] = y
	simplified[(i+1)*4+2] = z
	simplified[(i+1)*4+3] = tag
	return simplified
}

// simplifyContour reduces a raw contour to the vertices that matter:
// mandatory points where the neighbor region or area changes, plus
// Douglas-Peucker subdivision until every raw point is within maxError
// of the simplified shape, plus optional splitting of edges longer
// than maxEdgeLen. The fourth component of each simplified vertex is
// the raw index it came from until the final pass rewrites it to the
// neighbor-region tag.
func simplifyContour(points []int32, maxError float32, maxEdgeLen, buildFlags int32) []int32 {
	var simplified []int32

	// Mandatory vertices: every point where the connected region
	// changes.
	hasConnections := false
	for i := 0; i < len(points); i += 4 {
		if points[i+3]&ContourRegMask != 0 {
			hasConnections = true
			break
		}
	}
	if hasConnections {
		for i, ni := 0, len(points)/4; i < ni; i++ {
			ii := (i + 1) % ni
			differentRegs := points[i*4+3]&ContourRegMask != points[ii*4+3]&ContourRegMask
			areaBorders := points[i*4+3]&AreaBorder != points[ii*4+3]&AreaBorder
			if differentRegs || areaBorders {
				simplified = append(simplified, points[i*4+0], points[i*4+1], points[i*4+2], int32(i))
			}
		}
	}

	if len(simplified) == 0 {
		// No connections anywhere: seed with the lower-left and
		// upper-right vertices.
		llx, lly, llz := points[0], points[1], points[2]
		urx, ury, urz := points[0], points[1], points[2]
		var lli, uri int32
		for i := 0; i < len(points); i += 4 {
			x, y, z := points[i+0], points[i+1], points[i+2]
			if x < llx || (x == llx && z < llz) {
				llx, lly, llz = x, y, z
				lli = int32(i / 4)
			}
			if x > urx || (x == urx && z > urz) {
				urx, ury, urz = x, y, z
				uri = int32(i / 4)
			}
		}
		simplified = append(simplified, llx, lly, llz, lli)
		simplified = append(simplified, urx, ury, urz, uri)
	}

	// Subdivide until every raw point is within tolerance.
	pn := int32(len(points) / 4)
	for i := int32(0); i < int32(len(simplified)/4); {
		ii := (i + 1) % int32(len(simplified)/4)

		ax := simplified[i*4+0]
		az := simplified[i*4+2]
		ai := simplified[i*4+3]
		bx := simplified[ii*4+0]
		bz := simplified[ii*4+2]
		bi := simplified[ii*4+3]

		var maxd float32
		maxi := int32(-1)
		var ci, cinc, endi int32

		// Walk the raw points in lexicographic order so both sides of
		// a shared segment measure the same deviation.
		if bx > ax || (bx == ax && bz > az) {
			cinc = 1
			ci = (ai + cinc) % pn
			endi = bi
		} else {
			cinc = pn - 1
			ci = (bi + cinc) % pn
			endi = ai
			ax, bx = bx, ax
			az, bz = bz, az
		}

		// Only wall and area-border edges are measured.
		if points[ci*4+3]&ContourRegMask == 0 || points[ci*4+3]&AreaBorder != 0 {
			for ci != endi {
				d := distancePtSeg(points[ci*4+0], points[ci*4+2], ax, az, bx, bz)
				if d > maxd {
					maxd = d
					maxi = ci
				}
				ci = (ci + cinc) % pn
			}
		}

		if maxi != -1 && maxd > maxError*maxError {
			simplified = insertPoint(simplified, i,
				points[maxi*4+0], points[maxi*4+1], points[maxi*4+2], maxi)
		} else {
			i++
		}
	}

	// Split edges longer than maxEdgeLen.
	if maxEdgeLen > 0 && buildFlags&(ContourTessWallEdges|ContourTessAreaEdges) != 0 {
		for i := int32(0); i < int32(len(simplified)/4); {
			ii := (i + 1) % int32(len(simplified)/4)

			ax := simplified[i*4+0]
			az := simplified[i*4+2]
			ai := simplified[i*4+3]
			bx := simplified[ii*4+0]
			bz := simplified[ii*4+2]
			bi := simplified[ii*4+3]

			maxi := int32(-1)
			ci := (ai + 1) % pn

			tess := false
			if buildFlags&ContourTessWallEdges != 0 && points[ci*4+3]&ContourRegMask == 0 {
				tess = true
			}
			if buildFlags&ContourTessAreaEdges != 0 && points[ci*4+3]&AreaBorder != 0 {
				tess = true
			}

			if tess {
				dx := bx - ax
				dz := bz - az
				if dx*dx+dz*dz > maxEdgeLen*maxEdgeLen {
					// Round the split point consistently regardless of
					// traversal direction.
					var n int32
					if bi < ai {
						n = bi + pn - ai
					} else {
						n = bi - ai
					}
					if n > 1 {
						if bx > ax || (bx == ax && bz > az) {
							maxi = (ai + n/2) % pn
						} else {
							maxi = (ai + (n+1)/2) % pn
						}
					}
				}
			}

			if maxi != -1 {
				simplified = insertPoint(simplified, i,
					points[maxi*4+0], points[maxi*4+1], points[maxi*4+2], maxi)
			} else {
				i++
			}
		}
	}

	// Rewrite the raw-index component into the final vertex tag: the
	// neighbor region comes from the next raw point, the border flag
	// from the current one.
	for i := 0; i < len(simplified)/4; i++ {
		ai := (simplified[i*4+3] + 1) % pn
		bi := simplified[i*4+3]
		simplified[i*4+3] = (points[ai*4+3] & (ContourRegMask | AreaBorder)) | (points[bi*4+3] & BorderVertex)
	}
	return simplified
}

// removeDegenerateSegments drops consecutive vertices equal on the xz
// plane, which would confuse the triangulator.
func removeDegenerateSegments(simplified []int32) []int32 {
	npts := int32(len(simplified) / 4)
	for i := int32(0); i < npts; i++ {
		ni := next(i, npts)
		if !vequal(simplified[i*4:], simplified[ni*4:]) {
			continue
		}
		for j := i; j < int32(len(simplified)/4)-1; j++ {
			copy(simplified[j*4:j*4+4], simplified[(j+1)*4:(j+1)*4+4])
		}
		simplified = simplified[:len(simplified)-4]
		npts--
	}
	return simplified
}

// calcAreaOfPolygon2D returns the signed xz area of the contour;
// negative means the contour is wound backwards, i.e. a hole.
func calcAreaOfPolygon2D(verts []int32, nverts int32) int32 {
	var area int32
	for i, j := int32(0), nverts-1; i < nverts; j, i = i, i+1 {
		vi := verts[i*4:]
		vj := verts[j*4:]
		area += vi[0]*vj[2] - vj[0]*vi[2]
	}
	return (area + 1) / 2
}

// BuildContours traces and simplifies the region outlines of the
// compact heightfield into a contour set: boundary spans are flagged,
// each boundary loop is walked, simplified within maxError, and hole
// contours are spliced into their region's outline.
//
// maxEdgeLen of zero disables edge splitting; buildFlags selects which
// edge classes get split.
func BuildContours(ctx *BuildContext, chf *CompactHeightfield,
	maxError float32, maxEdgeLen int32,
	cset *ContourSet, buildFlags int32) bool {
	assert.True(ctx != nil, "ctx should not be nil")

	w := chf.Width
	h := chf.Height
	borderSize := chf.BorderSize

	ctx.StartTimer(TimerBuildContours)
	defer ctx.StopTimer(TimerBuildContours)

	copy(cset.BMin[:], chf.BMin[:])
	copy(cset.BMax[:], chf.BMax[:])
	if borderSize > 0 {
		// Undo the border padding.
		pad := float32(borderSize) * chf.Cs
		cset.BMin[0] += pad
		cset.BMin[2] += pad
		cset.BMax[0] -= pad
		cset.BMax[2] -= pad
	}
	cset.Cs = chf.Cs
	cset.Ch = chf.Ch
	cset.Width = chf.Width - chf.BorderSize*2
	cset.Height = chf.Height - chf.BorderSize*2
	cset.BorderSize = chf.BorderSize
	cset.MaxError = maxError

	maxContours := iMax(int32(chf.MaxRegions), 8)
	cset.Conts = make([]Contour, 0, maxContours)
	cset.NConts = 0

	flags := make([]uint8, chf.SpanCount)

	ctx.StartTimer(TimerBuildContoursTrace)

	// Flag each span's boundary edges: directions where the neighbor
	// belongs to another region (or is missing).
	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i, ni := int32(c.Index), int32(c.Index)+int32(c.Count); i < ni; i++ {
				s := &chf.Spans[i]
				if s.Reg == 0 || s.Reg&BorderReg != 0 {
					flags[i] = 0
					continue
				}
				var res uint8
				for dir := int32(0); dir < 4; dir++ {
					var r uint16
					if GetCon(s, dir) != NotConnected {
						ax := x + GetDirOffsetX(dir)
						ay := y + GetDirOffsetY(dir)
						ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, dir)
						r = chf.Spans[ai].Reg
					}
					if r == chf.Spans[i].Reg {
						res |= 1 << uint(dir)
					}
				}
				flags[i] = res ^ 0xf // invert: set bits mark boundaries
			}
		}
	}

	ctx.StopTimer(TimerBuildContoursTrace)

	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i, ni := int32(c.Index), int32(c.Index)+int32(c.Count); i < ni; i++ {
				if flags[i] == 0 || flags[i] == 0xf {
					flags[i] = 0
					continue
				}
				reg := chf.Spans[i].Reg
				if reg == 0 || reg&BorderReg != 0 {
					continue
				}
				area := chf.Areas[i]

				ctx.StartTimer(TimerBuildContoursTrace)
				verts := walkContour(x, y, i, chf, flags)
				ctx.StopTimer(TimerBuildContoursTrace)

				ctx.StartTimer(TimerBuildContoursSimplify)
				simplified := simplifyContour(verts, maxError, maxEdgeLen, buildFlags)
				simplified = removeDegenerateSegments(simplified)
				ctx.StopTimer(TimerBuildContoursSimplify)

				if len(simplified)/4 < 3 {
					continue
				}

				if int32(len(cset.Conts)) >= maxContours {
					// More contours than regions happens when regions
					// have holes.
					ctx.Warningf("BuildContours: expanding max contours from %d to %d", maxContours, maxContours*2)
					maxContours *= 2
				}

				cont := Contour{
					NVerts:  int32(len(simplified) / 4),
					Verts:   simplified,
					NRVerts: int32(len(verts) / 4),
					RVerts:  verts,
					Reg:     reg,
					Area:    area,
				}
				if borderSize > 0 {
					// Shift out of the padded frame.
					for j := int32(0); j < cont.NVerts; j++ {
						cont.Verts[j*4+0] -= borderSize
						cont.Verts[j*4+2] -= borderSize
					}
					for j := int32(0); j < cont.NRVerts; j++ {
						cont.RVerts[j*4+0] -= borderSize
						cont.RVerts[j*4+2] -= borderSize
					}
				}
				cset.Conts = append(cset.Conts, cont)
				cset.NConts++
			}
		}
	}

	// Splice hole contours into their region's outline.
	if cset.NConts > 0 {
		winding := make([]int8, cset.NConts)
		var nholes int32
		for i := int32(0); i < cset.NConts; i++ {
			cont := &cset.Conts[i]
			if calcAreaOfPolygon2D(cont.Verts, cont.NVerts) < 0 {
				// Wound backwards: a hole.
				winding[i] = -1
				nholes++
			} else {
				winding[i] = 1
			}
		}

		if nholes > 0 {
			// Group the outline and holes of each region; a region has
			// one outline and any number of holes.
			nregions := chf.MaxRegions + 1
			regions := make([]contourRegion, nregions)
			holes := make([]contourHole, cset.NConts)

			for i := int32(0); i < cset.NConts; i++ {
				cont := &cset.Conts[i]
				if winding[i] > 0 {
					if regions[cont.Reg].outline != nil {
						ctx.Errorf("BuildContours: multiple outlines for region %d", cont.Reg)
					}
					regions[cont.Reg].outline = cont
				} else {
					regions[cont.Reg].nholes++
				}
			}
			index := int32(0)
			for i := uint16(0); i < nregions; i++ {
				if regions[i].nholes > 0 {
					regions[i].holes = holes[index:]
					index += regions[i].nholes
					regions[i].nholes = 0
				}
			}
			for i := int32(0); i < cset.NConts; i++ {
				cont := &cset.Conts[i]
				reg := &regions[cont.Reg]
				if winding[i] < 0 {
					reg.holes[reg.nholes].contour = cont
					reg.nholes++
				}
			}

			for i := uint16(0); i < nregions; i++ {
				reg := &regions[i]
				if reg.nholes == 0 {
					continue
				}
				if reg.outline != nil {
					mergeRegionHoles(ctx, reg)
				} else {
					// No outline to merge into: the contour went
					// self-overlapping, usually from a too-aggressive
					// simplification tolerance.
					ctx.Errorf("BuildContours: bad outline for region %d, contour simplification is likely too aggressive", i)
				}
			}
		}
	}
	return true
}

type contourRegion struct {
	outline *Contour
	holes   []contourHole
	nholes  int32
}

type contourHole struct {
	contour              *Contour
	minx, minz, leftmost int32
}

type potentialDiagonal struct {
	vert, dist int32
}

// findLeftMostVertex returns the lowest leftmost vertex of a contour.
func findLeftMostVertex(contour *Contour) (minx, minz, leftmost int32) {
	minx = contour.Verts[0]
	minz = contour.Verts[2]
	for i := int32(1); i < contour.NVerts; i++ {
		x := contour.Verts[i*4+0]
		z := contour.Verts[i*4+2]
		if x < minx || (x == minx && z < minz) {
			minx = x
			minz = z
			leftmost = i
		}
	}
	return minx, minz, leftmost
}

// mergeContours splices contour cb into ca through the diagonal from
// ca's vertex ia to cb's vertex ib, leaving ca weakly simple and cb
// empty.
func mergeContours(ca, cb *Contour, ia, ib int32) bool {
	maxVerts := ca.NVerts + cb.NVerts + 2
	verts := make([]int32, 0, maxVerts*4)

	// Contour A, closed back through the diagonal start.
	for i := int32(0); i <= ca.NVerts; i++ {
		src := ca.Verts[((ia+i)%ca.NVerts)*4:]
		verts = append(verts, src[0], src[1], src[2], src[3])
	}
	// Contour B, likewise.
	for i := int32(0); i <= cb.NVerts; i++ {
		src := cb.Verts[((ib+i)%cb.NVerts)*4:]
		verts = append(verts, src[0], src[1], src[2], src[3])
	}

	ca.Verts = verts
	ca.NVerts = int32(len(verts) / 4)
	cb.Verts = nil
	cb.NVerts = 0
	return true
}

// intersectSegContour reports whether the segment d0-d1 crosses any
// contour edge, ignoring edges incident to vertex i and edges sharing
// an endpoint with the segment.
func intersectSegContour(d0, d1 []int32, i, n int32, verts []int32) bool {
	for k := int32(0); k < n; k++ {
		k1 := next(k, n)
		if i == k || i == k1 {
			continue
		}
		p0 := verts[k*4:]
		p1 := verts[k1*4:]
		if vequal(d0, p0) || vequal(d1, p0) || vequal(d0, p1) || vequal(d1, p1) {
			continue
		}
		if intersect(d0, d1, p0, p1) {
			return true
		}
	}
	return false
}

// inConePoint reports whether point pj lies strictly inside the cone
// at the contour's vertex i.
func inConePoint(i, n int32, verts, pj []int32) bool {
	pi := verts[i*4:]
	pi1 := verts[next(i, n)*4:]
	pin1 := verts[prev(i, n)*4:]

	if leftOn(pin1, pi, pi1) {
		return left(pi, pj, pin1) && left(pj, pi, pi1)
	}
	return !(leftOn(pi, pj, pi1) && leftOn(pj, pi, pin1))
}

// mergeRegionHoles splices every hole of the region into its outline,
// left to right: for each hole it searches a diagonal from a hole
// vertex to an outline vertex that crosses neither the outline nor any
// remaining hole, preferring short diagonals.
func mergeRegionHoles(ctx *BuildContext, region *contourRegion) {
	for i := int32(0); i < region.nholes; i++ {
		region.holes[i].minx, region.holes[i].minz, region.holes[i].leftmost = findLeftMostVertex(region.holes[i].contour)
	}
	hs := region.holes[:region.nholes]
	sort.SliceStable(hs, func(a, b int) bool {
		if hs[a].minx == hs[b].minx {
			return hs[a].minz < hs[b].minz
		}
		return hs[a].minx < hs[b].minx
	})

	maxVerts := region.outline.NVerts
	for i := int32(0); i < region.nholes; i++ {
		maxVerts += region.holes[i].contour.NVerts
	}
	diags := make([]potentialDiagonal, maxVerts)

	outline := region.outline

	for i := int32(0); i < region.nholes; i++ {
		hole := region.holes[i].contour

		index := int32(-1)
		bestVertex := region.holes[i].leftmost
		for iter := int32(0); iter < hole.NVerts; iter++ {
			// Candidate diagonals: outline vertices whose cone
			// contains the hole vertex, nearest first.
			var ndiags int32
			corner := hole.Verts[bestVertex*4:]
			for j := int32(0); j < outline.NVerts; j++ {
				if inConePoint(j, outline.NVerts, outline.Verts, corner) {
					dx := outline.Verts[j*4+0] - corner[0]
					dz := outline.Verts[j*4+2] - corner[2]
					diags[ndiags].vert = j
					diags[ndiags].dist = dx*dx + dz*dz
					ndiags++
				}
			}
			ds := diags[:ndiags]
			sort.SliceStable(ds, func(a, b int) bool { return ds[a].dist < ds[b].dist })

			// Keep the first candidate that crosses nothing.
			index = -1
			for j := int32(0); j < ndiags; j++ {
				pt := outline.Verts[diags[j].vert*4:]
				intersects := intersectSegContour(pt, corner, diags[i].vert, outline.NVerts, outline.Verts)
				for k := i; k < region.nholes && !intersects; k++ {
					intersects = intersects || intersectSegContour(pt, corner, -1, region.holes[k].contour.NVerts, region.holes[k].contour.Verts)
				}
				if !intersects {
					index = diags[j].vert
					break
				}
			}
			if index != -1 {
				break
			}
			// Every candidate for this hole vertex crossed something;
			// try the next vertex.
			bestVertex = (bestVertex + 1) % hole.NVerts
		}

		if index == -1 {
			ctx.Warningf("mergeRegionHoles: failed to find merge point for region %d hole", outline.Reg)
			continue
		}
		if !mergeContours(region.outline, hole, index, bestVertex) {
			ctx.Warningf("mergeRegionHoles: failed to merge hole into region %d outline", outline.Reg)
			continue
		}
	}
}

func prev(i, n int32) int32 {
	if i-1 >= 0 {
		return i - 1
	}
	return n - 1
}

func next(i, n int32) int32 {
	if i+1 < n {
		return i + 1
	}
	return 0
}

func area2(a, b, c []int32) int32 {
	return (b[0]-a[0])*(c[2]-a[2]) - (c[0]-a[0])*(b[2]-a[2])
}

func xorb(x, y bool) bool {
	return x != y
}

// left reports whether c is strictly left of the directed line a-b.
func left(a, b, c []int32) bool {
	return area2(a, b, c) < 0
}

func leftOn(a, b, c []int32) bool {
	return area2(a, b, c) <= 0
}

func collinear(a, b, c []int32) bool {
	return area2(a, b, c) == 0
}

// intersectProp reports whether ab and cd share a point interior to
// both; collinear configurations never count as proper.
func intersectProp(a, b, c, d []int32) bool {
	if collinear(a, b, c) || collinear(a, b, d) ||
		collinear(c, d, a) || collinear(c, d, b) {
		return false
	}
	return xorb(left(a, b, c), left(a, b, d)) && xorb(left(c, d, a), left(c, d, b))
}

// between reports whether c lies on the closed segment ab, which
// requires collinearity.
func between(a, b, c []int32) bool {
	if !collinear(a, b, c) {
		return false
	}
	// Check betweenness on x unless ab is vertical, then on z.
	if a[0] != b[0] {
		return (a[0] <= c[0] && c[0] <= b[0]) || (a[0] >= c[0] && c[0] >= b[0])
	}
	return (a[2] <= c[2] && c[2] <= b[2]) || (a[2] >= c[2] && c[2] >= b[2])
}

// intersect reports whether segments ab and cd intersect, properly or
// improperly.
func intersect(a, b, c, d []int32) bool {
	return intersectProp(a, b, c, d) ||
		between(a, b, c) || between(a, b, d) ||
		between(c, d, a) || between(c, d, b)
}

func vequal(a, b []int32) bool {
	return a[0] == b[0] && a[2] == b[2]
}
