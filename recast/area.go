package recast

import "github.com/arl/assertgo"

// ErodeWalkableArea unmarks every span whose chamfer distance to the
// nearest boundary or obstruction is less than radius, shrinking the
// walkable surface inward by roughly an agent radius. Typically called
// right after the compact heightfield is built.
func ErodeWalkableArea(ctx *BuildContext, radius int32, chf *CompactHeightfield) bool {
	assert.True(ctx != nil, "ctx should not be nil")

	w := chf.Width
	h := chf.Height

	ctx.StartTimer(TimerErodeArea)
	defer ctx.StopTimer(TimerErodeArea)

	dist := make([]uint8, chf.SpanCount)

	// Init distance.
	for i := range dist {
		dist[i] = 0xff
	}

	// Mark boundary cells.
	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			c := chf.Cells[x+y*w]
			ni := int32(c.Index) + int32(c.Count)
			for i := int32(c.Index); i < ni; i++ {
				if chf.Areas[i] == NullArea {
					dist[i] = 0
				} else {
					s := &chf.Spans[i]
					nc := int32(0)
					for dir := int32(0); dir < 4; dir++ {
						if GetCon(s, dir) != NotConnected {
							nx := x + GetDirOffsetX(dir)
							ny := y + GetDirOffsetY(dir)
							nidx := int32(chf.Cells[nx+ny*w].Index) + GetCon(s, dir)
							if chf.Areas[nidx] != NullArea {
								nc++
							}
						}
					}
					// At least one missing neighbour.
					if nc != 4 {
						dist[i] = 0
					}
				}
			}
		}
	}

	var nd uint8

	// Pass 1
	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			c := chf.Cells[x+y*w]
			ni := int32(c.Index) + int32(c.Count)
			for i := int32(c.Index); i < ni; i++ {
				s := &chf.Spans[i]

				if GetCon(s, 0) != NotConnected {
					// (-1,0)
					ax := x + GetDirOffsetX(0)
					ay := y + GetDirOffsetY(0)
					ai := int32(chf.Cells[ax+ay*w].Index) + int32(GetCon(s, 0))
					as := &chf.Spans[ai]
					nd = uint8(iMin(int32(dist[ai])+2, 255))
					if nd < dist[i] {
						dist[i] = nd
					}

					// (-1,-1)
					if GetCon(as, 3) != NotConnected {
						aax := ax + GetDirOffsetX(3)
						aay := ay + GetDirOffsetY(3)
						aai := int32(chf.Cells[aax+aay*w].Index) + int32(GetCon(as, 3))
						nd = uint8(iMin(int32(dist[aai])+3, 255))
						if nd < dist[i] {
							dist[i] = nd
						}
					}
				}

				if GetCon(s, 3) != NotConnected {
					// (0,-1)
					ax := x + GetDirOffsetX(3)
					ay := y + GetDirOffsetY(3)
					ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, 3)
					as := &chf.Spans[ai]
					nd = uint8(iMin(int32(dist[ai])+2, 255))
					if nd < dist[i] {
						dist[i] = nd
					}

					// (1,-1)
					if GetCon(as, 2) != NotConnected {
						aax := ax + GetDirOffsetX(2)
						aay := ay + GetDirOffsetY(2)
						aai := int32(chf.Cells[aax+aay*w].Index) + GetCon(as, 2)
						nd = uint8(iMin(int32(dist[aai])+3, 255))
						if nd < dist[i] {
							dist[i] = nd
						}
					}
				}
			}
		}
	}

	// Pass 2
	for y := int32(h - 1); y >= 0; y-- {
		for x := int32(w - 1); x >= 0; x-- {
			c := chf.Cells[x+y*w]
			i := int32(c.Index)
			for ni := int32(c.Index) + int32(c.Count); i < ni; i++ {
				s := &chf.Spans[i]

				if GetCon(s, 2) != NotConnected {
					// (1,0)
					ax := x + GetDirOffsetX(2)
					ay := y + GetDirOffsetY(2)
					ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, 2)
					as := &chf.Spans[ai]
					nd = uint8(iMin(int32(dist[ai])+2, 255))
					if nd < dist[i] {
						dist[i] = nd
					}

					// (1,1)
					if GetCon(as, 1) != NotConnected {
						aax := ax + GetDirOffsetX(1)
						aay := ay + GetDirOffsetY(1)
						aai := int32(chf.Cells[aax+aay*w].Index) + GetCon(as, 1)
						nd = uint8(iMin(int32(dist[aai])+3, 255))
						if nd < dist[i] {
							dist[i] = nd
						}
					}
				}
				if GetCon(s, 1) != NotConnected {
					// (0,1)
					ax := x + GetDirOffsetX(1)
					ay := y + GetDirOffsetY(1)
					ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, 1)
					as := &chf.Spans[ai]
					nd = uint8(iMin(int32(dist[ai])+2, 255))
					if nd < dist[i] {
						dist[i] = nd
					}

					// (-1,1)
					if GetCon(as, 0) != NotConnected {
						aax := ax + GetDirOffsetX(0)
						aay := ay + GetDirOffsetY(0)
						aai := int32(chf.Cells[aax+aay*w].Index) + GetCon(as, 0)
						nd = uint8(iMin(int32(dist[aai])+3, 255))
						if nd < dist[i] {
							dist[i] = nd
						}
					}
				}
			}
		}
	}

	thr := uint8(radius * 2)
	for i := int32(0); i < chf.SpanCount; i++ {
		if dist[i] < thr {
			chf.Areas[i] = NullArea
		}
	}

	dist = nil

	return true
}

// MarkBoxArea sets the area id of every walkable span whose cell center
// falls within the given axis-aligned world-space box.
func MarkBoxArea(ctx *BuildContext, bmin, bmax []float32, areaID uint8, chf *CompactHeightfield) {
	assert.True(ctx != nil, "ctx should not be nil")

	ctx.StartTimer(TimerMarkBoxArea)
	defer ctx.StopTimer(TimerMarkBoxArea)

	minx := int32((bmin[0] - chf.BMin[0]) / chf.Cs)
	miny := int32((bmin[1] - chf.BMin[1]) / chf.Ch)
	minz := int32((bmin[2] - chf.BMin[2]) / chf.Cs)
	maxx := int32((bmax[0] - chf.BMin[0]) / chf.Cs)
	maxy := int32((bmax[1] - chf.BMin[1]) / chf.Ch)
	maxz := int32((bmax[2] - chf.BMin[2]) / chf.Cs)

	if maxx < 0 || minx >= chf.Width || maxz < 0 || minz >= chf.Height {
		return
	}

	if minx < 0 {
		minx = 0
	}
	if maxx >= chf.Width {
		maxx = chf.Width - 1
	}
	if minz < 0 {
		minz = 0
	}
	if maxz >= chf.Height {
		maxz = chf.Height - 1
	}

	for z := minz; z <= maxz; z++ {
		for x := minx; x <= maxx; x++ {
			c := chf.Cells[x+z*chf.Width]
			ni := int32(c.Index) + int32(c.Count)
			for i := int32(c.Index); i < ni; i++ {
				s := &chf.Spans[i]
				if int32(s.Y) >= miny && int32(s.Y) <= maxy {
					if chf.Areas[i] != NullArea {
						chf.Areas[i] = areaID
					}
				}
			}
		}
	}
}

// MarkCylinderArea sets the area id of every walkable span whose cell
// center falls within the given world-space cylinder. pos is the center of
// the cylinder's base, r its radius and h its height.
func MarkCylinderArea(ctx *BuildContext, pos []float32, r, h float32, areaID uint8, chf *CompactHeightfield) {
	assert.True(ctx != nil, "ctx should not be nil")

	ctx.StartTimer(TimerMarkCylinderArea)
	defer ctx.StopTimer(TimerMarkCylinderArea)

	var bmin, bmax [3]float32
	bmin[0] = pos[0] - r
	bmin[1] = pos[1]
	bmin[2] = pos[2] - r
	bmax[0] = pos[0] + r
	bmax[1] = pos[1] + h
	bmax[2] = pos[2] + r
	r2 := r * r

	minx := int32((bmin[0] - chf.BMin[0]) / chf.Cs)
	miny := int32((bmin[1] - chf.BMin[1]) / chf.Ch)
	minz := int32((bmin[2] - chf.BMin[2]) / chf.Cs)
	maxx := int32((bmax[0] - chf.BMin[0]) / chf.Cs)
	maxy := int32((bmax[1] - chf.BMin[1]) / chf.Ch)
	maxz := int32((bmax[2] - chf.BMin[2]) / chf.Cs)

	if maxx < 0 || minx >= chf.Width || maxz < 0 || minz >= chf.Height {
		return
	}

	if minx < 0 {
		minx = 0
	}
	if maxx >= chf.Width {
		maxx = chf.Width - 1
	}
	if minz < 0 {
		minz = 0
	}
	if maxz >= chf.Height {
		maxz = chf.Height - 1
	}

	for z := minz; z <= maxz; z++ {
		for x := minx; x <= maxx; x++ {
			c := chf.Cells[x+z*chf.Width]
			ni := int32(c.Index) + int32(c.Count)
			for i := int32(c.Index); i < ni; i++ {
				s := &chf.Spans[i]

				if chf.Areas[i] == NullArea {
					continue
				}

				if int32(s.Y) >= miny && int32(s.Y) <= maxy {
					sx := chf.BMin[0] + (float32(x)+0.5)*chf.Cs
					sz := chf.BMin[2] + (float32(z)+0.5)*chf.Cs
					dx := sx - pos[0]
					dz := sz - pos[2]

					if dx*dx+dz*dz < r2 {
						chf.Areas[i] = areaID
					}
				}
			}
		}
	}
}

// pointInPoly reports whether point (x,z) lies inside the polygon described
// by verts (xz components only, y ignored), using a standard even-odd
// ray-crossing test.
func pointInPoly(verts []float32, nverts int32, x, z float32) bool {
	c := false
	j := nverts - 1
	for i := int32(0); i < nverts; i++ {
		vi := verts[i*3:]
		vj := verts[j*3:]
		if ((vi[2] > z) != (vj[2] > z)) &&
			(x < (vj[0]-vi[0])*(z-vi[2])/(vj[2]-vi[2])+vi[0]) {
			c = !c
		}
		j = i
	}
	return c
}

// MarkConvexPolyArea sets the area id of every walkable span whose cell
// center falls within the given convex polygon (xz projection) and whose
// span floor lies between hmin and hmax.
func MarkConvexPolyArea(ctx *BuildContext, verts []float32, nverts int32,
	hmin, hmax float32, areaID uint8, chf *CompactHeightfield) {
	assert.True(ctx != nil, "ctx should not be nil")

	ctx.StartTimer(TimerMarkConvexPolyArea)
	defer ctx.StopTimer(TimerMarkConvexPolyArea)

	var bmin, bmax [3]float32
	copy(bmin[:], verts[:3])
	copy(bmax[:], verts[:3])
	for i := int32(1); i < nverts; i++ {
		v := verts[i*3:]
		for k := 0; k < 3; k++ {
			if v[k] < bmin[k] {
				bmin[k] = v[k]
			}
			if v[k] > bmax[k] {
				bmax[k] = v[k]
			}
		}
	}
	bmin[1] = hmin
	bmax[1] = hmax

	minx := int32((bmin[0] - chf.BMin[0]) / chf.Cs)
	miny := int32((bmin[1] - chf.BMin[1]) / chf.Ch)
	minz := int32((bmin[2] - chf.BMin[2]) / chf.Cs)
	maxx := int32((bmax[0] - chf.BMin[0]) / chf.Cs)
	maxy := int32((bmax[1] - chf.BMin[1]) / chf.Ch)
	maxz := int32((bmax[2] - chf.BMin[2]) / chf.Cs)

	if maxx < 0 || minx >= chf.Width || maxz < 0 || minz >= chf.Height {
		return
	}

	if minx < 0 {
		minx = 0
	}
	if maxx >= chf.Width {
		maxx = chf.Width - 1
	}
	if minz < 0 {
		minz = 0
	}
	if maxz >= chf.Height {
		maxz = chf.Height - 1
	}

	for z := minz; z <= maxz; z++ {
		for x := minx; x <= maxx; x++ {
			c := chf.Cells[x+z*chf.Width]
			ni := int32(c.Index) + int32(c.Count)
			for i := int32(c.Index); i < ni; i++ {
				s := &chf.Spans[i]

				if chf.Areas[i] == NullArea {
					continue
				}

				if int32(s.Y) >= miny && int32(s.Y) <= maxy {
					sx := chf.BMin[0] + (float32(x)+0.5)*chf.Cs
					sz := chf.BMin[2] + (float32(z)+0.5)*chf.Cs
					if pointInPoly(verts, nverts, sx, sz) {
						chf.Areas[i] = areaID
					}
				}
			}
		}
	}
}
