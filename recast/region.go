package recast

import "github.com/arl/assertgo"

// nullNei marks a sweep span with no usable row-to-row connection.
const nullNei uint16 = 0xffff

// sweepSpan is one run of spans in a monotone partitioning row.
type sweepSpan struct {
	rid uint16 // row-local id
	id  uint16 // final region id
	ns  uint16 // number of samples connecting to nei
	nei uint16 // neighbor region id in the previous row
}

// paintRectRegion assigns regID to every walkable span inside the cell
// rectangle.
func paintRectRegion(minx, maxx, miny, maxy int32, regID uint16, chf *CompactHeightfield, srcReg []uint16) {
	w := chf.Width
	for y := miny; y < maxy; y++ {
		for x := minx; x < maxx; x++ {
			c := &chf.Cells[x+y*w]
			for i, ni := int32(c.Index), int32(c.Index)+int32(c.Count); i < ni; i++ {
				if chf.Areas[i] != NullArea {
					srcReg[i] = regID
				}
			}
		}
	}
}

// BuildRegionsMonotone partitions the walkable surface with a monotone
// sweep along z: each row's span runs inherit the previous row's region
// when exactly one continuous connection exists, otherwise they open a
// new region. Fast, but tends to produce long thin regions.
//
// Regions smaller than minRegionArea are discarded; regions smaller
// than mergeRegionArea are merged into neighbors where possible. The
// result lands in CompactSpan.Reg and chf.MaxRegions.
func BuildRegionsMonotone(ctx *BuildContext, chf *CompactHeightfield,
	borderSize, minRegionArea, mergeRegionArea int32) bool {
	ctx.StartTimer(TimerBuildRegions)
	defer ctx.StopTimer(TimerBuildRegions)

	w := chf.Width
	h := chf.Height
	id := uint16(1)

	srcReg := make([]uint16, chf.SpanCount)
	sweeps := make([]sweepSpan, iMax(chf.Width, chf.Height))

	if borderSize > 0 {
		// Clamp the border to the grid and paint the border regions.
		bw := iMin(w, borderSize)
		bh := iMin(h, borderSize)
		paintRectRegion(0, bw, 0, h, id|BorderReg, chf, srcReg)
		id++
		paintRectRegion(w-bw, w, 0, h, id|BorderReg, chf, srcReg)
		id++
		paintRectRegion(0, w, 0, bh, id|BorderReg, chf, srcReg)
		id++
		paintRectRegion(0, w, h-bh, h, id|BorderReg, chf, srcReg)
		id++

		chf.BorderSize = borderSize
	}

	for y := borderSize; y < h-borderSize; y++ {
		// samples[n] counts the row's connections into previous-row
		// region n.
		samples := make([]int32, id+1)
		rid := uint16(1)

		for x := borderSize; x < w-borderSize; x++ {
			c := &chf.Cells[x+y*w]
			for i, ni := int32(c.Index), int32(c.Index)+int32(c.Count); i < ni; i++ {
				s := &chf.Spans[i]
				if chf.Areas[i] == NullArea {
					continue
				}

				// Continue the run from the -x neighbor when it is in
				// this row's sweep.
				previd := uint16(0)
				if GetCon(s, 0) != NotConnected {
					ax := x + GetDirOffsetX(0)
					ay := y + GetDirOffsetY(0)
					ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, 0)
					if srcReg[ai]&BorderReg == 0 && chf.Areas[i] == chf.Areas[ai] {
						previd = srcReg[ai]
					}
				}

				if previd == 0 {
					previd = rid
					rid++
					if int(previd) >= len(sweeps) {
						sweeps = append(sweeps, make([]sweepSpan, len(sweeps))...)
					}
					sweeps[previd].rid = previd
					sweeps[previd].ns = 0
					sweeps[previd].nei = 0
				}

				// Record the connection to the previous row (-z).
				if GetCon(s, 3) != NotConnected {
					ax := x + GetDirOffsetX(3)
					ay := y + GetDirOffsetY(3)
					ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, 3)
					if srcReg[ai] != 0 && srcReg[ai]&BorderReg == 0 && chf.Areas[i] == chf.Areas[ai] {
						nr := srcReg[ai]
						if sweeps[previd].nei == 0 || sweeps[previd].nei == nr {
							sweeps[previd].nei = nr
							sweeps[previd].ns++
							samples[nr]++
						} else {
							// More than one previous-row region: no
							// reuse.
							sweeps[previd].nei = nullNei
						}
					}
				}

				srcReg[i] = previd
			}
		}

		// A run reuses its previous-row region only when that region
		// connects to nothing else in this row.
		for i := uint16(1); i < rid; i++ {
			if sweeps[i].nei != nullNei && sweeps[i].nei != 0 &&
				samples[sweeps[i].nei] == int32(sweeps[i].ns) {
				sweeps[i].id = sweeps[i].nei
			} else {
				sweeps[i].id = id
				id++
			}
		}

		// Rewrite the row-local ids to final ids.
		for x := borderSize; x < w-borderSize; x++ {
			c := &chf.Cells[x+y*w]
			for i, ni := int32(c.Index), int32(c.Index)+int32(c.Count); i < ni; i++ {
				if srcReg[i] > 0 && srcReg[i] < rid {
					srcReg[i] = sweeps[srcReg[i]].id
				}
			}
		}
	}

	ctx.StartTimer(TimerBuildRegionsFilter)
	chf.MaxRegions = id
	// Monotone partitioning produces no overlapping regions.
	if _, ok := mergeAndFilterRegions(ctx, minRegionArea, mergeRegionArea, &chf.MaxRegions, chf, srcReg); !ok {
		return false
	}
	ctx.StopTimer(TimerBuildRegionsFilter)

	for i := int32(0); i < chf.SpanCount; i++ {
		chf.Spans[i].Reg = srcReg[i]
	}
	return true
}

// BuildRegions partitions the walkable surface with watershed
// partitioning over the distance field: the water level drops two
// units at a time, existing regions expand into newly uncovered spans,
// and spans no expansion reaches seed new regions by flood fill.
// Slowest of the partitioners, best tessellation.
//
// The distance field must have been built with BuildDistanceField
// first. Results land in CompactSpan.Reg and chf.MaxRegions.
func BuildRegions(ctx *BuildContext, chf *CompactHeightfield,
	borderSize, minRegionArea, mergeRegionArea int32) bool {

	assert.True(ctx != nil, "ctx should not be nil")

	ctx.StartTimer(TimerBuildRegions)
	defer ctx.StopTimer(TimerBuildRegions)

	w := chf.Width
	h := chf.Height

	ctx.StartTimer(TimerBuildRegionsWatershed)

	// Spans are stratified into 8 bucket stacks by distance, two
	// distance units per bucket, so one sort feeds 8 levels of the
	// expand/flood loop.
	const (
		logNbStacks = 3
		nbStacks    = 1 << logNbStacks
	)
	var lvlStacks [nbStacks][]int32
	for i := range lvlStacks {
		lvlStacks[i] = make([]int32, 0, 1024)
	}
	stack := make([]int32, 0, 2048)

	buf := make([]uint16, chf.SpanCount*4)
	srcReg := buf[:chf.SpanCount]
	srcDist := buf[chf.SpanCount : chf.SpanCount*2]
	dstReg := buf[chf.SpanCount*2 : chf.SpanCount*3]
	dstDist := buf[chf.SpanCount*3:]

	regionID := uint16(1)
	level := (chf.MaxDistance + 1) &^ 1

	// expandIters bounds how far regions overflow into the next level
	// before flooding; larger values simplify regions.
	const expandIters = 8

	if borderSize > 0 {
		bw := iMin(w, borderSize)
		bh := iMin(h, borderSize)
		paintRectRegion(0, bw, 0, h, regionID|BorderReg, chf, srcReg)
		regionID++
		paintRectRegion(w-bw, w, 0, h, regionID|BorderReg, chf, srcReg)
		regionID++
		paintRectRegion(0, w, 0, bh, regionID|BorderReg, chf, srcReg)
		regionID++
		paintRectRegion(0, w, h-bh, h, regionID|BorderReg, chf, srcReg)
		regionID++

		chf.BorderSize = borderSize
	}

	sID := -1
	for level > 0 {
		if level >= 2 {
			level -= 2
		} else {
			level = 0
		}
		sID = (sID + 1) & (nbStacks - 1)

		if sID == 0 {
			sortCellsByLevel(level, chf, srcReg, nbStacks, lvlStacks[:], 1)
		} else {
			// Carry unassigned cells over from the previous bucket.
			lvlStacks[sID] = appendStacks(lvlStacks[sID-1], lvlStacks[sID], srcReg)
		}

		ctx.StartTimer(TimerBuildRegionsExpand)
		srcReg, srcDist, dstReg, dstDist = expandRegions(
			expandIters, level, chf, srcReg, srcDist, dstReg, dstDist, &lvlStacks[sID], false)
		ctx.StopTimer(TimerBuildRegionsExpand)

		ctx.StartTimer(TimerBuildRegionsFlood)
		// Seed a region on every cell at this level that expansion
		// didn't reach.
		for j := 0; j < len(lvlStacks[sID]); j += 3 {
			x := lvlStacks[sID][j]
			y := lvlStacks[sID][j+1]
			i := lvlStacks[sID][j+2]
			if i >= 0 && srcReg[i] == 0 {
				if floodRegion(x, y, i, level, regionID, chf, srcReg, srcDist, &stack) {
					if regionID == 0xFFFF {
						ctx.Errorf("BuildRegions: region id overflow")
						return false
					}
					regionID++
				}
			}
		}
		ctx.StopTimer(TimerBuildRegionsFlood)
	}

	// Absorb the stragglers.
	srcReg, _, _, _ = expandRegions(
		expandIters*8, 0, chf, srcReg, srcDist, dstReg, dstDist, &stack, true)

	ctx.StopTimer(TimerBuildRegionsWatershed)

	ctx.StartTimer(TimerBuildRegionsFilter)
	chf.MaxRegions = regionID
	overlaps, ok := mergeAndFilterRegions(ctx, minRegionArea, mergeRegionArea, &chf.MaxRegions, chf, srcReg)
	if !ok {
		return false
	}
	if len(overlaps) > 0 {
		ctx.Errorf("BuildRegions: %d overlapping regions", len(overlaps))
	}
	ctx.StopTimer(TimerBuildRegionsFilter)

	for i := int32(0); i < chf.SpanCount; i++ {
		chf.Spans[i].Reg = srcReg[i]
	}
	return true
}

// floodRegion BFS-fills region r from span i at the given level. The
// fill is abandoned around cells that touch another region through a
// 4- or 8-neighbor, so two basins never glue together. Returns whether
// any span kept the new id.
func floodRegion(x, y, i int32,
	level, r uint16,
	chf *CompactHeightfield,
	srcReg, srcDist []uint16,
	stack *[]int32) bool {
	w := chf.Width
	area := chf.Areas[i]

	*stack = (*stack)[:0]
	*stack = append(*stack, x, y, i)
	srcReg[i] = r
	srcDist[i] = 0

	var lev uint16
	if level >= 2 {
		lev = level - 2
	}
	var count int32

	for len(*stack) > 0 {
		n := len(*stack)
		ci := (*stack)[n-1]
		cy := (*stack)[n-2]
		cx := (*stack)[n-3]
		*stack = (*stack)[:n-3]

		cs := &chf.Spans[ci]

		// Abandon the cell if any (8-connected) neighbor already has
		// another region.
		var ar uint16
		for dir := int32(0); dir < 4; dir++ {
			if GetCon(cs, dir) == NotConnected {
				continue
			}
			ax := cx + GetDirOffsetX(dir)
			ay := cy + GetDirOffsetY(dir)
			ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(cs, dir)
			if chf.Areas[ai] != area {
				continue
			}
			nr := srcReg[ai]
			if nr&BorderReg != 0 {
				// Borders don't count.
				continue
			}
			if nr != 0 && nr != r {
				ar = nr
				break
			}

			as := &chf.Spans[ai]
			dir2 := (dir + 1) & 0x3
			if GetCon(as, dir2) != NotConnected {
				ax2 := ax + GetDirOffsetX(dir2)
				ay2 := ay + GetDirOffsetY(dir2)
				ai2 := int32(chf.Cells[ax2+ay2*w].Index) + GetCon(as, dir2)
				if chf.Areas[ai2] != area {
					continue
				}
				nr2 := srcReg[ai2]
				if nr2 != 0 && nr2 != r {
					ar = nr2
					break
				}
			}
		}
		if ar != 0 {
			srcReg[ci] = 0
			continue
		}
		count++

		for dir := int32(0); dir < 4; dir++ {
			if GetCon(cs, dir) == NotConnected {
				continue
			}
			ax := cx + GetDirOffsetX(dir)
			ay := cy + GetDirOffsetY(dir)
			ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(cs, dir)
			if chf.Areas[ai] != area {
				continue
			}
			if chf.Dist[ai] >= lev && srcReg[ai] == 0 {
				srcReg[ai] = r
				srcDist[ai] = 0
				*stack = append(*stack, ax, ay, ai)
			}
		}
	}

	return count > 0
}

// expandRegions grows existing regions into the unassigned spans of
// stack (or, with fillStack, of the whole field at the given level):
// each unassigned span inherits the region of the 4-neighbor with the
// smallest recorded distance plus the chamfer step. Double-buffered;
// the slices holding the current state are returned.
func expandRegions(maxIter int, level uint16,
	chf *CompactHeightfield,
	srcReg, srcDist, dstReg, dstDist []uint16,
	stack *[]int32, fillStack bool) ([]uint16, []uint16, []uint16, []uint16) {

	w := chf.Width
	h := chf.Height

	if fillStack {
		// Collect every unassigned walkable span at this level.
		*stack = (*stack)[:0]
		for y := int32(0); y < h; y++ {
			for x := int32(0); x < w; x++ {
				c := &chf.Cells[x+y*w]
				for i, ni := int32(c.Index), int32(c.Index)+int32(c.Count); i < ni; i++ {
					if chf.Dist[i] >= level && srcReg[i] == 0 && chf.Areas[i] != NullArea {
						*stack = append(*stack, x, y, i)
					}
				}
			}
		}
	} else {
		// Mark the stack entries that already got a region.
		for j := 0; j < len(*stack); j += 3 {
			i := (*stack)[j+2]
			if srcReg[i] != 0 {
				(*stack)[j+2] = -1
			}
		}
	}

	var iter int
	for len(*stack) > 0 {
		failed := 0

		copy(dstReg, srcReg[:chf.SpanCount])
		copy(dstDist, srcDist[:chf.SpanCount])

		for j := 0; j < len(*stack); j += 3 {
			x := (*stack)[j+0]
			y := (*stack)[j+1]
			i := (*stack)[j+2]
			if i < 0 {
				failed++
				continue
			}

			r := srcReg[i]
			d2 := int32(0xffff)
			area := chf.Areas[i]
			s := &chf.Spans[i]
			for dir := int32(0); dir < 4; dir++ {
				if GetCon(s, dir) == NotConnected {
					continue
				}
				ax := x + GetDirOffsetX(dir)
				ay := y + GetDirOffsetY(dir)
				ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, dir)
				if chf.Areas[ai] != area {
					continue
				}
				if srcReg[ai] > 0 && srcReg[ai]&BorderReg == 0 {
					if int32(srcDist[ai]+2) < d2 {
						r = srcReg[ai]
						d2 = int32(srcDist[ai] + 2)
					}
				}
			}
			if r != 0 {
				(*stack)[j+2] = -1 // done
				dstReg[i] = r
				dstDist[i] = uint16(d2)
			} else {
				failed++
			}
		}

		srcReg, dstReg = dstReg, srcReg
		srcDist, dstDist = dstDist, srcDist

		if failed*3 == len(*stack) {
			break
		}
		if level > 0 {
			iter++
			if iter >= maxIter {
				break
			}
		}
	}

	return srcReg, srcDist, dstReg, dstDist
}

// sortCellsByLevel distributes every unassigned walkable span into the
// bucket stacks by distance: bucket 0 gets the spans at startLevel and
// deeper, each next bucket the spans one stride (two distance units)
// shallower.
func sortCellsByLevel(startLevel uint16,
	chf *CompactHeightfield,
	srcReg []uint16,
	nbStacks uint32, stacks [][]int32,
	loglevelsPerStack uint16) {
	w := chf.Width
	h := chf.Height
	startLevel >>= loglevelsPerStack

	for j := range stacks {
		stacks[j] = stacks[j][:0]
	}

	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i, ni := int32(c.Index), int32(c.Index)+int32(c.Count); i < ni; i++ {
				if chf.Areas[i] == NullArea || srcReg[i] != 0 {
					continue
				}

				level := chf.Dist[i] >> loglevelsPerStack
				sID := int32(startLevel) - int32(level)
				if sID >= int32(nbStacks) {
					continue
				}
				if sID < 0 {
					sID = 0
				}
				stacks[sID] = append(stacks[sID], x, y, i)
			}
		}
	}
}

// appendStacks carries the still-unassigned cells of srcStack over to
// dstStack.
func appendStacks(srcStack, dstStack []int32, srcReg []uint16) []int32 {
	for j := 0; j < len(srcStack); j += 3 {
		i := srcStack[j+2]
		if i < 0 || srcReg[i] != 0 {
			continue
		}
		dstStack = append(dstStack, srcStack[j:j+3]...)
	}
	return dstStack
}

// region accumulates the post-partitioning bookkeeping of one region:
// its size, the region ids met along its contour, and the regions
// overlapping it vertically.
type region struct {
	spanCount        int32
	id               uint16
	areaType         uint8
	remap, visited   bool
	overlap          bool
	connectsToBorder bool
	connections      []int32
	floors           []int32
}

func (reg *region) removeAdjacentNeighbours() {
	for i := 0; i < len(reg.connections) && len(reg.connections) > 1; {
		ni := (i + 1) % len(reg.connections)
		if reg.connections[i] == reg.connections[ni] {
			reg.connections = append(reg.connections[:i], reg.connections[i+1:]...)
		} else {
			i++
		}
	}
}

func (reg *region) replaceNeighbour(oldID, newID uint16) {
	var neiChanged bool
	for i := range reg.connections {
		if reg.connections[i] == int32(oldID) {
			reg.connections[i] = int32(newID)
			neiChanged = true
		}
	}
	for i := range reg.floors {
		if reg.floors[i] == int32(oldID) {
			reg.floors[i] = int32(newID)
		}
	}
	if neiChanged {
		reg.removeAdjacentNeighbours()
	}
}

// canMergeWithRegion requires the same area, exactly one shared
// contour run, and no vertical overlap.
func (reg *region) canMergeWithRegion(other *region) bool {
	if reg.areaType != other.areaType {
		return false
	}
	var n int
	for i := range reg.connections {
		if reg.connections[i] == int32(other.id) {
			n++
		}
	}
	if n > 1 {
		return false
	}
	for i := range reg.floors {
		if reg.floors[i] == int32(other.id) {
			return false
		}
	}
	return true
}

func (reg *region) addUniqueFloorRegion(n int32) {
	for _, f := range reg.floors {
		if f == n {
			return
		}
	}
	reg.floors = append(reg.floors, n)
}

func (reg *region) isConnectedToBorder() bool {
	// A null neighbor on the contour means the region touches the
	// field edge.
	for _, conn := range reg.connections {
		if conn == 0 {
			return true
		}
	}
	return false
}

// mergeRegionInto splices reg's contour neighborhood into target
// across their shared connection and moves reg's spans over.
func mergeRegionInto(target, reg *region) bool {
	aid := target.id
	bid := reg.id

	acon := make([]int32, len(target.connections))
	copy(acon, target.connections)
	bcon := reg.connections

	// Splice points on both contours.
	insa := -1
	for i := range acon {
		if acon[i] == int32(bid) {
			insa = i
			break
		}
	}
	if insa == -1 {
		return false
	}
	insb := -1
	for i := range bcon {
		if bcon[i] == int32(aid) {
			insb = i
			break
		}
	}
	if insb == -1 {
		return false
	}

	target.connections = target.connections[:0]
	for i, ni := 0, len(acon); i < ni-1; i++ {
		target.connections = append(target.connections, acon[(insa+1+i)%ni])
	}
	for i, ni := 0, len(bcon); i < ni-1; i++ {
		target.connections = append(target.connections, bcon[(insb+1+i)%ni])
	}
	target.removeAdjacentNeighbours()

	for _, f := range reg.floors {
		target.addUniqueFloorRegion(f)
	}
	target.spanCount += reg.spanCount
	reg.spanCount = 0
	reg.connections = nil
	return true
}

// isSolidEdge reports whether span i's edge in direction dir faces a
// different region (or the void).
func isSolidEdge(chf *CompactHeightfield, srcReg []uint16, x, y, i, dir int32) bool {
	s := &chf.Spans[i]
	var r uint16
	if GetCon(s, dir) != NotConnected {
		ax := x + GetDirOffsetX(dir)
		ay := y + GetDirOffsetY(dir)
		ai := int32(chf.Cells[ax+ay*chf.Width].Index) + GetCon(s, dir)
		r = srcReg[ai]
	}
	return r != srcReg[i]
}

// walkRegionContour walks span i's region boundary and records the
// sequence of neighbor region ids met along it, deduplicated.
func walkRegionContour(x, y, i, dir int32,
	chf *CompactHeightfield,
	srcReg []uint16,
	cont *[]int32) {
	startDir := dir
	starti := i

	ss := &chf.Spans[i]
	var curReg uint16
	if GetCon(ss, dir) != NotConnected {
		ax := x + GetDirOffsetX(dir)
		ay := y + GetDirOffsetY(dir)
		ai := int32(chf.Cells[ax+ay*chf.Width].Index) + GetCon(ss, dir)
		curReg = srcReg[ai]
	}
	*cont = append(*cont, int32(curReg))

	for iter := int32(1); iter < 39999; iter++ {
		s := &chf.Spans[i]

		if isSolidEdge(chf, srcReg, x, y, i, dir) {
			var r uint16
			if GetCon(s, dir) != NotConnected {
				ax := x + GetDirOffsetX(dir)
				ay := y + GetDirOffsetY(dir)
				ai := int32(chf.Cells[ax+ay*chf.Width].Index) + GetCon(s, dir)
				r = srcReg[ai]
			}
			if r != curReg {
				curReg = r
				*cont = append(*cont, int32(curReg))
			}
			dir = (dir + 1) & 0x3 // rotate CW
		} else {
			ni := int32(-1)
			nx := x + GetDirOffsetX(dir)
			ny := y + GetDirOffsetY(dir)
			if GetCon(s, dir) != NotConnected {
				ni = int32(chf.Cells[nx+ny*chf.Width].Index) + GetCon(s, dir)
			}
			if ni == -1 {
				// Should not happen on a consistent field.
				return
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

	// Drop adjacent duplicates.
	if len(*cont) > 1 {
		for j := 0; j < len(*cont); {
			nj := (j + 1) % len(*cont)
			if (*cont)[j] == (*cont)[nj] {
				*cont = append((*cont)[:j], (*cont)[j+1:]...)
			} else {
				j++
			}
		}
	}
}

// mergeAndFilterRegions post-processes a fresh partitioning: regions
// (or connected groups of regions) smaller than minRegionArea that
// don't touch the border are dissolved; regions smaller than
// mergeRegionSize, or not reaching the border, merge into their
// smallest mergeable neighbor; the surviving ids are compressed to a
// dense range. Returns the ids of vertically overlapping regions.
func mergeAndFilterRegions(ctx *BuildContext,
	minRegionArea, mergeRegionSize int32,
	maxRegionID *uint16,
	chf *CompactHeightfield,
	srcReg []uint16) (overlaps []int32, ok bool) {

	w := chf.Width
	h := chf.Height

	nreg := *maxRegionID + 1
	regions := make([]*region, nreg)
	for ridx := range regions {
		regions[ridx] = &region{id: uint16(ridx)}
	}

	// Count spans, collect floors, and walk each region's contour for
	// its neighbor list.
	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i, ni := int32(c.Index), int32(c.Index)+int32(c.Count); i < ni; i++ {
				r := srcReg[i]
				if r == 0 || r >= nreg {
					continue
				}

				reg := regions[r]
				reg.spanCount++

				// Regions stacked in the same column are floors of
				// each other.
				for j := int32(c.Index); j < ni; j++ {
					if i == j {
						continue
					}
					floorID := srcReg[j]
					if floorID == 0 || floorID >= nreg {
						continue
					}
					if floorID == r {
						reg.overlap = true
					}
					reg.addUniqueFloorRegion(int32(floorID))
				}

				// One contour walk per region.
				if len(reg.connections) > 0 {
					continue
				}
				reg.areaType = chf.Areas[i]

				ndir := int32(-1)
				for dir := int32(0); dir < 4; dir++ {
					if isSolidEdge(chf, srcReg, x, y, i, dir) {
						ndir = dir
						break
					}
				}
				if ndir != -1 {
					walkRegionContour(x, y, i, ndir, chf, srcReg, &reg.connections)
				}
			}
		}
	}

	// Dissolve connected groups of regions that are too small, unless
	// they touch the border (their true size is unknowable there).
	stack := make([]int32, 0, 32)
	trace := make([]int32, 0, 32)
	for i := uint16(0); i < nreg; i++ {
		reg := regions[i]
		if reg.id == 0 || reg.id&BorderReg != 0 {
			continue
		}
		if reg.spanCount == 0 || reg.visited {
			continue
		}

		connectsToBorder := false
		spanCount := int32(0)
		stack = stack[:0]
		trace = trace[:0]

		reg.visited = true
		stack = append(stack, int32(i))

		for len(stack) > 0 {
			ri := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			creg := regions[ri]
			spanCount += creg.spanCount
			trace = append(trace, ri)

			for _, conn := range creg.connections {
				if conn&int32(BorderReg) != 0 {
					connectsToBorder = true
					continue
				}
				neireg := regions[conn]
				if neireg.visited {
					continue
				}
				if neireg.id == 0 || neireg.id&BorderReg != 0 {
					continue
				}
				stack = append(stack, int32(neireg.id))
				neireg.visited = true
			}
		}

		if spanCount < minRegionArea && !connectsToBorder {
			for _, t := range trace {
				regions[t].spanCount = 0
				regions[t].id = 0
			}
		}
	}

	// Merge small or border-less regions into their smallest mergeable
	// neighbor, repeating until stable.
	for {
		mergeCount := 0
		for i := uint16(0); i < nreg; i++ {
			reg := regions[i]
			if reg.id == 0 || reg.id&BorderReg != 0 {
				continue
			}
			if reg.overlap || reg.spanCount == 0 {
				continue
			}
			if reg.spanCount > mergeRegionSize && reg.isConnectedToBorder() {
				continue
			}

			smallest := int32(0xfffffff)
			mergeID := reg.id
			for _, conn := range reg.connections {
				if conn&int32(BorderReg) != 0 {
					continue
				}
				mreg := regions[conn]
				if mreg.id == 0 || mreg.id&BorderReg != 0 || mreg.overlap {
					continue
				}
				if mreg.spanCount < smallest &&
					reg.canMergeWithRegion(mreg) &&
					mreg.canMergeWithRegion(reg) {
					smallest = mreg.spanCount
					mergeID = mreg.id
				}
			}
			if mergeID == reg.id {
				continue
			}

			oldID := reg.id
			target := regions[mergeID]
			if mergeRegionInto(target, reg) {
				// Redirect every region referring to the merged one.
				for j := uint16(0); j < nreg; j++ {
					if regions[j].id == 0 || regions[j].id&BorderReg != 0 {
						continue
					}
					if regions[j].id == oldID {
						regions[j].id = mergeID
					}
					regions[j].replaceNeighbour(oldID, mergeID)
				}
				mergeCount++
			}
		}
		if mergeCount == 0 {
			break
		}
	}

	// Compress the surviving ids into a dense range.
	for i := uint16(0); i < nreg; i++ {
		regions[i].remap = regions[i].id != 0 && regions[i].id&BorderReg == 0
	}
	var regIDGen uint16
	for i := uint16(0); i < nreg; i++ {
		if !regions[i].remap {
			continue
		}
		oldID := regions[i].id
		regIDGen++
		for j := i; j < nreg; j++ {
			if regions[j].id == oldID {
				regions[j].id = regIDGen
				regions[j].remap = false
			}
		}
	}
	*maxRegionID = regIDGen

	for i := int32(0); i < chf.SpanCount; i++ {
		if srcReg[i]&BorderReg == 0 {
			srcReg[i] = regions[srcReg[i]].id
		}
	}

	for i := uint16(0); i < nreg; i++ {
		if regions[i].overlap {
			overlaps = append(overlaps, int32(regions[i].id))
		}
	}
	return overlaps, true
}
