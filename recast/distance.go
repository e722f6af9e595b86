package recast

import "github.com/arl/assertgo"

// calculateDistanceField computes, for every span, the chamfer distance to
// the nearest span whose area id differs (i.e. to the nearest region
// boundary), using a two-pass sweep: orthogonal neighbours cost 2, diagonal
// neighbours cost 3.
func calculateDistanceField(chf *CompactHeightfield, src []uint16) uint16 {
	w := chf.Width
	h := chf.Height

	for i := range src {
		src[i] = 0xffff
	}

	// Mark boundary cells.
	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			c := chf.Cells[x+y*w]
			ni := int32(c.Index) + int32(c.Count)
			for i := int32(c.Index); i < ni; i++ {
				s := &chf.Spans[i]
				area := chf.Areas[i]

				nc := int32(0)
				for dir := int32(0); dir < 4; dir++ {
					if GetCon(s, dir) != NotConnected {
						ax := x + GetDirOffsetX(dir)
						ay := y + GetDirOffsetY(dir)
						ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, dir)
						if area == chf.Areas[ai] {
							nc++
						}
					}
				}
				if nc != 4 {
					src[i] = 0
				}
			}
		}
	}

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
					ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, 0)
					as := &chf.Spans[ai]
					if int32(src[ai])+2 < int32(src[i]) {
						src[i] = src[ai] + 2
					}

					// (-1,-1)
					if GetCon(as, 3) != NotConnected {
						aax := ax + GetDirOffsetX(3)
						aay := ay + GetDirOffsetY(3)
						aai := int32(chf.Cells[aax+aay*w].Index) + GetCon(as, 3)
						if int32(src[aai])+3 < int32(src[i]) {
							src[i] = src[aai] + 3
						}
					}
				}
				if GetCon(s, 3) != NotConnected {
					// (0,-1)
					ax := x + GetDirOffsetX(3)
					ay := y + GetDirOffsetY(3)
					ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, 3)
					as := &chf.Spans[ai]
					if int32(src[ai])+2 < int32(src[i]) {
						src[i] = src[ai] + 2
					}

					// (1,-1)
					if GetCon(as, 2) != NotConnected {
						aax := ax + GetDirOffsetX(2)
						aay := ay + GetDirOffsetY(2)
						aai := int32(chf.Cells[aax+aay*w].Index) + GetCon(as, 2)
						if int32(src[aai])+3 < int32(src[i]) {
							src[i] = src[aai] + 3
						}
					}
				}
			}
		}
	}

	// Pass 2
	for y := h - 1; y >= 0; y-- {
		for x := w - 1; x >= 0; x-- {
			c := chf.Cells[x+y*w]
			ni := int32(c.Index) + int32(c.Count)
			for i := int32(c.Index); i < ni; i++ {
				s := &chf.Spans[i]

				if GetCon(s, 2) != NotConnected {
					// (1,0)
					ax := x + GetDirOffsetX(2)
					ay := y + GetDirOffsetY(2)
					ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, 2)
					as := &chf.Spans[ai]
					if int32(src[ai])+2 < int32(src[i]) {
						src[i] = src[ai] + 2
					}

					// (1,1)
					if GetCon(as, 1) != NotConnected {
						aax := ax + GetDirOffsetX(1)
						aay := ay + GetDirOffsetY(1)
						aai := int32(chf.Cells[aax+aay*w].Index) + GetCon(as, 1)
						if int32(src[aai])+3 < int32(src[i]) {
							src[i] = src[aai] + 3
						}
					}
				}
				if GetCon(s, 1) != NotConnected {
					// (0,1)
					ax := x + GetDirOffsetX(1)
					ay := y + GetDirOffsetY(1)
					ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, 1)
					as := &chf.Spans[ai]
					if int32(src[ai])+2 < int32(src[i]) {
						src[i] = src[ai] + 2
					}

					// (-1,1)
					if GetCon(as, 0) != NotConnected {
						aax := ax + GetDirOffsetX(0)
						aay := ay + GetDirOffsetY(0)
						aai := int32(chf.Cells[aax+aay*w].Index) + GetCon(as, 0)
						if int32(src[aai])+3 < int32(src[i]) {
							src[i] = src[aai] + 3
						}
					}
				}
			}
		}
	}

	var maxDist uint16
	for i := int32(0); i < chf.SpanCount; i++ {
		if src[i] > maxDist {
			maxDist = src[i]
		}
	}
	return maxDist
}

// boxBlur smooths the distance field with a single pass of a 9-cell box
// filter, skipping any span whose distance is already at or below thr*2 (it
// is close enough to a boundary that blurring would only distort it).
func boxBlur(chf *CompactHeightfield, thr int32, src, dst []uint16) []uint16 {
	w := chf.Width
	h := chf.Height

	thr *= 2

	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			c := chf.Cells[x+y*w]
			ni := int32(c.Index) + int32(c.Count)
			for i := int32(c.Index); i < ni; i++ {
				s := &chf.Spans[i]
				cd := src[i]
				if int32(cd) <= thr {
					dst[i] = cd
					continue
				}

				d := int32(cd)
				for dir := int32(0); dir < 4; dir++ {
					if GetCon(s, dir) != NotConnected {
						ax := x + GetDirOffsetX(dir)
						ay := y + GetDirOffsetY(dir)
						ai := int32(chf.Cells[ax+ay*w].Index) + GetCon(s, dir)
						d += int32(src[ai])

						as := &chf.Spans[ai]
						dir2 := (dir + 1) & 0x3
						if GetCon(as, dir2) != NotConnected {
							ax2 := ax + GetDirOffsetX(dir2)
							ay2 := ay + GetDirOffsetY(dir2)
							ai2 := int32(chf.Cells[ax2+ay2*w].Index) + GetCon(as, dir2)
							d += int32(src[ai2])
						} else {
							d += int32(cd)
						}
					} else {
						d += int32(cd) * 2
					}
				}
				dst[i] = uint16((d + 5) / 9)
			}
		}
	}
	return dst
}

// BuildDistanceField computes, for every span of chf, the chamfer distance
// to the nearest unwalkable or differently-typed span, storing the result
// in chf.Dist and the maximum distance found in chf.MaxDistance. Watershed
// partitioning (BuildRegions) requires this to have been run first;
// BuildRegionsMonotone does not read the distance field.
func BuildDistanceField(ctx *BuildContext, chf *CompactHeightfield) bool {
	assert.True(ctx != nil, "ctx should not be nil")

	ctx.StartTimer(TimerBuildDistanceField)
	defer ctx.StopTimer(TimerBuildDistanceField)

	src := make([]uint16, chf.SpanCount)
	dst := make([]uint16, chf.SpanCount)

	ctx.StartTimer(TimerBuildDistanceFieldDist)
	maxDist := calculateDistanceField(chf, src)
	chf.MaxDistance = maxDist
	ctx.StopTimer(TimerBuildDistanceFieldDist)

	ctx.StartTimer(TimerBuildDistanceFieldBlur)
	chf.Dist = boxBlur(chf, 1, src, dst)
	ctx.StopTimer(TimerBuildDistanceFieldBlur)

	return true
}
