package recast

import (
	"github.com/arl/assertgo"
	"github.com/arl/gogeo/f32/d3"
	"github.com/arl/math32"
)

// RasterizeTriangle voxelizes a single triangle into solid, flagging the
// resulting spans with area. Triangles that fall entirely outside solid's
// bounds add nothing and still report success.
func RasterizeTriangle(ctx *BuildContext, v0, v1, v2 d3.Vec3,
	area uint8, solid *Heightfield,
	flagMergeThr int32) bool {
	assert.True(ctx != nil, "ctx should not be nil")

	ctx.StartTimer(TimerRasterizeTriangles)
	defer ctx.StopTimer(TimerRasterizeTriangles)

	invCellSize := 1.0 / solid.Cs
	invCellHeight := 1.0 / solid.Ch
	if !rasterizeTriangleSpans(v0, v1, v2, area, solid, solid.BMin[:], solid.BMax[:], solid.Cs, invCellSize, invCellHeight, flagMergeThr) {
		ctx.Errorf("RasterizeTriangle: Out of memory.")
		return false
	}

	return true
}

// RasterizeTriangles voxelizes an indexed triangle mesh (verts/tris, nt
// triangles, one area id per triangle in areas) into solid. Triangles are
// processed independently; one running out of span-pool memory aborts the
// whole call.
func RasterizeTriangles(ctx *BuildContext, verts []float32, nv int32,
	tris []int32, areas []uint8, nt int32,
	solid *Heightfield, flagMergeThr int32) bool {

	assert.True(ctx != nil, "ctx should not be nil")

	ctx.StartTimer(TimerRasterizeTriangles)
	defer ctx.StopTimer(TimerRasterizeTriangles)

	invCellSize := 1.0 / solid.Cs
	invCellHeight := 1.0 / solid.Ch
	for i := int32(0); i < nt; i++ {
		v0 := verts[tris[i*3+0]*3:]
		v1 := verts[tris[i*3+1]*3:]
		v2 := verts[tris[i*3+2]*3:]
		if !rasterizeTriangleSpans(v0, v1, v2, areas[i], solid, solid.BMin[:], solid.BMax[:], solid.Cs, invCellSize, invCellHeight, flagMergeThr) {
			ctx.Errorf("RasterizeTriangles: Out of memory.")
			return false
		}
	}

	return true
}

// RasterizeTriangleSoup voxelizes a flat (ax,ay,az,bx,by,bz,cx,cy,cz) * nt
// triangle soup into solid, without an index buffer. Equivalent to
// RasterizeTriangles for callers that already have a deindexed vertex
// stream.
func RasterizeTriangleSoup(ctx *BuildContext, verts []float32, areas []uint8, nt int32,
	solid *Heightfield, flagMergeThr int32) bool {

	assert.True(ctx != nil, "ctx should not be nil")

	ctx.StartTimer(TimerRasterizeTriangles)
	defer ctx.StopTimer(TimerRasterizeTriangles)

	invCellSize := float32(1.0 / solid.Cs)
	invCellHeight := float32(1.0 / solid.Ch)
	for i := int32(0); i < nt; i++ {
		v0 := verts[(i*3+0)*3:]
		v1 := verts[(i*3+1)*3:]
		v2 := verts[(i*3+2)*3:]
		if !rasterizeTriangleSpans(v0, v1, v2, areas[i], solid, solid.BMin[:], solid.BMax[:], solid.Cs, invCellSize, invCellHeight, flagMergeThr) {
			ctx.Errorf("RasterizeTriangleSoup: Out of memory.")
			return false
		}
	}

	return true
}

// rasterizeTriangleSpans clips a single triangle to the heightfield's z and
// x grid lines row by row (Sutherland-Hodgman style, via dividePoly), then
// for each cell slab it touches, derives a [smin,smax] voxel span and merges
// it into that column with addSpan.
func rasterizeTriangleSpans(v0, v1, v2 []float32,
	area uint8, hf *Heightfield,
	bmin, bmax []float32,
	cs, invCellSize, invCellHeight float32,
	flagMergeThr int32) bool {

	w := hf.Width
	h := hf.Height
	var triMin, triMax [3]float32
	fieldHeight := bmax[1] - bmin[1]

	copy(triMin[:], v0)
	copy(triMax[:], v0)
	d3.Vec3Min(triMin[:], v1)
	d3.Vec3Min(triMin[:], v2)
	d3.Vec3Max(triMax[:], v1)
	d3.Vec3Max(triMax[:], v2)

	// Triangle doesn't touch the heightfield's AABB at all: nothing to add.
	if !overlapBounds(bmin, bmax, triMin[:], triMax[:]) {
		return true
	}

	// Row span of the triangle on the grid's z-axis.
	row0 := int32((triMin[2] - bmin[2]) * invCellSize)
	row1 := int32((triMax[2] - bmin[2]) * invCellSize)
	row0 = int32Clamp(row0, 0, h-1)
	row1 = int32Clamp(row1, 0, h-1)

	// Working buffers for the row/column clip: at most 7 vertices survive
	// a single clipping plane given a triangle input.
	var buf [7 * 3 * 4]float32

	in := buf[:]
	inrow := buf[7*3:]
	p1 := inrow[7*3:]
	p2 := p1[7*3:]

	copy(in, v0)
	copy(in[3:6], v1)
	copy(in[6:9], v2)

	var nvrow, nvIn int32
	nvIn = 3

	for row := row0; row <= row1; row++ {
		// Clip to this row's far edge; the leftover polygon (still in
		// `in`) carries forward to the next row.
		rowZ := bmin[2] + float32(row)*cs
		dividePoly(in, nvIn, inrow, &nvrow, p1, &nvIn, rowZ+cs, 2)
		in, p1 = p1, in
		if nvrow < 3 {
			continue
		}

		minX, maxX := inrow[0], inrow[0]
		for i := int32(1); i < nvrow; i++ {
			if minX > inrow[i*3] {
				minX = inrow[i*3]
			}
			if maxX < inrow[i*3] {
				maxX = inrow[i*3]
			}
		}
		col0 := int32((minX - bmin[0]) * invCellSize)
		col1 := int32((maxX - bmin[0]) * invCellSize)
		col0 = int32Clamp(col0, 0, w-1)
		col1 = int32Clamp(col1, 0, w-1)

		var nv, nv2 int32
		nv2 = nvrow

		for col := col0; col <= col1; col++ {
			// Clip the row polygon to this column's far edge.
			colX := bmin[0] + float32(col)*cs
			dividePoly(inrow, nv2, p1, &nv, p2, &nv2, colX+cs, 0)
			inrow, p2 = p2, inrow
			if nv < 3 {
				continue
			}

			ymin, ymax := p1[1], p1[1]
			for i := int32(1); i < nv; i++ {
				ymin = math32.Min(ymin, p1[i*3+1])
				ymax = math32.Max(ymax, p1[i*3+1])
			}
			ymin -= bmin[1]
			ymax -= bmin[1]

			// Slab falls entirely above or below the heightfield: skip.
			if ymax < 0.0 || ymin > fieldHeight {
				continue
			}
			if ymin < 0.0 {
				ymin = 0
			}
			if ymax > fieldHeight {
				ymax = fieldHeight
			}

			smin := uint16(int32Clamp(int32(math32.Floor(ymin*invCellHeight)), 0, SpanMaxHeight))
			smax := uint16(int32Clamp(int32(math32.Ceil(ymax*invCellHeight)), int32(smin+1), SpanMaxHeight))

			if !hf.addSpan(col, row, smin, smax, area, flagMergeThr) {
				return false
			}
		}
	}

	return true
}

// overlapBounds reports whether two axis-aligned boxes (amin,amax) and
// (bmin,bmax) intersect on all three axes.
func overlapBounds(amin, amax, bmin, bmax []float32) bool {
	if amin[0] > bmax[0] || amax[0] < bmin[0] {
		return false
	}
	if amin[1] > bmax[1] || amax[1] < bmin[1] {
		return false
	}
	if amin[2] > bmax[2] || amax[2] < bmin[2] {
		return false
	}
	return true
}

func int32Clamp(a, low, high int32) int32 {
	if a < low {
		return low
	} else if a > high {
		return high
	}
	return a
}

// dividePoly splits the convex polygon in (nin vertices) by the plane
// x[axis] == x, writing the negative side to out1/nout1 and the positive
// side (inclusive of the cut line) to out2/nout2.
func dividePoly(in []float32, nin int32,
	out1 []float32, nout1 *int32,
	out2 []float32, nout2 *int32,
	x float32, axis int32) {
	var side [12]float32
	for i := int32(0); i < nin; i++ {
		side[i] = x - in[i*3+axis]
	}

	var m, n int32
	j := nin - 1
	for i := int32(0); i < nin; i++ {
		ina := side[j] >= 0
		inb := side[i] >= 0
		if ina != inb {
			// Edge (j,i) crosses the plane: emit the intersection point to
			// both output polygons.
			s := side[j] / (side[j] - side[i])
			out1[m*3+0] = in[j*3+0] + (in[i*3+0]-in[j*3+0])*s
			out1[m*3+1] = in[j*3+1] + (in[i*3+1]-in[j*3+1])*s
			out1[m*3+2] = in[j*3+2] + (in[i*3+2]-in[j*3+2])*s

			copy(out2[n*3:n*3+3], out1[m*3:m*3+3])
			m++
			n++
			// Vertex i itself only belongs to whichever side it's
			// strictly on; points on the line were already emitted above.
			if side[i] > 0 {
				copy(out1[m*3:m*3+3], in[i*3:i*3+3])
				m++
			} else if side[i] < 0 {
				copy(out2[n*3:n*3+3], in[i*3:i*3+3])
				n++
			}
		} else {
			// Both endpoints on the same side: vertex i goes to out1 if
			// side[i] > 0, to out2 if side[i] < 0, and to both if it lies
			// exactly on the cut line.
			if side[i] >= 0 {
				copy(out1[m*3:m*3+3], in[i*3:i*3+3])
				m++
				if side[i] != 0 {
					j = i
					continue
				}
			}
			copy(out2[n*3:n*3+3], in[i*3:i*3+3])
			n++
		}
		j = i
	}

	*nout1 = m
	*nout2 = n
}
