package detour

import (
	"github.com/arl/gogeo/f32/d3"
	"github.com/arl/math32"
)

// 2D computational geometry on the xz plane. The y component of the
// inputs is carried through untouched where relevant and ignored
// otherwise.

// TriArea2D returns the signed area of the triangle abc projected onto
// the xz plane. The sign encodes the winding: negative when c lies to
// the left of the directed line ab.
func TriArea2D(a, b, c d3.Vec3) float32 {
	abx := b[0] - a[0]
	abz := b[2] - a[2]
	acx := c[0] - a[0]
	acz := c[2] - a[2]
	return acx*abz - abx*acz
}

// IntersectSegSeg2D intersects segments ap-aq and bp-bq on the xz
// plane. On hit, s and t are the parameters of the intersection point
// along each segment.
func IntersectSegSeg2D(ap, aq, bp, bq d3.Vec3) (hit bool, s, t float32) {
	u := aq.Sub(ap)
	v := bq.Sub(bp)
	w := ap.Sub(bp)

	d := u.Perp2D(v)
	if math32.Abs(d) < 1e-6 {
		return false, 0, 0
	}
	return true, v.Perp2D(w) / d, u.Perp2D(w) / d
}

// OverlapQuantBounds reports whether the quantized boxes [amin amax]
// and [bmin bmax] overlap.
func OverlapQuantBounds(amin, amax, bmin, bmax []uint16) bool {
	return amin[0] <= bmax[0] && amax[0] >= bmin[0] &&
		amin[1] <= bmax[1] && amax[1] >= bmin[1] &&
		amin[2] <= bmax[2] && amax[2] >= bmin[2]
}

// OverlapBounds reports whether the boxes [amin amax] and [bmin bmax]
// overlap.
func OverlapBounds(amin, amax, bmin, bmax []float32) bool {
	return amin[0] <= bmax[0] && amax[0] >= bmin[0] &&
		amin[1] <= bmax[1] && amax[1] >= bmin[1] &&
		amin[2] <= bmax[2] && amax[2] >= bmin[2]
}

// polyEdgeDistances reports whether pt is inside the xz projection of
// the polygon, and fills ed and et with, per edge j, the squared
// distance from pt to that edge and the parameter of the closest point
// along it.
func polyEdgeDistances(pt, verts []float32, nverts int32, ed, et []float32) bool {
	inside := false
	for i, j := int32(0), nverts-1; i < nverts; j, i = i, i+1 {
		vi := verts[i*3 : i*3+3]
		vj := verts[j*3 : j*3+3]
		if ((vi[2] > pt[2]) != (vj[2] > pt[2])) &&
			(pt[0] < (vj[0]-vi[0])*(pt[2]-vi[2])/(vj[2]-vi[2])+vi[0]) {
			inside = !inside
		}
		ed[j], et[j] = distPtSeg2D(pt, vj, vi)
	}
	return inside
}

// projectPoly projects every vertex of poly onto axis and returns the
// extent of the projection.
func projectPoly(axis d3.Vec3, poly []float32, npoly int32) (rmin, rmax float32) {
	rmin = axis.Dot2D(poly[:3])
	rmax = rmin
	for i := int32(1); i < npoly; i++ {
		d := axis.Dot2D(poly[i*3:])
		rmin = math32.Min(rmin, d)
		rmax = math32.Max(rmax, d)
	}
	return rmin, rmax
}

func overlapRange(amin, amax, bmin, bmax, eps float32) bool {
	return (amin+eps) <= bmax && (amax-eps) >= bmin
}

// OverlapPolyPoly2D reports whether two convex polygons overlap on the
// xz plane, by separating-axis test over the edge normals of both.
func OverlapPolyPoly2D(polya []float32, npolya int32, polyb []float32, npolyb int32) bool {
	const eps = 1e-4

	axisOverlap := func(poly []float32, npoly int32) bool {
		for i, j := int32(0), npoly-1; i < npoly; j, i = i, i+1 {
			va := poly[j*3:]
			vb := poly[i*3:]
			n := d3.Vec3{vb[2] - va[2], 0, -(vb[0] - va[0])}
			amin, amax := projectPoly(n, polya, npolya)
			bmin, bmax := projectPoly(n, polyb, npolyb)
			if !overlapRange(amin, amax, bmin, bmax, eps) {
				return false
			}
		}
		return true
	}
	return axisOverlap(polya, npolya) && axisOverlap(polyb, npolyb)
}

// IntersectSegmentPoly2D clips the segment p0-p1 against a convex
// polygon on the xz plane. On success tmin and tmax are the entry and
// exit parameters along the segment and segMin/segMax the indices of
// the edges crossed (-1 when the corresponding endpoint is inside).
func IntersectSegmentPoly2D(p0, p1 d3.Vec3, verts []float32, nverts int) (tmin, tmax float32, segMin, segMax int, res bool) {
	const eps float32 = 1e-8

	tmin, tmax = 0, 1
	segMin, segMax = -1, -1

	dir := p1.Sub(p0)
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		edge := d3.Vec3(verts[i*3:]).Sub(d3.Vec3(verts[j*3:]))
		diff := p0.Sub(d3.Vec3(verts[j*3:]))
		n := edge.Perp2D(diff)
		d := dir.Perp2D(edge)
		if math32.Abs(d) < eps {
			// Segment runs parallel to this edge: outside means no hit
			// at all, inside means the edge constrains nothing.
			if n < 0 {
				return
			}
			continue
		}
		t := n / d
		if d < 0 {
			// Entering across this edge.
			if t > tmin {
				tmin, segMin = t, j
				if tmin > tmax {
					return
				}
			}
		} else {
			// Leaving across this edge.
			if t < tmax {
				tmax, segMax = t, j
				if tmax < tmin {
					return
				}
			}
		}
	}

	res = true
	return
}

// distPtSeg2D returns the squared xz distance from pt to segment p-q
// and the parameter t of the closest point along the segment.
func distPtSeg2D(pt, p, q d3.Vec3) (d, t float32) {
	pqx := q[0] - p[0]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dz := pt[2] - p[2]
	den := pqx*pqx + pqz*pqz
	t = pqx*dx + pqz*dz
	if den > 0 {
		t /= den
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	dx = p[0] + t*pqx - pt[0]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dz*dz, t
}

// triHeight returns the y of the triangle abc at the xz position of p,
// when p projects inside the triangle. The epsilon admits points
// interpolated along triangle edges.
func triHeight(p, a, b, c d3.Vec3) (h float32, ok bool) {
	v0 := c.Sub(a)
	v1 := b.Sub(a)
	v2 := p.Sub(a)

	dot00 := v0.Dot2D(v0)
	dot01 := v0.Dot2D(v1)
	dot02 := v0.Dot2D(v2)
	dot11 := v1.Dot2D(v1)
	dot12 := v1.Dot2D(v2)

	invDenom := 1.0 / (dot00*dot11 - dot01*dot01)
	u := (dot11*dot02 - dot01*dot12) * invDenom
	v := (dot00*dot12 - dot01*dot02) * invDenom

	const eps = 1e-4
	if u >= -eps && v >= -eps && (u+v) <= 1+eps {
		return a[1] + v0[1]*u + v1[1]*v, true
	}
	return 0, false
}

// oppositeSide maps a portal side number to the side facing it on the
// neighbor tile.
func oppositeSide(side int32) int32 {
	return (side + 4) & 0x7
}
