package detour

import "github.com/arl/gogeo/f32/d3"

// Poly is one polygon of a MeshTile. Vertex entries index into the
// tile's vertex slice; Neis packs, per edge, either the 1-based index
// of the neighbor polygon, a portal side flagged with extLink, or 0
// for a wall.
type Poly struct {
	FirstLink uint32 // Head of the polygon's link list, or nullLink.
	Verts     [VertsPerPolygon]uint16
	Neis      [VertsPerPolygon]uint16
	Flags     uint16 // User defined polygon flags.
	VertCount uint8

	// Area id and polygon type share a byte: area in the low 6 bits,
	// type in the top 2. Exported so the binary codec reaches it;
	// use Area/Type/SetArea/SetType everywhere else.
	AreaAndType uint8
}

// SetArea sets the user defined area id (< maxAreas).
func (p *Poly) SetArea(a uint8) {
	p.AreaAndType = (p.AreaAndType & 0xc0) | (a & 0x3f)
}

// SetType sets the polygon type.
func (p *Poly) SetType(t uint8) {
	p.AreaAndType = (p.AreaAndType & 0x3f) | (t << 6)
}

// Area returns the user defined area id.
func (p *Poly) Area() uint8 {
	return p.AreaAndType & 0x3f
}

// Type returns the polygon type.
func (p *Poly) Type() uint8 {
	return p.AreaAndType >> 6
}

// CalcPolyCenter returns the centroid of the polygon whose nidx vertex
// indices are idx, resolved against verts.
func CalcPolyCenter(idx []uint16, nidx int32, verts []float32) d3.Vec3 {
	tc := d3.NewVec3()
	for j := int32(0); j < nidx; j++ {
		start := idx[j] * 3
		v := verts[start : start+3]
		tc[0] += v[0]
		tc[1] += v[1]
		tc[2] += v[2]
	}
	return tc.Scale(1 / float32(nidx))
}
