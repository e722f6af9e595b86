package recast

// Contour build flags, passed to BuildContours to control which edges get
// extra tessellation vertices beyond what Douglas-Peucker simplification
// would keep.
const (
	// ContourTessWallEdges tessellates edges between a solid area and the
	// unwalkable void during contour simplification.
	ContourTessWallEdges int32 = 0x01
	// ContourTessAreaEdges tessellates edges between two differently
	// flagged areas during contour simplification.
	ContourTessAreaEdges int32 = 0x02
)

// ContourRegMask isolates the region id bits of a contour vertex's region
// field; the remaining high bits carry BorderVertex/AreaBorder flags.
const ContourRegMask int32 = 0xffff

// MeshNullIdx marks an unused slot in a PolyMesh adjacency/vertex index
// array. It does not by itself indicate an error condition.
const MeshNullIdx uint16 = 0xffff

// NullArea is the area id of an unwalkable span or triangle.
const NullArea uint8 = 0

// WalkableArea is the default (and maximum) area id assigned to a walkable
// triangle; several build stages only recognize this one non-null area id.
const WalkableArea uint8 = 63

// NotConnected is returned by GetCon when the requested direction has no
// neighboring span.
const NotConnected int32 = 0x3f

// BorderReg flags a region id as one of the border regions painted around
// the tile edge before flood-filling, distinguishing it from a
// flood-filled interior region.
const BorderReg uint16 = 0x8000

// BorderVertex flags a contour vertex as lying on the edge of the tile
// rather than on an internal region boundary.
const BorderVertex int32 = 0x10000

// AreaBorder flags a contour vertex as lying on a change of area id, as
// opposed to merely a change of region.
const AreaBorder int32 = 0x20000
