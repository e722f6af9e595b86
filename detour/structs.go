package detour

// PolyRef is a reference to a polygon of the navigation mesh: the tile's
// salt, the tile index and the polygon index packed into 32 bits. The
// zero value is the null reference.
type PolyRef uint32

// TileRef is a reference to a tile of the navigation mesh. Like PolyRef
// it carries the tile's salt, so a reference to a removed-then-reused
// tile slot can be detected as stale.
type TileRef uint32

const (
	// navMeshMagic identifies encoded navigation tile data. Spelled out
	// byte by byte so the on-disk order does not depend on how the host
	// compiler packs multi-character constants.
	navMeshMagic int32 = 'D'<<24 | 'N'<<16 | 'A'<<8 | 'V'

	// navMeshVersion is the tile data format version.
	navMeshVersion int32 = 7
)

const (
	// extLink on a Poly.Neis entry flags the edge as a portal to another
	// tile; the low bits then carry the portal side instead of a
	// neighbor polygon index.
	extLink uint16 = 0x8000

	// nullLink means "no link" in a link list.
	nullLink uint32 = 0xffffffff
)

// Polygon types.
const (
	// polyTypeGround is a standard convex polygon of the mesh surface.
	polyTypeGround uint8 = 0
	// polyTypeOffMeshConnection is a two-vertex user defined connection.
	polyTypeOffMeshConnection uint8 = 1
)

// NavMeshParams describes the tile grid of a navigation mesh: its world
// space origin, the tile dimensions, and the capacity reserved for tiles
// and polygons at Init time.
type NavMeshParams struct {
	Orig       [3]float32 // World space origin of the tile grid.
	TileWidth  float32    // Tile width along x.
	TileHeight float32    // Tile height along z.
	MaxTiles   uint32     // Maximum number of tiles.
	MaxPolys   uint32     // Maximum number of polygons per tile.
}

// MeshHeader is the fixed-size header prefixing every encoded tile: its
// grid position, the element counts needed to size the tile's slices,
// and the agent dimensions and AABB used to build it.
type MeshHeader struct {
	Magic           int32
	Version         int32
	X               int32 // Tile x within the grid.
	Y               int32 // Tile y within the grid.
	Layer           int32
	UserID          uint32
	PolyCount       int32
	VertCount       int32
	MaxLinkCount    int32
	DetailMeshCount int32
	DetailVertCount int32
	DetailTriCount  int32
	BvNodeCount     int32 // Zero when the tile has no BV-tree.
	OffMeshConCount int32
	OffMeshBase     int32 // Index of the first off-mesh connection polygon.
	WalkableHeight  float32
	WalkableRadius  float32
	WalkableClimb   float32
	Bmin            [3]float32
	Bmax            [3]float32
	BvQuantFactor   float32 // World units to BV-tree quantized units.
}

// Link connects a polygon edge to a neighbor polygon, possibly in
// another tile. Links of one polygon form a singly linked list threaded
// through the tile's link arena, starting at Poly.FirstLink.
type Link struct {
	Ref  PolyRef // Neighbor reference the link points to.
	Next uint32  // Next link of the same polygon, or nullLink.
	Edge uint8   // Polygon edge owning this link.
	Side uint8   // Boundary link side, 0xff for internal links.
	Bmin uint8   // Boundary link sub-edge min, compressed to a byte.
	Bmax uint8   // Boundary link sub-edge max.
}

// PolyDetail locates one polygon's detail sub-mesh inside the tile's
// detail vertex and triangle slices.
type PolyDetail struct {
	VertBase  uint32
	TriBase   uint32
	VertCount uint8
	TriCount  uint8
}

// BvNode is one node of a tile's bounding volume tree, stored in DFS
// order. A non-negative I is a leaf holding a polygon index; a negative
// I is the escape offset to skip the node's subtree.
type BvNode struct {
	Bmin [3]uint16
	Bmax [3]uint16
	I    int32
}

// OffMeshConnection is a user defined point-to-point edge of the
// navigation graph.
type OffMeshConnection struct {
	Pos    [6]float32 // The two endpoints. [(ax, ay, az, bx, by, bz)]
	Rad    float32    // Endpoint radius.
	Poly   uint16     // The connection's polygon within the tile.
	Flags  uint8      // Internal link flags (not the polygon's user flags).
	Side   uint8      // Endpoint side.
	UserID uint32
}

// MeshTile is one tile's worth of polygon graph: its header plus the
// vertex/polygon/link/detail-mesh/BV-tree slices the header's counts
// size.
type MeshTile struct {
	Salt          uint32 // Bumped on slot reuse to invalidate stale refs.
	LinksFreeList uint32 // Next free link in Links.
	Header        *MeshHeader
	Polys         []Poly
	Verts         []float32
	Links         []Link
	DetailMeshes  []PolyDetail
	DetailVerts   []float32
	DetailTris    []uint8
	BvTree        []BvNode
	OffMeshCons   []OffMeshConnection

	Data     []uint8 // The encoded tile, as produced by CreateNavMeshData.
	DataSize int32
	Flags    int32
	Next     *MeshTile // Next free tile, or next tile in the same grid cell.

	index uint32 // Slot in NavMesh.Tiles, fixed at Init.
}
