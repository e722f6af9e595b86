package detour

import (
	"math"

	"github.com/arl/gogeo/f32"
	"github.com/arl/gogeo/f32/d3"
	"github.com/arl/math32"
)

// NavMesh is a navigation mesh based on tiles of convex polygons.
//
// Every mesh is tiled; a single-tile mesh is simply a mesh whose grid
// holds one tile, which is what InitForSingleTile sets up. Tiles carry
// the polygon graph, the vertex positions and a bounding volume tree
// for spatial queries; NavMeshQuery runs searches over them.
//
// A NavMesh only reads the tile data it is given, plus the link arena
// it rebuilds per tile; it performs no synchronization. Concurrent
// queries over one mesh are safe as long as each goroutine owns its
// own NavMeshQuery.
type NavMesh struct {
	Params                NavMeshParams // Params the mesh was initialized with.
	Orig                  d3.Vec3       // Origin of tile (0, 0).
	TileWidth, TileHeight float32
	MaxTiles              int32
	Tiles                 []MeshTile

	posLookup []*MeshTile // Tile spatial hash.
	lutMask   int32
	nextFree  *MeshTile // Free tile slots.

	saltBits uint32 // Bit widths of the PolyRef fields.
	tileBits uint32
	polyBits uint32
}

// Init sets up the mesh for tiled use with the given grid parameters.
func (m *NavMesh) Init(params *NavMeshParams) Status {
	m.Params = *params
	m.Orig = d3.NewVec3From(params.Orig[:])
	m.TileWidth = params.TileWidth
	m.TileHeight = params.TileHeight

	m.MaxTiles = int32(params.MaxTiles)
	lutSize := int32(math32.NextPow2(uint32(params.MaxTiles / 4)))
	if lutSize == 0 {
		lutSize = 1
	}
	m.lutMask = lutSize - 1

	m.Tiles = make([]MeshTile, m.MaxTiles)
	m.posLookup = make([]*MeshTile, lutSize)
	m.nextFree = nil
	for i := m.MaxTiles - 1; i >= 0; i-- {
		m.Tiles[i].Salt = 1
		m.Tiles[i].index = uint32(i)
		m.Tiles[i].Next = m.nextFree
		m.nextFree = &m.Tiles[i]
	}

	// Split the 32 reference bits between salt, tile and poly. The salt
	// caps at 31 bits so the salt mask fits a uint32.
	m.tileBits = math32.Ilog2(math32.NextPow2(uint32(params.MaxTiles)))
	m.polyBits = math32.Ilog2(math32.NextPow2(uint32(params.MaxPolys)))
	if 32-m.tileBits-m.polyBits > 31 {
		m.saltBits = 31
	} else {
		m.saltBits = 32 - m.tileBits - m.polyBits
	}
	if m.saltBits < 8 {
		return Failure | InvalidParam
	}
	return Success
}

// InitForSingleTile sets up the mesh for single tile use: the grid is
// sized to hold exactly the given tile, which is added immediately.
//
// data is an encoded tile as produced by CreateNavMeshData.
func (m *NavMesh) InitForSingleTile(data []uint8, flags int) Status {
	var header MeshHeader
	if err := header.unserialize(data); err != nil {
		return Failure | InvalidParam
	}
	if header.Magic != navMeshMagic {
		return Failure | WrongMagic
	}
	if header.Version != navMeshVersion {
		return Failure | WrongVersion
	}

	var params NavMeshParams
	copy(params.Orig[:], header.Bmin[:])
	params.TileWidth = header.Bmax[0] - header.Bmin[0]
	params.TileHeight = header.Bmax[2] - header.Bmin[2]
	params.MaxTiles = 1
	params.MaxPolys = uint32(header.PolyCount)

	if status := m.Init(&params); StatusFailed(status) {
		return status
	}
	status, _ := m.AddTile(data, TileRef(flags))
	return status
}

// AddTile adds an encoded tile to the mesh, decodes it and connects it
// to its neighbors. It fails if the data is in the wrong format, the
// tile grid location is taken, or no tile slot is free.
//
// lastRef restores a tile to the slot and salt it previously occupied,
// so PolyRefs into the removed tile become valid again; pass 0
// otherwise. The mesh keeps its own copy of data; the caller's slice is
// not retained.
func (m *NavMesh) AddTile(data []byte, lastRef TileRef) (Status, TileRef) {
	hdr := &MeshHeader{}
	if err := hdr.unserialize(data); err != nil {
		return Failure | InvalidParam, 0
	}
	if hdr.Magic != navMeshMagic {
		return Failure | WrongMagic, 0
	}
	if hdr.Version != navMeshVersion {
		return Failure | WrongVersion, 0
	}

	// The location must be free.
	if m.TileAt(hdr.X, hdr.Y, hdr.Layer) != nil {
		return Failure, 0
	}

	var tile *MeshTile
	if lastRef == 0 {
		if m.nextFree != nil {
			tile = m.nextFree
			m.nextFree = tile.Next
			tile.Next = nil
		}
	} else {
		// Relocate the tile to its previous slot, with its previous salt.
		tileIndex := int32(m.decodeRefTile(PolyRef(lastRef)))
		if tileIndex >= m.MaxTiles {
			return Failure | OutOfMemory, 0
		}
		target := &m.Tiles[tileIndex]
		var prev *MeshTile
		tile = m.nextFree
		for tile != nil && tile != target {
			prev = tile
			tile = tile.Next
		}
		if tile != target {
			// The slot is occupied.
			return Failure | OutOfMemory, 0
		}
		if prev == nil {
			m.nextFree = tile.Next
		} else {
			prev.Next = tile.Next
		}
		tile.Salt = m.decodeRefSalt(PolyRef(lastRef))
	}
	if tile == nil {
		return Failure | OutOfMemory, 0
	}

	// Insert into the spatial hash.
	h := computeTileHash(hdr.X, hdr.Y, m.lutMask)
	tile.Next = m.posLookup[h]
	m.posLookup[h] = tile

	if err := tile.unserialize(hdr, data[meshHeaderSize:]); err != nil {
		return Failure | InvalidParam, 0
	}
	if len(tile.BvTree) == 0 {
		tile.BvTree = nil
	}

	// Thread the link arena into a free list.
	tile.LinksFreeList = 0
	tile.Links[hdr.MaxLinkCount-1].Next = nullLink
	for i := int32(0); i < hdr.MaxLinkCount-1; i++ {
		tile.Links[i].Next = uint32(i + 1)
	}

	tile.Header = hdr
	tile.Data = make([]byte, len(data))
	copy(tile.Data, data)
	tile.DataSize = int32(len(data))
	tile.Flags = 0

	m.connectIntLinks(tile)

	// Base off-mesh connections to their starting polygons and connect
	// connections inside the tile.
	m.baseOffMeshLinks(tile)
	m.connectExtOffMeshLinks(tile, tile, -1)

	var neis [32]*MeshTile

	// Connect with layers in the current tile.
	nneis := m.TilesAt(hdr.X, hdr.Y, neis[:])
	for j := int32(0); j < nneis; j++ {
		if neis[j] == tile {
			continue
		}
		m.connectExtLinks(tile, neis[j], -1)
		m.connectExtLinks(neis[j], tile, -1)
		m.connectExtOffMeshLinks(tile, neis[j], -1)
		m.connectExtOffMeshLinks(neis[j], tile, -1)
	}

	// Connect with neighbor tiles.
	for i := int32(0); i < 8; i++ {
		nneis = m.neighborTilesAt(hdr.X, hdr.Y, i, neis[:])
		for j := int32(0); j < nneis; j++ {
			m.connectExtLinks(tile, neis[j], i)
			m.connectExtLinks(neis[j], tile, oppositeSide(i))
			m.connectExtOffMeshLinks(tile, neis[j], i)
			m.connectExtOffMeshLinks(neis[j], tile, oppositeSide(i))
		}
	}

	return Success, m.TileRef(tile)
}

// RemoveTile removes the tile from the mesh and returns its encoded
// data, so the caller may add it back later.
func (m *NavMesh) RemoveTile(ref TileRef) (data []uint8, st Status) {
	if ref == 0 {
		return nil, Failure | InvalidParam
	}
	tileIndex := m.decodeRefTile(PolyRef(ref))
	tileSalt := m.decodeRefSalt(PolyRef(ref))
	if tileIndex >= uint32(m.MaxTiles) {
		return nil, Failure | InvalidParam
	}
	tile := &m.Tiles[tileIndex]
	if tile.Salt != tileSalt {
		return nil, Failure | InvalidParam
	}
	data = tile.Data

	// Remove from the spatial hash.
	h := computeTileHash(tile.Header.X, tile.Header.Y, m.lutMask)
	var prev *MeshTile
	for cur := m.posLookup[h]; cur != nil; cur = cur.Next {
		if cur == tile {
			if prev != nil {
				prev.Next = cur.Next
			} else {
				m.posLookup[h] = cur.Next
			}
			break
		}
		prev = cur
	}

	var neis [32]*MeshTile

	// Disconnect from other layers in the current tile.
	nneis := m.TilesAt(tile.Header.X, tile.Header.Y, neis[:])
	for j := int32(0); j < nneis; j++ {
		if neis[j] == tile {
			continue
		}
		m.unconnectLinks(neis[j], tile)
	}

	// Disconnect from neighbor tiles.
	for i := int32(0); i < 8; i++ {
		nneis = m.neighborTilesAt(tile.Header.X, tile.Header.Y, i, neis[:])
		for j := int32(0); j < nneis; j++ {
			m.unconnectLinks(neis[j], tile)
		}
	}

	tile.Header = nil
	tile.Flags = 0
	tile.LinksFreeList = 0
	tile.Polys = nil
	tile.Verts = nil
	tile.Links = nil
	tile.DetailMeshes = nil
	tile.DetailVerts = nil
	tile.DetailTris = nil
	tile.BvTree = nil
	tile.OffMeshCons = nil
	tile.Data = nil
	tile.DataSize = 0

	// Bump the salt so stale refs into this slot are detected; the salt
	// is never zero.
	tile.Salt = (tile.Salt + 1) & ((1 << m.saltBits) - 1)
	if tile.Salt == 0 {
		tile.Salt++
	}

	tile.Next = m.nextFree
	m.nextFree = tile

	return data, Success
}

func computeTileHash(x, y, mask int32) int32 {
	// Arbitrarily chosen large multiplicative primes.
	const (
		h1 int64 = 0x8da6b343
		h2 int64 = 0xd8163841
	)
	n := h1*int64(x) + h2*int64(y)
	return int32(n) & mask
}

// TileAt returns the tile at the given grid location and layer, or nil.
func (m *NavMesh) TileAt(x, y, layer int32) *MeshTile {
	h := computeTileHash(x, y, m.lutMask)
	for tile := m.posLookup[h]; tile != nil; tile = tile.Next {
		if tile.Header != nil &&
			tile.Header.X == x &&
			tile.Header.Y == y &&
			tile.Header.Layer == layer {
			return tile
		}
	}
	return nil
}

// TilesAt fills tiles with every layer present at the given grid
// location and returns how many were written; excess layers are
// dropped.
func (m *NavMesh) TilesAt(x, y int32, tiles []*MeshTile) int32 {
	var n int32
	h := computeTileHash(x, y, m.lutMask)
	for tile := m.posLookup[h]; tile != nil; tile = tile.Next {
		if tile.Header != nil && tile.Header.X == x && tile.Header.Y == y {
			if n < int32(len(tiles)) {
				tiles[n] = tile
				n++
			}
		}
	}
	return n
}

func (m *NavMesh) neighborTilesAt(x, y, side int32, tiles []*MeshTile) int32 {
	nx, ny := x, y
	switch side {
	case 0:
		nx++
	case 1:
		nx++
		ny++
	case 2:
		ny++
	case 3:
		nx--
		ny++
	case 4:
		nx--
	case 5:
		nx--
		ny--
	case 6:
		ny--
	case 7:
		nx++
		ny--
	}
	return m.TilesAt(nx, ny, tiles)
}

// TileRefAt returns the reference of the tile at the given grid
// location and layer, or 0.
func (m *NavMesh) TileRefAt(x, y, layer int32) TileRef {
	return m.TileRef(m.TileAt(x, y, layer))
}

// TileByRef resolves a tile reference, or returns nil when the
// reference is null or stale.
func (m *NavMesh) TileByRef(ref TileRef) *MeshTile {
	if ref == 0 {
		return nil
	}
	tileIndex := m.decodeRefTile(PolyRef(ref))
	tileSalt := m.decodeRefSalt(PolyRef(ref))
	if int32(tileIndex) >= m.MaxTiles {
		return nil
	}
	tile := &m.Tiles[tileIndex]
	if tile.Salt != tileSalt {
		return nil
	}
	return tile
}

// TileRef returns the reference for the given tile.
func (m *NavMesh) TileRef(tile *MeshTile) TileRef {
	if tile == nil {
		return 0
	}
	return TileRef(m.encodePolyID(tile.Salt, tile.index, 0))
}

// polyRefBase returns the reference of polygon 0 of the tile; the
// tile's other polygons are base|i.
func (m *NavMesh) polyRefBase(tile *MeshTile) PolyRef {
	if tile == nil {
		return 0
	}
	return m.encodePolyID(tile.Salt, tile.index, 0)
}

// encodePolyID packs a salt, tile index and polygon index into a
// polygon reference.
func (m *NavMesh) encodePolyID(salt, it, ip uint32) PolyRef {
	return (PolyRef(salt) << (m.polyBits + m.tileBits)) |
		(PolyRef(it) << m.polyBits) | PolyRef(ip)
}

// DecodePolyID splits a polygon reference into the tile's salt, the
// tile index and the polygon index.
func (m *NavMesh) DecodePolyID(ref PolyRef) (salt, it, ip uint32) {
	saltMask := (PolyRef(1) << m.saltBits) - 1
	tileMask := (PolyRef(1) << m.tileBits) - 1
	polyMask := (PolyRef(1) << m.polyBits) - 1
	salt = uint32((ref >> (m.polyBits + m.tileBits)) & saltMask)
	it = uint32((ref >> m.polyBits) & tileMask)
	ip = uint32(ref & polyMask)
	return salt, it, ip
}

func (m *NavMesh) decodeRefTile(ref PolyRef) uint32 {
	tileMask := (PolyRef(1) << m.tileBits) - 1
	return uint32((ref >> m.polyBits) & tileMask)
}

func (m *NavMesh) decodeRefSalt(ref PolyRef) uint32 {
	saltMask := (PolyRef(1) << m.saltBits) - 1
	return uint32((ref >> (m.polyBits + m.tileBits)) & saltMask)
}

func (m *NavMesh) decodeRefPoly(ref PolyRef) uint32 {
	polyMask := (PolyRef(1) << m.polyBits) - 1
	return uint32(ref & polyMask)
}

// IsValidPolyRef reports whether ref points at a live polygon.
func (m *NavMesh) IsValidPolyRef(ref PolyRef) bool {
	if ref == 0 {
		return false
	}
	salt, it, ip := m.DecodePolyID(ref)
	if it >= uint32(m.MaxTiles) {
		return false
	}
	if m.Tiles[it].Salt != salt || m.Tiles[it].Header == nil {
		return false
	}
	return ip < uint32(m.Tiles[it].Header.PolyCount)
}

// TileAndPolyByRef resolves a polygon reference to its tile and
// polygon, validating the reference.
func (m *NavMesh) TileAndPolyByRef(ref PolyRef) (*MeshTile, *Poly, Status) {
	if ref == 0 {
		return nil, nil, Failure
	}
	salt, it, ip := m.DecodePolyID(ref)
	if it >= uint32(m.MaxTiles) {
		return nil, nil, Failure | InvalidParam
	}
	if m.Tiles[it].Salt != salt || m.Tiles[it].Header == nil {
		return nil, nil, Failure | InvalidParam
	}
	if ip >= uint32(m.Tiles[it].Header.PolyCount) {
		return nil, nil, Failure | InvalidParam
	}
	return &m.Tiles[it], &m.Tiles[it].Polys[ip], Success
}

// TileAndPolyByRefUnsafe resolves a polygon reference without
// validation. Only call it with references already known valid.
func (m *NavMesh) TileAndPolyByRefUnsafe(ref PolyRef) (*MeshTile, *Poly) {
	_, it, ip := m.DecodePolyID(ref)
	return &m.Tiles[it], &m.Tiles[it].Polys[ip]
}

// CalcTileLoc returns the tile grid location containing the world
// position.
func (m *NavMesh) CalcTileLoc(pos d3.Vec3) (tx, ty int32) {
	tx = int32(math32.Floor((pos[0] - m.Orig[0]) / m.TileWidth))
	ty = int32(math32.Floor((pos[2] - m.Orig[2]) / m.TileHeight))
	return tx, ty
}

func allocLink(tile *MeshTile) uint32 {
	if tile.LinksFreeList == nullLink {
		return nullLink
	}
	link := tile.LinksFreeList
	tile.LinksFreeList = tile.Links[link].Next
	return link
}

func freeLink(tile *MeshTile, link uint32) {
	tile.Links[link].Next = tile.LinksFreeList
	tile.LinksFreeList = link
}

// connectIntLinks creates the internal (same-tile) polygon links from
// the adjacency baked into Poly.Neis.
func (m *NavMesh) connectIntLinks(tile *MeshTile) {
	if tile == nil {
		return
	}
	base := m.polyRefBase(tile)

	for i := int32(0); i < tile.Header.PolyCount; i++ {
		poly := &tile.Polys[i]
		poly.FirstLink = nullLink
		if poly.Type() == polyTypeOffMeshConnection {
			continue
		}

		// Build edge links backwards so the list runs from lowest edge
		// index to highest.
		for j := int32(poly.VertCount - 1); j >= 0; j-- {
			// Skip hard edges and portals.
			if poly.Neis[j] == 0 || (poly.Neis[j]&extLink) != 0 {
				continue
			}
			idx := allocLink(tile)
			if idx == nullLink {
				continue
			}
			link := &tile.Links[idx]
			link.Ref = base | PolyRef(poly.Neis[j]-1)
			link.Edge = uint8(j)
			link.Side = 0xff
			link.Bmin = 0
			link.Bmax = 0
			link.Next = poly.FirstLink
			poly.FirstLink = idx
		}
	}
}

// baseOffMeshLinks connects each off-mesh connection start point to the
// polygon it rests on.
func (m *NavMesh) baseOffMeshLinks(tile *MeshTile) {
	if tile == nil {
		return
	}
	base := m.polyRefBase(tile)

	for i := int32(0); i < tile.Header.OffMeshConCount; i++ {
		con := &tile.OffMeshCons[i]
		poly := &tile.Polys[con.Poly]

		ext := d3.Vec3{con.Rad, tile.Header.WalkableClimb, con.Rad}

		// Find the polygon under the start point.
		p := d3.Vec3(con.Pos[0:3])
		nearestPt := d3.NewVec3()
		ref := m.FindNearestPolyInTile(tile, p, ext, nearestPt)
		if ref == 0 {
			continue
		}
		// The nearest-poly box query is optimistic; reject hits outside
		// the connection radius.
		if math32.Sqr(nearestPt[0]-p[0])+math32.Sqr(nearestPt[2]-p[2]) > math32.Sqr(con.Rad) {
			continue
		}
		// Snap the connection's start vertex onto the mesh.
		v := d3.Vec3(tile.Verts[poly.Verts[0]*3 : poly.Verts[0]*3+3])
		v.Assign(nearestPt)

		// Off-mesh connection to the landing polygon.
		if idx := allocLink(tile); idx != nullLink {
			link := &tile.Links[idx]
			link.Ref = ref
			link.Edge = 0
			link.Side = 0xff
			link.Bmin = 0
			link.Bmax = 0
			link.Next = poly.FirstLink
			poly.FirstLink = idx
		}

		// The start polygon always links back to the connection.
		if tidx := allocLink(tile); tidx != nullLink {
			landPoly := &tile.Polys[uint16(m.decodeRefPoly(ref))]
			link := &tile.Links[tidx]
			link.Ref = base | PolyRef(con.Poly)
			link.Edge = 0xff
			link.Side = 0xff
			link.Bmin = 0
			link.Bmax = 0
			link.Next = landPoly.FirstLink
			landPoly.FirstLink = tidx
		}
	}
}

// connectExtOffMeshLinks connects off-mesh connections of target that
// land in tile.
func (m *NavMesh) connectExtOffMeshLinks(tile, target *MeshTile, side int32) {
	if tile == nil {
		return
	}

	var landSide uint8
	if side == -1 {
		landSide = 0xff
	} else {
		landSide = uint8(oppositeSide(side))
	}

	for i := int32(0); i < target.Header.OffMeshConCount; i++ {
		targetCon := &target.OffMeshCons[i]
		if targetCon.Side != landSide {
			continue
		}
		targetPoly := &target.Polys[targetCon.Poly]
		// Skip connections whose start location never connected.
		if targetPoly.FirstLink == nullLink {
			continue
		}

		ext := d3.Vec3{targetCon.Rad, target.Header.WalkableClimb, targetCon.Rad}

		// Find the polygon under the end point.
		p := d3.Vec3(targetCon.Pos[3:6])
		nearestPt := d3.NewVec3()
		ref := m.FindNearestPolyInTile(tile, p, ext, nearestPt)
		if ref == 0 {
			continue
		}
		if math32.Sqr(nearestPt[0]-p[0])+math32.Sqr(nearestPt[2]-p[2]) > math32.Sqr(targetCon.Rad) {
			continue
		}
		// Snap the connection's end vertex onto the mesh.
		v := d3.Vec3(target.Verts[targetPoly.Verts[1]*3 : targetPoly.Verts[1]*3+3])
		v.Assign(nearestPt)

		// Connection to the landing polygon.
		if idx := allocLink(target); idx != nullLink {
			link := &target.Links[idx]
			link.Ref = ref
			link.Edge = 1
			link.Side = landSide
			link.Bmin = 0
			link.Bmax = 0
			link.Next = targetPoly.FirstLink
			targetPoly.FirstLink = idx
		}

		// Landing polygon back to the connection, if bidirectional.
		if uint32(targetCon.Flags)&offMeshConBidir != 0 {
			if tidx := allocLink(tile); tidx != nullLink {
				landPoly := &tile.Polys[uint16(m.decodeRefPoly(ref))]
				link := &tile.Links[tidx]
				link.Ref = m.polyRefBase(target) | PolyRef(targetCon.Poly)
				link.Edge = 0xff
				if side == -1 {
					link.Side = 0xff
				} else {
					link.Side = uint8(side)
				}
				link.Bmin = 0
				link.Bmax = 0
				link.Next = landPoly.FirstLink
				landPoly.FirstLink = tidx
			}
		}
	}
}

// connectExtLinks creates links from tile's portal edges to the
// matching edges of target. side restricts the work to one portal
// side; -1 connects every side.
func (m *NavMesh) connectExtLinks(tile, target *MeshTile, side int32) {
	if tile == nil {
		return
	}

	for i := int32(0); i < tile.Header.PolyCount; i++ {
		poly := &tile.Polys[i]
		nv := int32(poly.VertCount)
		for j := int32(0); j < nv; j++ {
			// Skip non-portal edges.
			if poly.Neis[j]&extLink == 0 {
				continue
			}
			dir := int32(poly.Neis[j] & 0xff)
			if side != -1 && dir != side {
				continue
			}

			va := tile.Verts[poly.Verts[j]*3:]
			vb := tile.Verts[poly.Verts[(j+1)%nv]*3:]
			var (
				nei  [4]PolyRef
				neia [4 * 2]float32
			)
			nnei := m.findConnectingPolys(va, vb, target, oppositeSide(dir), nei[:], neia[:])

			for k := int32(0); k < nnei; k++ {
				idx := allocLink(tile)
				if idx == nullLink {
					continue
				}
				link := &tile.Links[idx]
				link.Ref = nei[k]
				link.Edge = uint8(j)
				link.Side = uint8(dir)
				link.Next = poly.FirstLink
				poly.FirstLink = idx

				// Compress the portal overlap onto the edge to a byte
				// range.
				if dir == 0 || dir == 4 {
					tmin := (neia[k*2+0] - va[2]) / (vb[2] - va[2])
					tmax := (neia[k*2+1] - va[2]) / (vb[2] - va[2])
					if tmin > tmax {
						tmin, tmax = tmax, tmin
					}
					link.Bmin = uint8(f32.Clamp(tmin, 0, 1) * 255.0)
					link.Bmax = uint8(f32.Clamp(tmax, 0, 1) * 255.0)
				} else if dir == 2 || dir == 6 {
					tmin := (neia[k*2+0] - va[0]) / (vb[0] - va[0])
					tmax := (neia[k*2+1] - va[0]) / (vb[0] - va[0])
					if tmin > tmax {
						tmin, tmax = tmax, tmin
					}
					link.Bmin = uint8(f32.Clamp(tmin, 0, 1) * 255.0)
					link.Bmax = uint8(f32.Clamp(tmax, 0, 1) * 255.0)
				}
			}
		}
	}
}

// findConnectingPolys returns the polygons of tile whose portal edges
// on the given side overlap the segment va-vb, along with the overlap
// interval of each.
func (m *NavMesh) findConnectingPolys(va, vb []float32, tile *MeshTile, side int32, con []PolyRef, conarea []float32) int32 {
	if tile == nil {
		return 0
	}

	var amin, amax [2]float32
	calcSlabEndPoints(va, vb, amin[:], amax[:], side)
	apos := slabCoord(va, side)

	var bmin, bmax [2]float32
	match := extLink | uint16(side)
	var n int32

	base := m.polyRefBase(tile)

	for i := int32(0); i < tile.Header.PolyCount; i++ {
		poly := &tile.Polys[i]
		nv := poly.VertCount
		for j := uint8(0); j < nv; j++ {
			// Only edges pointing at the queried side.
			if poly.Neis[j] != match {
				continue
			}

			idx := poly.Verts[j] * 3
			vc := tile.Verts[idx : idx+3]
			idx = poly.Verts[(j+1)%nv] * 3
			vd := tile.Verts[idx : idx+3]
			bpos := slabCoord(vc, side)

			// Segments are not close enough.
			if math32.Abs(apos-bpos) > 0.01 {
				continue
			}

			calcSlabEndPoints(vc, vd, bmin[:], bmax[:], side)
			if !overlapSlabs(amin[:], amax[:], bmin[:], bmax[:], 0.01, tile.Header.WalkableClimb) {
				continue
			}

			if n < int32(len(con)) {
				conarea[n*2+0] = math32.Max(amin[0], bmin[0])
				conarea[n*2+1] = math32.Min(amax[0], bmax[0])
				con[n] = base | PolyRef(i)
				n++
			}
			break
		}
	}
	return n
}

// unconnectLinks removes every link of tile that points into target.
func (m *NavMesh) unconnectLinks(tile, target *MeshTile) {
	if tile == nil || target == nil {
		return
	}
	targetNum := m.decodeRefTile(PolyRef(m.TileRef(target)))

	for i := int32(0); i < tile.Header.PolyCount; i++ {
		poly := &tile.Polys[i]
		j := poly.FirstLink
		pj := nullLink
		for j != nullLink {
			if m.decodeRefTile(tile.Links[j].Ref) == targetNum {
				nj := tile.Links[j].Next
				if pj == nullLink {
					poly.FirstLink = nj
				} else {
					tile.Links[pj].Next = nj
				}
				freeLink(tile, j)
				j = nj
			} else {
				pj = j
				j = tile.Links[j].Next
			}
		}
	}
}

// calcSlabEndPoints projects the edge va-vb onto the portal axis of the
// given side: bmin/bmax receive (coord-along-portal, y) sorted by the
// portal coordinate.
func calcSlabEndPoints(va, vb d3.Vec3, bmin, bmax []float32, side int32) {
	if side == 0 || side == 4 {
		if va[2] < vb[2] {
			bmin[0], bmin[1] = va[2], va[1]
			bmax[0], bmax[1] = vb[2], vb[1]
		} else {
			bmin[0], bmin[1] = vb[2], vb[1]
			bmax[0], bmax[1] = va[2], va[1]
		}
	} else if side == 2 || side == 6 {
		if va[0] < vb[0] {
			bmin[0], bmin[1] = va[0], va[1]
			bmax[0], bmax[1] = vb[0], vb[1]
		} else {
			bmin[0], bmin[1] = vb[0], vb[1]
			bmax[0], bmax[1] = va[0], va[1]
		}
	}
}

func slabCoord(va d3.Vec3, side int32) float32 {
	if side == 0 || side == 4 {
		return va[0]
	} else if side == 2 || side == 6 {
		return va[2]
	}
	return 0
}

func overlapSlabs(amin, amax, bmin, bmax []float32, px, py float32) bool {
	// Horizontal overlap; the segments are shrunk a little so slabs
	// that only touch at an endpoint don't connect.
	minx := math32.Max(amin[0]+px, bmin[0]+px)
	maxx := math32.Min(amax[0]-px, bmax[0]-px)
	if minx > maxx {
		return false
	}

	// Vertical overlap of the two segments over [minx, maxx].
	ad := (amax[1] - amin[1]) / (amax[0] - amin[0])
	ak := amin[1] - ad*amin[0]
	bd := (bmax[1] - bmin[1]) / (bmax[0] - bmin[0])
	bk := bmin[1] - bd*bmin[0]
	dmin := (bd*minx + bk) - (ad*minx + ak)
	dmax := (bd*maxx + bk) - (ad*maxx + ak)

	// Crossing segments always overlap.
	if dmin*dmax < 0 {
		return true
	}

	// Endpoints within climbing distance.
	thr := math32.Sqr(py * 2)
	return dmin*dmin <= thr || dmax*dmax <= thr
}

// FindNearestPolyInTile returns the polygon of tile nearest to center
// within the given box extents, writing the closest point to nearestPt.
func (m *NavMesh) FindNearestPolyInTile(tile *MeshTile, center, extents, nearestPt d3.Vec3) PolyRef {
	bmin := center.Sub(extents)
	bmax := center.Add(extents)

	var polys [128]PolyRef
	polyCount := m.queryPolygonsInTile(tile, bmin, bmax, polys[:])

	var (
		nearest    PolyRef
		nearestSqr float32 = math.MaxFloat32
	)
	closest := d3.NewVec3()
	for i := int32(0); i < polyCount; i++ {
		ref := polys[i]
		posOverPoly := m.closestPointOnPoly(ref, center, closest)

		// A point directly over a polygon within climb height beats a
		// closer straight-line hit.
		diff := center.Sub(closest)
		var d float32
		if posOverPoly {
			d = math32.Abs(diff[1]) - tile.Header.WalkableClimb
			if d > 0 {
				d = d * d
			} else {
				d = 0
			}
		} else {
			d = diff.LenSqr()
		}

		if d <= nearestSqr {
			nearestPt.Assign(closest)
			nearestSqr = d
			nearest = ref
		}
	}
	return nearest
}

// queryPolygonsInTile collects the polygons of tile overlapping the box
// [qmin, qmax], through the BV-tree when the tile has one.
func (m *NavMesh) queryPolygonsInTile(tile *MeshTile, qmin, qmax d3.Vec3, polys []PolyRef) int32 {
	maxPolys := int32(len(polys))
	base := m.polyRefBase(tile)

	if tile.BvTree != nil {
		tbmin := d3.Vec3(tile.Header.Bmin[:])
		tbmax := d3.Vec3(tile.Header.Bmax[:])
		qfac := tile.Header.BvQuantFactor

		// Clamp the query box to the tile and quantize it, widening to
		// even/odd bounds so truncation can't miss an overlap.
		minx := f32.Clamp(qmin[0], tbmin[0], tbmax[0]) - tbmin[0]
		miny := f32.Clamp(qmin[1], tbmin[1], tbmax[1]) - tbmin[1]
		minz := f32.Clamp(qmin[2], tbmin[2], tbmax[2]) - tbmin[2]
		maxx := f32.Clamp(qmax[0], tbmin[0], tbmax[0]) - tbmin[0]
		maxy := f32.Clamp(qmax[1], tbmin[1], tbmax[1]) - tbmin[1]
		maxz := f32.Clamp(qmax[2], tbmin[2], tbmax[2]) - tbmin[2]
		var bmin, bmax [3]uint16
		bmin[0] = uint16(uint32(qfac*minx) & 0xfffe)
		bmin[1] = uint16(uint32(qfac*miny) & 0xfffe)
		bmin[2] = uint16(uint32(qfac*minz) & 0xfffe)
		bmax[0] = uint16(uint32(qfac*maxx+1) | 1)
		bmax[1] = uint16(uint32(qfac*maxy+1) | 1)
		bmax[2] = uint16(uint32(qfac*maxz+1) | 1)

		// Linear traversal with escape offsets.
		var (
			n       int32
			nodeIdx int32
		)
		endIdx := tile.Header.BvNodeCount
		for nodeIdx < endIdx {
			node := &tile.BvTree[nodeIdx]
			overlap := OverlapQuantBounds(bmin[:], bmax[:], node.Bmin[:], node.Bmax[:])
			isLeaf := node.I >= 0

			if isLeaf && overlap && n < maxPolys {
				polys[n] = base | PolyRef(node.I)
				n++
			}

			if overlap || isLeaf {
				nodeIdx++
			} else {
				nodeIdx += -node.I
			}
		}
		return n
	}

	var n int32
	var bmin, bmax [3]float32
	for i := int32(0); i < tile.Header.PolyCount; i++ {
		p := &tile.Polys[i]
		if p.Type() == polyTypeOffMeshConnection {
			continue
		}
		idx := p.Verts[0] * 3
		v := tile.Verts[idx : idx+3]
		copy(bmin[:], v)
		copy(bmax[:], v)
		for j := uint8(1); j < p.VertCount; j++ {
			idx = p.Verts[j] * 3
			v = tile.Verts[idx : idx+3]
			d3.Vec3Min(bmin[:], v)
			d3.Vec3Max(bmax[:], v)
		}
		if OverlapBounds(qmin, qmax, bmin[:], bmax[:]) && n < maxPolys {
			polys[n] = base | PolyRef(i)
			n++
		}
	}
	return n
}

// closestPointOnPoly writes the point of the polygon closest to pos
// into closest and reports whether pos projects onto the polygon.
func (m *NavMesh) closestPointOnPoly(ref PolyRef, pos, closest d3.Vec3) (posOverPoly bool) {
	tile, poly := m.TileAndPolyByRefUnsafe(ref)

	// Off-mesh connections are a bare segment.
	if poly.Type() == polyTypeOffMeshConnection {
		idx := poly.Verts[0] * 3
		v0 := d3.Vec3(tile.Verts[idx : idx+3])
		idx = poly.Verts[1] * 3
		v1 := d3.Vec3(tile.Verts[idx : idx+3])
		d0 := pos.Dist(v0)
		d1 := pos.Dist(v1)
		closest.Assign(v0.Lerp(v1, d0/(d0+d1)))
		return false
	}

	ip := uint32(m.decodeRefPoly(ref))
	pd := &tile.DetailMeshes[ip]

	// Clamp the point into the polygon's xz projection.
	var (
		verts [VertsPerPolygon * 3]float32
		edged [VertsPerPolygon]float32
		edget [VertsPerPolygon]float32
	)
	nv := poly.VertCount
	for i := uint8(0); i < nv; i++ {
		jdx := poly.Verts[i] * 3
		copy(verts[i*3:], tile.Verts[jdx:jdx+3])
	}

	closest.Assign(pos)
	if !polyEdgeDistances(pos, verts[:], int32(nv), edged[:], edget[:]) {
		// Outside the polygon, clamp to the nearest edge.
		dmin := edged[0]
		var imin uint8
		for i := uint8(1); i < nv; i++ {
			if edged[i] < dmin {
				dmin = edged[i]
				imin = i
			}
		}
		va := d3.Vec3(verts[imin*3 : imin*3+3])
		vidx := ((imin + 1) % nv) * 3
		vb := d3.Vec3(verts[vidx : vidx+3])
		closest.Assign(va.Lerp(vb, edget[imin]))
	} else {
		posOverPoly = true
	}

	// Project the height from the detail triangles.
	for j := uint8(0); j < pd.TriCount; j++ {
		tidx := (pd.TriBase + uint32(j)) * 4
		tri := tile.DetailTris[tidx : tidx+3]
		var v [3]d3.Vec3
		for k := 0; k < 3; k++ {
			if tri[k] < poly.VertCount {
				vidx := poly.Verts[tri[k]] * 3
				v[k] = tile.Verts[vidx : vidx+3]
			} else {
				vidx := (pd.VertBase + uint32(tri[k]-poly.VertCount)) * 3
				v[k] = tile.DetailVerts[vidx : vidx+3]
			}
		}
		if h, ok := triHeight(closest, v[0], v[1], v[2]); ok {
			closest[1] = h
			break
		}
	}
	return posOverPoly
}
