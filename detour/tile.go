package detour

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/arl/aligned"
)

// Encoded sizes of the tile sections. Every section is 4-byte aligned;
// fields inside a section are little-endian regardless of the host, so a
// tile encoded on one machine is readable on any other.
const (
	meshHeaderSize    = 100 // MeshHeader, 21 fields, two float32 triples
	vertEncSize       = 3 * 4
	polyEncSize       = 32 // FirstLink + 6 verts + 6 neis + flags + counts
	linkEncSize       = 12
	polyDetailEncSize = 12 // 10 bytes of fields, padded to alignment
	bvNodeEncSize     = 16
	offMeshConEncSize = 36
)

// tileDataSize returns the size of an encoded tile whose section counts
// are those of h.
func tileDataSize(h *MeshHeader) int32 {
	return int32(meshHeaderSize) +
		vertEncSize*h.VertCount +
		polyEncSize*h.PolyCount +
		linkEncSize*h.MaxLinkCount +
		polyDetailEncSize*h.DetailMeshCount +
		vertEncSize*h.DetailVertCount +
		4*h.DetailTriCount +
		bvNodeEncSize*h.BvNodeCount +
		offMeshConEncSize*h.OffMeshConCount
}

// serialize writes the header to w in encoded form.
func (h *MeshHeader) serialize(w io.Writer) error {
	return aligned.NewWriter(w, 4, binary.LittleEndian).WriteVal(h)
}

// unserialize decodes the header from the head of an encoded tile.
func (h *MeshHeader) unserialize(data []byte) error {
	if len(data) < meshHeaderSize {
		return fmt.Errorf("detour: tile data too short for header: %d bytes", len(data))
	}
	return binary.Read(bytes.NewReader(data[:meshHeaderSize]), binary.LittleEndian, h)
}

// unserialize decodes the tile payload (everything after the header)
// into freshly allocated slices sized by h. The links section is only
// reserved space in the encoded form; the links themselves are rebuilt
// when the tile is added to a mesh.
func (t *MeshTile) unserialize(h *MeshHeader, data []byte) error {
	ar := aligned.NewReader(bytes.NewReader(data), 4, binary.LittleEndian)

	t.Verts = make([]float32, 3*h.VertCount)
	if err := ar.ReadSlice(t.Verts); err != nil {
		return fmt.Errorf("detour: reading tile verts: %w", err)
	}

	t.Polys = make([]Poly, h.PolyCount)
	if err := ar.ReadSlice(t.Polys); err != nil {
		return fmt.Errorf("detour: reading tile polys: %w", err)
	}

	t.Links = make([]Link, h.MaxLinkCount)
	if h.MaxLinkCount > 0 {
		skip := make([]byte, linkEncSize*h.MaxLinkCount)
		if _, err := io.ReadFull(ar, skip); err != nil {
			return fmt.Errorf("detour: reading tile links section: %w", err)
		}
	}

	t.DetailMeshes = make([]PolyDetail, h.DetailMeshCount)
	if err := ar.ReadSlice(t.DetailMeshes); err != nil {
		return fmt.Errorf("detour: reading tile detail meshes: %w", err)
	}

	t.DetailVerts = make([]float32, 3*h.DetailVertCount)
	if err := ar.ReadSlice(t.DetailVerts); err != nil {
		return fmt.Errorf("detour: reading tile detail verts: %w", err)
	}

	t.DetailTris = make([]uint8, 4*h.DetailTriCount)
	if len(t.DetailTris) > 0 {
		if _, err := io.ReadFull(ar, t.DetailTris); err != nil {
			return fmt.Errorf("detour: reading tile detail tris: %w", err)
		}
	}

	t.BvTree = make([]BvNode, h.BvNodeCount)
	if err := ar.ReadSlice(t.BvTree); err != nil {
		return fmt.Errorf("detour: reading tile bvtree: %w", err)
	}

	t.OffMeshCons = make([]OffMeshConnection, h.OffMeshConCount)
	if err := ar.ReadSlice(t.OffMeshCons); err != nil {
		return fmt.Errorf("detour: reading tile off-mesh connections: %w", err)
	}
	return nil
}

// Magic/version pair stamped at the head of an encoded mesh set stream,
// so a reader can reject data it doesn't understand before touching the
// rest.
type navMeshSetHeader struct {
	Magic    int32
	Version  int32
	NumTiles int32
	Params   NavMeshParams
}

type navMeshTileHeader struct {
	TileRef  TileRef
	DataSize int32
}

// Encode writes the whole navigation mesh to w: a set header followed by
// every live tile's reference and encoded data. Decode reads the same
// stream back.
func (m *NavMesh) Encode(w io.Writer) error {
	hdr := navMeshSetHeader{
		Magic:   navMeshSetMagic,
		Version: navMeshSetVersion,
		Params:  m.Params,
	}
	for i := int32(0); i < m.MaxTiles; i++ {
		if m.Tiles[i].DataSize > 0 {
			hdr.NumTiles++
		}
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("detour: writing mesh set header: %w", err)
	}

	for i := int32(0); i < m.MaxTiles; i++ {
		tile := &m.Tiles[i]
		if tile.DataSize == 0 {
			continue
		}
		th := navMeshTileHeader{
			TileRef:  m.TileRef(tile),
			DataSize: tile.DataSize,
		}
		if err := binary.Write(w, binary.LittleEndian, &th); err != nil {
			return fmt.Errorf("detour: writing tile header: %w", err)
		}
		if _, err := w.Write(tile.Data); err != nil {
			return fmt.Errorf("detour: writing tile data: %w", err)
		}
	}
	return nil
}

// Decode reads an encoded navigation mesh set from r, as written by
// Encode, and returns the reconstructed mesh.
func Decode(r io.Reader) (*NavMesh, error) {
	var hdr navMeshSetHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Magic != navMeshSetMagic {
		return nil, fmt.Errorf("detour: wrong mesh set magic: %x", hdr.Magic)
	}
	if hdr.Version != navMeshSetVersion {
		return nil, fmt.Errorf("detour: wrong mesh set version: %d", hdr.Version)
	}

	var mesh NavMesh
	if status := mesh.Init(&hdr.Params); StatusFailed(status) {
		return nil, fmt.Errorf("detour: initializing mesh: %w", status)
	}

	for i := int32(0); i < hdr.NumTiles; i++ {
		var th navMeshTileHeader
		if err := binary.Read(r, binary.LittleEndian, &th); err != nil {
			return nil, err
		}
		if th.TileRef == 0 || th.DataSize == 0 {
			break
		}

		data := make([]byte, th.DataSize)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		if status, _ := mesh.AddTile(data, th.TileRef); StatusFailed(status) {
			return nil, fmt.Errorf("detour: adding tile %d: %w", i, status)
		}
	}
	return &mesh, nil
}
