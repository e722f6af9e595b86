package recast

// Defines the number of bits allocated to a span's smin/smax fields.
const (
	SpanHeightBits uint  = 16
	SpanMaxHeight  int32 = (1 << SpanHeightBits) - 1
	// SpansPerPool is the number of spans allocated per span pool page.
	SpansPerPool int32 = 2048
)

// rcSpan is a vertical interval of solid space within a single xz column of
// a Heightfield. Spans are allocated from the heightfield's pool and chained
// in ascending smin order.
type rcSpan struct {
	smin uint16
	smax uint16
	area uint8
	next *rcSpan
}

// rcSpanPool is a fixed-size arena page of spans; pages chain together as
// the heightfield grows.
type rcSpanPool struct {
	next  *rcSpanPool
	items [SpansPerPool]rcSpan
}

// Heightfield is a dynamic voxel heightfield: one column of linked spans per
// xz cell. It owns its span storage; releasing the heightfield releases
// every span allocated from it.
type Heightfield struct {
	Width    int32       // cells along the x-axis
	Height   int32       // cells along the z-axis
	BMin     [3]float32  // world-space AABB min
	BMax     [3]float32  // world-space AABB max
	Cs       float32     // xz cell size
	Ch       float32     // y cell height
	Spans    []*rcSpan   // width*height span-list heads
	Pools    *rcSpanPool // span pool pages, most recent first
	Freelist *rcSpan     // head of the free span list
}

func NewHeightfield() *Heightfield {
	return &Heightfield{}
}

// Create allocates the column array for a width x height heightfield over
// the given world bounds. See Config for parameter units.
func (hf *Heightfield) Create(ctx *BuildContext, width, height int32,
	bmin, bmax []float32, cs, ch float32) bool {
	hf.Width = width
	hf.Height = height
	copy(hf.BMin[:], bmin)
	copy(hf.BMax[:], bmax)
	hf.Cs = cs
	hf.Ch = ch
	hf.Spans = make([]*rcSpan, hf.Width*hf.Height)
	return len(hf.Spans) > 0
}

func (hf *Heightfield) allocSpan() *rcSpan {
	if hf.Freelist == nil || hf.Freelist.next == nil {
		pool := &rcSpanPool{}
		pool.next = hf.Pools
		hf.Pools = pool

		freelist := hf.Freelist
		var it *rcSpan
		for i := len(pool.items) - 1; i >= 0; i-- {
			it = &pool.items[i]
			it.next = freelist
			freelist = it
		}
		hf.Freelist = it
	}

	it := hf.Freelist
	hf.Freelist = hf.Freelist.next
	return it
}

func (hf *Heightfield) freeSpan(ptr *rcSpan) {
	if ptr == nil {
		return
	}
	ptr.next = hf.Freelist
	hf.Freelist = ptr
}

// addSpan inserts [smin,smax) with the given area id into column (x,y),
// merging with any overlapping or touching span. Where the merged top lies
// within flagMergeThr of a merged span's top, the larger area id is kept.
func (hf *Heightfield) addSpan(x, y int32, smin, smax uint16,
	area uint8, flagMergeThr int32) bool {

	idx := x + y*hf.Width
	s := hf.allocSpan()
	if s == nil {
		return false
	}
	s.smin = smin
	s.smax = smax
	s.area = area
	s.next = nil

	if hf.Spans[idx] == nil {
		hf.Spans[idx] = s
		return true
	}
	var prev *rcSpan
	cur := hf.Spans[idx]

	for cur != nil {
		if cur.smin > s.smax {
			break
		} else if cur.smax < s.smin {
			prev = cur
			cur = cur.next
		} else {
			if cur.smin < s.smin {
				s.smin = cur.smin
			}
			if cur.smax > s.smax {
				s.smax = cur.smax
			}

			mergeFlags := int32(s.smax) - int32(cur.smax)
			if mergeFlags < 0 {
				mergeFlags = -mergeFlags
			}
			if mergeFlags <= flagMergeThr {
				if cur.area > s.area {
					s.area = cur.area
				}
			}

			next := cur.next
			hf.freeSpan(cur)
			if prev != nil {
				prev.next = next
			} else {
				hf.Spans[idx] = next
			}
			cur = next
		}
	}

	if prev != nil {
		s.next = prev.next
		prev.next = s
	} else {
		s.next = hf.Spans[idx]
		hf.Spans[idx] = s
	}

	return true
}

// spanCount returns the number of walkable (non-null-area) spans in the
// heightfield; used to size the compact heightfield's span array.
func (hf *Heightfield) spanCount() int32 {
	var n int32
	for i := int32(0); i < hf.Width*hf.Height; i++ {
		for s := hf.Spans[i]; s != nil; s = s.next {
			if s.area != NullArea {
				n++
			}
		}
	}
	return n
}

// CompactCell indexes into a CompactHeightfield's flat span array: the
// spans belonging to one xz column run [Index, Index+Count).
type CompactCell struct {
	Index uint32
	Count uint8
}

// CompactSpan is a walkable interval within a compact heightfield column,
// plus its 4-directional neighbor connectivity packed 6 bits per direction.
type CompactSpan struct {
	Y   uint16 // base of the span, measured from the heightfield's floor
	Reg uint16 // region id, 0 if unassigned
	con uint32 // packed per-direction neighbor layer offsets
	H   uint8  // vertical clearance above Y
}

// CompactHeightfield is a column-major reindexing of a Heightfield's
// walkable spans, with cached neighbor connectivity, per-span area ids and
// (once built) a boundary distance field and region assignment.
type CompactHeightfield struct {
	Width          int32
	Height         int32
	SpanCount      int32
	WalkableHeight int32
	WalkableClimb  int32
	BorderSize     int32
	MaxDistance    uint16
	MaxRegions     uint16
	BMin           [3]float32
	BMax           [3]float32
	Cs             float32
	Ch             float32
	Cells          []CompactCell
	Spans          []CompactSpan
	Dist           []uint16
	Areas          []uint8
}

// BuildCompactHeightfield reindexes the walkable spans of hf into chf, one
// compact span per solid span whose area is not NullArea, and computes
// the 4-directional neighbor connections between them.
//
// A span connects to a neighbor when their vertical overlap is at least
// walkableHeight and their floor heights differ by at most walkableClimb.
// Connections that would require a layer offset beyond the 6-bit field
// (NotConnected - 1) are dropped and logged.
func BuildCompactHeightfield(ctx *BuildContext, walkableHeight, walkableClimb int32,
	hf *Heightfield, chf *CompactHeightfield) bool {

	ctx.StartTimer(TimerBuildCompactHeightfield)
	defer ctx.StopTimer(TimerBuildCompactHeightfield)

	w := hf.Width
	h := hf.Height
	spanCount := hf.spanCount()

	chf.Width = w
	chf.Height = h
	chf.SpanCount = spanCount
	chf.WalkableHeight = walkableHeight
	chf.WalkableClimb = walkableClimb
	chf.MaxRegions = 0
	chf.BMin = hf.BMin
	chf.BMax = hf.BMax
	chf.BMax[1] += float32(walkableHeight) * hf.Ch
	chf.Cs = hf.Cs
	chf.Ch = hf.Ch

	chf.Cells = make([]CompactCell, w*h)
	chf.Spans = make([]CompactSpan, spanCount)
	chf.Areas = make([]uint8, spanCount)
	for i := range chf.Areas {
		chf.Areas[i] = NullArea
	}

	const maxHeight = 0xffff

	idx := int32(0)
	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			s := hf.Spans[x+y*w]
			if s == nil {
				continue
			}
			c := &chf.Cells[x+y*w]
			c.Index = uint32(idx)
			c.Count = 0
			for s != nil {
				if s.area != NullArea {
					bot := int32(s.smax)
					top := int32(maxHeight)
					if s.next != nil {
						top = int32(s.next.smin)
					}
					chf.Spans[idx].Y = uint16(iClamp(bot, 0, 0xffff))
					chf.Spans[idx].H = uint8(iClamp(top-bot, 0, 0xff))
					chf.Areas[idx] = s.area
					idx++
					c.Count++
				}
				s = s.next
			}
		}
	}

	maxLayers := NotConnected - 1
	tooHighNeighbour := int32(0)

	for y := int32(0); y < h; y++ {
		for x := int32(0); x < w; x++ {
			c := &chf.Cells[x+y*w]
			for i, ni := int32(c.Index), int32(c.Index)+int32(c.Count); i < ni; i++ {
				s := &chf.Spans[i]

				for dir := int32(0); dir < 4; dir++ {
					SetCon(s, dir, NotConnected)
					nx := x + GetDirOffsetX(dir)
					ny := y + GetDirOffsetY(dir)
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}

					nc := &chf.Cells[nx+ny*w]
					for k, nk := int32(nc.Index), int32(nc.Index)+int32(nc.Count); k < nk; k++ {
						ns := &chf.Spans[k]
						bot := iMax(int32(s.Y), int32(ns.Y))
						top := iMin(int32(s.Y)+int32(s.H), int32(ns.Y)+int32(ns.H))
						if (top-bot) >= walkableHeight && iAbs(int32(ns.Y)-int32(s.Y)) <= walkableClimb {
							lidx := k - int32(nc.Index)
							if lidx < 0 || lidx > maxLayers {
								tooHighNeighbour = iMax(tooHighNeighbour, lidx)
								continue
							}
							SetCon(s, dir, lidx)
							break
						}
					}
				}
			}
		}
	}

	if tooHighNeighbour > maxLayers {
		ctx.Errorf("BuildCompactHeightfield: heightfield has too many layers %d (max: %d)", tooHighNeighbour, maxLayers)
	}

	return true
}

func iClamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
