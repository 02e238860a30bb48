package f3dzex

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"z64import/internal/diag"
	"z64import/internal/segment"
	"z64import/internal/skeleton"
	"z64import/internal/texel"
)

// DefaultMaxDepth caps display-list call nesting.
const DefaultMaxDepth = 64

// Options are the interpreter settings that stay fixed for a run.
type Options struct {
	Scale           float32
	VertexMode      VertexMode
	EnableMatrices  bool
	EnablePrimColor bool
	EnableEnvColor  bool
	InvertEnvColor  bool
	ReplicateMirror bool
	ImportTextures  bool
	MirrorTags      bool
	ClampTags       bool
	Prefix          string
	MaxDepth        int
}

// DefaultOptions mirrors the importer's defaults.
func DefaultOptions() Options {
	return Options{
		Scale:           0.01,
		VertexMode:      VertexAuto,
		EnableMatrices:  true,
		EnablePrimColor: true,
		EnableEnvColor:  false,
		ReplicateMirror: true,
		ImportTextures:  true,
		MirrorTags:      false,
		ClampTags:       false,
		MaxDepth:        DefaultMaxDepth,
	}
}

// Sink receives every non-empty mesh as its display list ends.
type Sink interface {
	Mesh(m *Mesh)
}

// Collector is a Sink that keeps meshes in emission order.
type Collector struct {
	Meshes []*Mesh
}

func (c *Collector) Mesh(m *Mesh) {
	c.Meshes = append(c.Meshes, m)
}

// BuildParams are the per-call settings of Build.
type BuildParams struct {
	// NameFormat wraps the "me_XXXXXXXX" mesh name; "%s" when empty.
	NameFormat      string
	SkipAlreadyRead bool
	Lenient         bool
}

// Context is the interpreter state shared by every display list of one
// import: vertex buffer, tiles, combiner, geometry mode, already-read
// ledger and material cache. It is not safe for concurrent use.
type Context struct {
	Segments *segment.Table
	Options  Options
	Log      diag.Logger
	Sink     Sink

	// UseTransparency marks materials created from now on as translucent.
	UseTransparency bool
	Combiner        Combiner
	Geometry        GeometryMode
	Ledger          Ledger

	vbuf    [VertexSlots]Vertex
	tiles   [2]texel.Tile
	curTile int

	textures  *texel.Cache
	materials map[uint32]*Material
	matOrder  []*Material
}

// NewContext returns a context over segs. A nil log discards.
func NewContext(segs *segment.Table, o Options, sink Sink, log diag.Logger) *Context {
	if log == nil {
		log = diag.Discard
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	c := &Context{
		Segments:  segs,
		Options:   o,
		Log:       log.Named("f3dzex"),
		Sink:      sink,
		textures:  texel.NewCache(),
		materials: make(map[uint32]*Material),
	}
	for i := range c.vbuf {
		c.vbuf[i].Limb = -1
	}
	c.tiles[0], c.tiles[1] = texel.NewTile(), texel.NewTile()
	c.Combiner.Reset()
	return c
}

// ResetCombiner restores the primitive and environment colors to white.
func (c *Context) ResetCombiner() {
	c.Combiner.Reset()
}

// Materials returns every material created so far, in creation order.
func (c *Context) Materials() []*Material {
	return c.matOrder
}

// Textures returns every decoded texture, in decode order.
func (c *Context) Textures() []*texel.Image {
	return c.textures.Images()
}

// Tile returns a copy of tile descriptor i.
func (c *Context) Tile(i int) texel.Tile {
	return c.tiles[i]
}

// Build interprets the display list at addr. With a hierarchy, vertices
// are bound to limb (and to whatever 0xDA later selects). Decoding stops at
// 0xDF, at 0xDE with a nonzero flag, or at the end of the segment (or of
// the unread region when SkipAlreadyRead is set).
func (c *Context) Build(addr uint32, h *skeleton.Hierarchy, limb int, p BuildParams) error {
	return c.build(addr, h, limb, p, 0)
}

// frame is the state of one display list being interpreted.
type frame struct {
	ctx    *Context
	h      *skeleton.Hierarchy
	limb   int
	params BuildParams
	depth  int

	addr       uint32
	seg        int
	start, end int
	data       []byte

	mesh     *Mesh
	stack    matrixStack
	hasTex   bool
	material *Material
}

func (c *Context) build(addr uint32, h *skeleton.Hierarchy, limb int, p BuildParams, depth int) error {
	if depth > c.Options.MaxDepth {
		return errors.Wrapf(diag.ErrTruncatedStream, "display list 0x%08X nested deeper than %d", addr, c.Options.MaxDepth)
	}
	seg, start := segment.Split(addr)
	data := c.Segments.Bytes(seg)
	end := len(data)
	if p.SkipAlreadyRead {
		var skip bool
		c.Log.Tracef("is 0x%X in %v ?", start, c.Ledger.Spans(seg))
		if end, skip = c.Ledger.Clip(seg, start, end); skip {
			c.Log.Debugf("Skipping already read dlist at 0x%X", start)
			return nil
		}
		if end < len(data) {
			c.Log.Debugf("Shortening dlist to end at most at 0x%X, at which point it was read already", end)
		}
	}

	f := &frame{
		ctx: c, h: h, limb: limb, params: p, depth: depth,
		addr: addr, seg: seg, start: start, end: end, data: data,
		mesh:  newMesh(),
		stack: newMatrixStack(h, limb),
	}

	c.Log.Debugf("Reading dlists from 0x%08X", addr)
	for i := start; i+8 <= end; i += 8 {
		cmd := command{
			W0: binary.BigEndian.Uint32(data[i:]),
			W1: binary.BigEndian.Uint32(data[i+4:]),
		}
		op := handlers[cmd.Op()]
		if op == nil {
			c.Log.Warnf("Skipped (unimplemented) opcode 0x%02X", cmd.Op())
			continue
		}
		done, err := op(f, i, cmd)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	c.Log.Warnf("Reached end of dlist started at 0x%X", start)
	f.finish(end)
	return nil
}

// call interprets a nested list with the caller's hierarchy and root limb.
// Leniency does not carry over. A failed nested list is logged and the
// caller carries on with its own instructions.
func (f *frame) call(addr uint32) {
	p := f.params
	p.Lenient = false
	if err := f.ctx.build(addr, f.h, f.limb, p, f.depth+1); err != nil {
		f.ctx.Log.Errorf("Display list 0x%08X called from 0x%08X: %v", addr, f.addr, err)
	}
}

// finish emits the mesh and records [start, at] as read.
func (f *frame) finish(at int) {
	f.emit()
	f.ctx.Ledger.Record(f.seg, f.start, at)
}

func (f *frame) emit() {
	c, m := f.ctx, f.mesh
	if len(m.Tris) == 0 {
		c.Log.Tracef("Skipping empty mesh %08X", f.addr)
		if len(m.Verts) > 0 {
			c.Log.Warnf("Discarding unused vertices, no faces")
		}
		return
	}
	format := f.params.NameFormat
	if format == "" {
		format = "%s"
	}
	m.Name = c.Options.Prefix + fmt.Sprintf(format, fmt.Sprintf("me_%08X", f.addr))
	m.Offset = f.addr
	m.Hierarchy = f.h
	m.UseNormals = c.Options.VertexMode.usesNormals(c.Geometry)
	c.Log.Tracef("Creating mesh %08X", f.addr)
	if c.Sink != nil {
		c.Sink.Mesh(m)
	}
}

// material returns the material for the texture selected by tile 0,
// decoding it on first use.
func (c *Context) material() *Material {
	tile := c.tiles[0]
	if m, ok := c.materials[tile.Data]; ok {
		return m
	}
	o := c.Options
	name := tile.TextureName(texel.NameOptions{
		Prefix:          o.Prefix,
		ReplicateMirror: o.ReplicateMirror,
		MirrorTags:      o.MirrorTags,
		ClampTags:       o.ClampTags,
	})
	img, err := c.textures.Resolve(name, func() (*texel.Image, error) {
		return texel.Decode(&tile, c.Segments, texel.Options{ReplicateMirror: o.ReplicateMirror})
	})
	if err != nil {
		c.Log.Errorf("Texture %s (%dx%d) failed to decode, using fallback: %v", name, tile.RDims[0], tile.RDims[1], err)
	}
	m := &Material{
		Name:        fmt.Sprintf("%smtl_%08X", o.Prefix, tile.Data),
		Texture:     img,
		Wrap:        tile.Wrap,
		Mirror:      tile.Mirror,
		Transparent: c.UseTransparency,
	}
	c.materials[tile.Data] = m
	c.matOrder = append(c.matOrder, m)
	return m
}
