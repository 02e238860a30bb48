package f3dzex

import (
	"github.com/pkg/errors"

	"z64import/internal/diag"
	"z64import/internal/texel"
)

// command is one 8-byte display-list instruction.
type command struct {
	W0, W1 uint32
}

func (c command) Op() uint8 {
	return uint8(c.W0 >> 24)
}

// at returns byte n (0..7) of the instruction.
func (c command) at(n int) uint8 {
	if n < 4 {
		return uint8(c.W0 >> (8 * (3 - n)))
	}
	return uint8(c.W1 >> (8 * (7 - n)))
}

// handler runs one opcode at offset i. done ends the current list.
type handler func(f *frame, i int, c command) (done bool, err error)

var handlers [256]handler

func init() {
	ignore := func(*frame, int, command) (bool, error) { return false, nil }
	for _, op := range []uint8{0x00, 0x03, 0x04, 0xE2, 0xE3, 0xE6, 0xE7, 0xE8, 0xF3, 0xFC} {
		handlers[op] = ignore
	}
	for _, op := range []uint8{0xF4, 0xE4, 0xFE, 0xFF} {
		handlers[op] = opDebug
	}
	handlers[0x01] = opVertex
	handlers[0x02] = opModifyVertex
	handlers[0x05] = opTriangles
	handlers[0x06] = opTriangles
	handlers[0xD7] = opTexture
	handlers[0xD8] = opPopMatrix
	handlers[0xD9] = opGeometryMode
	handlers[0xDA] = opMatrix
	handlers[0xDE] = opDisplayList
	handlers[0xDF] = opEndDisplayList
	handlers[0xE1] = opBranch
	handlers[0xF0] = opLoadTLUT
	handlers[0xF2] = opSetTileSize
	handlers[0xF5] = opSetTile
	handlers[0xFA] = opPrimColor
	handlers[0xFB] = opEnvColor
	handlers[0xFD] = opSetTextureImage
}

// vtxCmd is the operand of 0x01.
type vtxCmd struct {
	count int
	first int
	addr  uint32
}

func decodeVtx(c command) vtxCmd {
	count := int(c.W0>>12) & 0xFF
	return vtxCmd{
		count: count,
		first: int(c.W0&0xFF)>>1 - count,
		addr:  c.W1,
	}
}

func opVertex(f *frame, i int, c command) (bool, error) {
	ctx := f.ctx
	v := decodeVtx(c)
	if v.count == 0 {
		return false, nil
	}
	if !ctx.Segments.ValidRange(v.addr, VertexSize*v.count) {
		ctx.Log.Debugf("Vertex range 0x%08X+%d at 0x%X out of range", v.addr, VertexSize*v.count, i)
		return false, nil
	}
	for j := 0; j < v.count; j++ {
		slot := v.first + j
		if slot < 0 || slot >= VertexSlots {
			if !f.params.Lenient {
				ctx.Log.Warnf("Vertex slot %d out of range in 0x01 at 0x%X", slot, i)
			}
			continue
		}
		vtx, err := readVertex(ctx.Segments, v.addr+uint32(VertexSize*j), ctx.Options.Scale)
		if err != nil {
			ctx.Log.Warnf("Invalid segmented offset 0x%X for vertex", v.addr+uint32(VertexSize*j))
			continue
		}
		if f.h != nil {
			top := f.stack.top()
			if top.Kind != EntryRoot {
				vtx.Limb = top.Limb
				vtx.Pos = vtx.Pos.Add(top.Pos)
			}
		}
		ctx.vbuf[slot] = vtx
	}
	return false, nil
}

// modifyCmd is the operand of 0x02.
type modifyCmd struct {
	where uint8
	slot  int
	value uint32
}

const (
	modifyNormalColor = 0x10
	modifyTexCoord    = 0x14
)

func decodeModify(c command) modifyCmd {
	return modifyCmd{
		where: c.at(1),
		slot:  int(c.at(2)&0x0F)<<3 | int(c.at(3)>>1),
		value: c.W1,
	}
}

func opModifyVertex(f *frame, i int, c command) (bool, error) {
	m := decodeModify(c)
	if m.slot >= VertexSlots {
		if !f.params.Lenient {
			f.ctx.Log.Errorf("Bad vertex indices in 0x02 at 0x%X %08X %08X", i, c.W0, c.W1)
		}
		return false, nil
	}
	v := &f.ctx.vbuf[m.slot]
	b := [4]uint8{uint8(m.value >> 24), uint8(m.value >> 16), uint8(m.value >> 8), uint8(m.value)}
	switch m.where {
	case modifyNormalColor:
		v.Normal = decodeNormal([3]uint8{b[0], b[1], b[2]})
		v.Color = decodeColor(b)
	case modifyTexCoord:
		v.UV = [2]int16{int16(m.value >> 16), int16(m.value)}
	}
	return false, nil
}

// decodeTris returns the vertex slots of the one or two triangles of a
// 0x05/0x06 command.
func decodeTris(c command) [][3]int {
	tri := func(o int) [3]int {
		return [3]int{int(c.at(o+1) >> 1), int(c.at(o+2) >> 1), int(c.at(o+3) >> 1)}
	}
	if c.Op() == 0x06 {
		return [][3]int{tri(0), tri(4)}
	}
	return [][3]int{tri(0)}
}

func opTriangles(f *frame, i int, c command) (bool, error) {
	ctx := f.ctx
	if f.hasTex {
		f.material = ctx.material()
		f.hasTex = false
	}
	if !ctx.Options.ImportTextures {
		f.material = nil
	}

	mark := f.mesh.mark()
	for _, slots := range decodeTris(c) {
		if err := f.addTriangle(slots); err != nil {
			if !f.params.Lenient {
				ctx.Log.Errorf("Failed to import vertices and/or their data from 0x%X: %v", i, err)
			}
			f.mesh.rollback(mark)
			break
		}
	}
	return false, nil
}

// addTriangle appends one triangle with its per-loop attributes. A
// triangle with coincident corners is dropped.
func (f *frame) addTriangle(slots [3]int) error {
	ctx, m := f.ctx, f.mesh
	var verts [3]*Vertex
	for j, s := range slots {
		if s >= VertexSlots {
			return errors.Wrapf(diag.ErrOutOfRange, "vertex slot %d", s)
		}
		verts[j] = &ctx.vbuf[s]
	}
	if verts[0].Pos == verts[1].Pos || verts[1].Pos == verts[2].Pos || verts[0].Pos == verts[2].Pos {
		if !f.params.Lenient {
			ctx.Log.Warnf("Found empty tri! %v", slots)
		}
		return nil
	}

	in := CombinerInputs{
		Prim: ctx.Options.EnablePrimColor,
		Env:  ctx.Options.EnableEnvColor,
		Mode: ctx.Options.VertexMode,
	}
	tile := &ctx.tiles[0]
	var tri [3]int
	for j, v := range verts {
		limb := -1
		if f.h != nil {
			limb = v.Limb
		}
		tri[j] = m.vertex(v.Pos, limb)
		m.UVs = append(m.UVs, tile.UV(v.UV[0], v.UV[1]))
		m.Colors = append(m.Colors, ctx.Combiner.Color(in, ctx.Geometry, v.Color, v.shade()))
		m.Normals = append(m.Normals, v.Normal)
	}
	m.Tris = append(m.Tris, tri)
	m.Smooth = append(m.Smooth, ctx.Geometry.Smooth())
	m.Materials = append(m.Materials, f.material)
	return nil
}

func opTexture(f *frame, i int, c command) (bool, error) {
	f.ctx.Log.Debugf("0xD7 G_TEXTURE used, but unimplemented")
	return false, nil
}

func opPopMatrix(f *frame, i int, c command) (bool, error) {
	if !f.ctx.Options.EnableMatrices {
		return false, nil
	}
	if f.h != nil {
		f.stack.pop()
	}
	return false, nil
}

// Segment holding per-limb matrices referenced by 0xDA.
const matrixSegment = 0x0D

func opMatrix(f *frame, i int, c command) (bool, error) {
	ctx := f.ctx
	if !ctx.Options.EnableMatrices {
		return false, nil
	}
	ctx.Log.Debugf("0xDA G_MTX used, but implementation may be faulty")
	if f.h == nil {
		return false, nil
	}
	if c.at(4) != matrixSegment {
		ctx.Log.Errorf("unknown limb %08X %08X", c.W0, c.W1)
		return false, nil
	}
	f.stack.applyMatrix(f.h, c.at(3), c.W1)
	return false, nil
}

func opGeometryMode(f *frame, i int, c command) (bool, error) {
	ctx := f.ctx
	ctx.Geometry = ctx.Geometry.Apply(^c.W0&0x00FFFFFF, c.W1)
	ctx.Log.Debugf("Geometry mode flags as of 0x%X: %v", i, ctx.Geometry)
	return false, nil
}

func opDisplayList(f *frame, i int, c command) (bool, error) {
	ctx := f.ctx
	ctx.Log.Tracef("G_DE at 0x%X %08X%08X", f.addr&0xFF000000|uint32(i), c.W0, c.W1)
	if ctx.Segments.Valid(c.W1) {
		f.call(c.W1)
	}
	if c.at(1) != 0 {
		f.finish(i)
		return true, nil
	}
	return false, nil
}

func opEndDisplayList(f *frame, i int, c command) (bool, error) {
	f.ctx.Log.Tracef("G_ENDDL at 0x%X %08X%08X", f.addr&0xFF000000|uint32(i), c.W0, c.W1)
	f.finish(i)
	return true, nil
}

// opBranch follows an LOD list.
func opBranch(f *frame, i int, c command) (bool, error) {
	if !f.ctx.Segments.Valid(c.W1) {
		f.ctx.Log.Warnf("Invalid 0xE1 offset 0x%04X, skipping", c.W1)
		return false, nil
	}
	f.call(c.W1)
	return false, nil
}

func opLoadTLUT(f *frame, i int, c command) (bool, error) {
	f.ctx.Log.Debugf("0xF0 palette load of %d entries", int((c.W1&0x00FFF000)>>13)+1)
	return false, nil
}

func opSetTileSize(f *frame, i int, c command) (bool, error) {
	ctx := f.ctx
	t := &ctx.tiles[ctx.curTile]
	t.Rect = [4]int{
		int(c.W0&0x00FFF000) >> 14,
		int(c.W0&0x00000FFF) >> 2,
		int(c.W1&0x00FFF000) >> 14,
		int(c.W1&0x00000FFF) >> 2,
	}
	t.CalculateSize(ctx.Options.ReplicateMirror, ctx.Log)
	return false, nil
}

// setTileCmd is the operand of 0xF5.
type setTileCmd struct {
	format   texel.Format
	size     texel.Size
	lineSize int
	cms      [2]uint32
	mask     [2]int
	shift    [2]int
}

func decodeSetTile(c command) setTileCmd {
	return setTileCmd{
		format:   texel.Format((c.W0 >> 21) & 0x7),
		size:     texel.Size((c.W0 >> 19) & 0x3),
		lineSize: int(c.W0>>9) & 0x1FF,
		cms:      [2]uint32{(c.W1 >> 8) & 0x3, (c.W1 >> 18) & 0x3},
		mask:     [2]int{int(c.W1>>4) & 0xF, int(c.W1>>14) & 0xF},
		shift:    [2]int{int(c.W1) & 0xF, int(c.W1>>10) & 0xF},
	}
}

func opSetTile(f *frame, i int, c command) (bool, error) {
	ctx := f.ctx
	s := decodeSetTile(c)
	t := &ctx.tiles[ctx.curTile]
	t.Format, t.Size, t.LineSize = s.format, s.size, s.lineSize
	for k := 0; k < 2; k++ {
		t.Mirror[k] = s.cms[k]&1 != 0
		t.Wrap[k] = s.cms[k]&2 == 0
	}
	t.Mask = s.mask
	t.TShift = s.shift
	return false, nil
}

func opPrimColor(f *frame, i int, c command) (bool, error) {
	ctx := f.ctx
	ctx.Combiner.Prim = wordColor(c.W1)
	ctx.Log.Debugf("new primColor -> %v", ctx.Combiner.Prim)
	return false, nil
}

func opEnvColor(f *frame, i int, c command) (bool, error) {
	ctx := f.ctx
	ctx.Combiner.Env = wordColor(c.W1)
	ctx.Log.Debugf("new envColor -> %v", ctx.Combiner.Env)
	if ctx.Options.InvertEnvColor {
		for k := range ctx.Combiner.Env {
			ctx.Combiner.Env[k] = 1 - ctx.Combiner.Env[k]
		}
	}
	return false, nil
}

// opSetTextureImage selects tile 1 when it directly follows a tile-size
// command, and loads a palette address instead of texture data when the
// next command is a TLUT sync.
func opSetTextureImage(f *frame, i int, c command) (bool, error) {
	ctx := f.ctx
	ctx.curTile = 0
	if i >= 8 && f.data[i-8] == 0xF2 {
		ctx.curTile = 1
	}
	if i+8 < len(f.data) && f.data[i+8] == 0xE8 {
		ctx.tiles[0].Palette = c.W1
	} else {
		ctx.tiles[ctx.curTile].Data = c.W1
	}
	f.hasTex = true
	return false, nil
}

func opDebug(f *frame, i int, c command) (bool, error) {
	f.ctx.Log.Debugf("0x%X %08X : %08X", c.Op(), c.W0, c.W1)
	return false, nil
}
