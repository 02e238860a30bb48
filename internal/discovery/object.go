package discovery

import (
	"fmt"

	"z64import/internal/anim"
	"z64import/internal/f3dzex"
	"z64import/internal/segment"
	"z64import/internal/skeleton"
)

// ImportObject imports segment 0x06 as an object: located hierarchies and
// their limb display lists, the explicit offsets in lists, animations when
// enabled, then the heuristic scan selected by the strategy.
func (im *Importer) ImportObject(lists []uint32) *Result {
	log := im.log.Named("object")

	log.Infof("Locating hierarchies...")
	for _, addr := range skeleton.Locate(im.segs.Bytes(segment.Object)) {
		log.Infof("    hierarchy found at 0x%08X", addr)
		h, err := skeleton.Parse(im.segs, addr, skeleton.Options{Scale: im.opts.Scale, Prefix: im.opts.Prefix}, log)
		if err != nil {
			log.Warnf("Skipping hierarchy at 0x%08X: %v", addr, err)
			continue
		}
		im.res.Hierarchies = append(im.res.Hierarchies, h)
	}

	if len(lists) != 0 {
		log.Infof("Importing display lists defined in displaylists.txt")
	}
	for _, addr := range lists {
		log.Infof("Importing display list 0x%08X (from displaylists.txt)", addr)
		im.build(addr, nil, 0, f3dzex.BuildParams{})
	}

	for _, h := range im.res.Hierarchies {
		log.Infof("Building hierarchy '%s'...", h.Name)
		for i, l := range h.Limbs {
			switch {
			case l.Near == 0:
				log.Infof("    0x%02X : n/a", i)
			case !im.segs.Valid(l.Near):
				log.Infof("    0x%02X : out of range", i)
			default:
				log.Infof("    0x%02X : building display lists...", i)
				im.ctx.ResetCombiner()
				im.build(l.Near, h, i, f3dzex.BuildParams{})
			}
		}
	}

	if len(im.res.Hierarchies) > 0 {
		if im.opts.LoadAnimations {
			im.importAnimations()
		} else {
			log.Infof("    Load anims OFF.")
		}
	}

	switch im.opts.Strategy {
	case Bruteforce, TryEverything:
		im.Scan(segment.Object, false)
	case Smart:
		im.Scan(segment.Object, true)
	}
	return &im.res
}

// build runs the interpreter and isolates its failure to one list.
func (im *Importer) build(addr uint32, h *skeleton.Hierarchy, limb int, p f3dzex.BuildParams) {
	if err := im.ctx.Build(addr, h, limb, p); err != nil {
		im.log.Errorf("Display list 0x%08X: %v", addr, err)
	}
}

// importAnimations decodes the standard animations of the object, or the
// selected Link animation when the object has none.
func (im *Importer) importAnimations() {
	log := im.log.Named("anim")

	seg := segment.Object
	if im.opts.ExternalAnimations && im.segs.Len(segment.ExternalAnim) > 0 {
		seg = segment.ExternalAnim
	}
	headers := anim.Locate(im.segs.Bytes(seg), seg)
	for i, hd := range headers {
		log.Debugf("- Animation #%d offset: 0x%08X frames: %d", i+1, hd.Addr, hd.Frames)
	}

	if len(headers) == 0 {
		im.importLinkAnimation()
		return
	}

	// Limbs are named limb_XX in every hierarchy, so tracks decoded against
	// the largest one drive any of the others.
	arm := im.res.Hierarchies[0]
	for _, h := range im.res.Hierarchies[1:] {
		if len(h.Limbs) > len(arm.Limbs) {
			arm = h
		}
	}
	im.res.Armature = arm
	log.Infof("Building animations using armature %s", arm.Name)
	for i, hd := range headers {
		log.Infof("   Loading animation %d/%d 0x%08X", i+1, len(headers), hd.Addr)
		tr, err := anim.DecodeStandard(im.segs, hd.Addr, len(arm.Limbs), im.opts.Scale, log)
		if err != nil {
			log.Errorf("Skipping animation 0x%08X: %v", hd.Addr, err)
			continue
		}
		tr.Name = fmt.Sprintf("%sanim%d_%d", im.opts.Prefix, i+1, len(tr.Frames))
		im.res.Tracks = append(im.res.Tracks, tr)
	}
}

func (im *Importer) importLinkAnimation() {
	log := im.log.Named("link")
	entries := anim.LocateLink(im.segs, im.opts.MajoraAnimations, log)
	if im.segs.Len(segment.LinkAnimData) == 0 || len(entries) <= 1 {
		return
	}
	idx := im.opts.LinkAnimation
	if idx < 0 || idx >= len(entries) {
		log.Warnf("Link animation %d not in table of %d, using 0", idx, len(entries))
		idx = 0
	}

	h := im.res.Hierarchies[0]
	im.res.Armature = h
	root, err := h.RootPosition(im.segs)
	if err != nil {
		log.Errorf("Skipping Link animation: %v", err)
		return
	}
	tr, err := anim.DecodeLink(im.segs, entries[idx], len(h.Limbs), root)
	if err != nil {
		log.Errorf("Skipping Link animation %d: %v", idx, err)
		return
	}
	tr.Name = im.opts.Prefix + tr.Name
	im.res.Tracks = append(im.res.Tracks, tr)
}
