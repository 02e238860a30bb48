package export

import (
	"fmt"

	"github.com/tidwall/sjson"

	"z64import/internal/anim"
)

// AnimationsDir is the subdirectory animation tracks are written to.
const AnimationsDir = "anims"

// AnimationJSON encodes tr. Each frame holds the root translation and one
// XYZ degree triple per bone, null where the bone had no data.
func AnimationJSON(tr *anim.Track, armature string) ([]byte, error) {
	frames := make([]interface{}, len(tr.Frames))
	for f, fr := range tr.Frames {
		rots := make([]interface{}, len(fr.Rotations))
		for b, r := range fr.Rotations {
			if r.Ok {
				rots[b] = r.Degrees
			}
		}
		frames[f] = map[string]interface{}{
			"translation": fr.Translation,
			"rotations":   rots,
		}
	}

	doc := []byte(`{}`)
	var err error
	set := func(path string, v interface{}) {
		if err == nil {
			doc, err = sjson.SetBytes(doc, path, v)
		}
	}
	set("name", tr.Name)
	set("offset", fmt.Sprintf("0x%08X", tr.Offset))
	set("armature", armature)
	set("bones", tr.Bones)
	set("frame_count", len(tr.Frames))
	set("frames", frames)
	if err != nil {
		return nil, fmt.Errorf("export: animation %s: %w", tr.Name, err)
	}
	return doc, nil
}
