// Package export writes decoded imports to disk: a glTF scene, texture
// files, animation tracks and background images.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"z64import/internal/anim"
	"z64import/internal/discovery"
	"z64import/internal/f3dzex"
	"z64import/internal/skeleton"
	"z64import/internal/texel"
)

// Options selects what Write produces.
type Options struct {
	Dir           string
	Prefix        string
	Textures      bool
	TextureFormat string
	Scene         bool
	Binary        bool
	Animations    bool
	// ReplicatedMirror is set when mirrored textures were decoded doubled.
	ReplicatedMirror bool
}

// Input is everything one import produced.
type Input struct {
	Name        string
	Meshes      []*f3dzex.Mesh
	Textures    []*texel.Image
	Hierarchies []*skeleton.Hierarchy
	Armature    *skeleton.Hierarchy
	Tracks      []*anim.Track
	Backgrounds []*discovery.Background
}

// Files lists the written files relative to the output directory.
type Files struct {
	Scene       string
	Textures    []string
	Animations  []string
	Backgrounds []string
	Fallbacks   int
}

// Write writes in under o.Dir.
func Write(in *Input, o Options) (*Files, error) {
	if err := os.MkdirAll(o.Dir, 0755); err != nil {
		return nil, err
	}
	out := &Files{}

	if o.Textures {
		for _, img := range in.Textures {
			rel, err := WriteTexture(o.Dir, img, o.Prefix, o.TextureFormat)
			if err != nil {
				return out, err
			}
			out.Textures = append(out.Textures, rel)
			if img.Fallback {
				out.Fallbacks++
			}
		}
	}

	for _, bg := range in.Backgrounds {
		rel := filepath.Join(TexturesDir, "jfif_"+sanitize(bg.Name)+".jfif")
		if err := writeFile(o.Dir, rel, bg.JFIF); err != nil {
			return out, err
		}
		out.Backgrounds = append(out.Backgrounds, rel)
	}

	if o.Animations {
		armature := ""
		if in.Armature != nil {
			armature = in.Armature.Name
		}
		for _, tr := range in.Tracks {
			data, err := AnimationJSON(tr, armature)
			if err != nil {
				return out, err
			}
			rel := filepath.Join(AnimationsDir, sanitize(tr.Name)+".json")
			if err := writeFile(o.Dir, rel, data); err != nil {
				return out, err
			}
			out.Animations = append(out.Animations, rel)
		}
	}

	if o.Scene {
		s := NewScene(in.Name, o.ReplicatedMirror)
		for _, h := range in.Hierarchies {
			s.AddHierarchy(h)
		}
		for _, m := range in.Meshes {
			if err := s.AddMesh(m); err != nil {
				return out, err
			}
		}
		for _, bg := range in.Backgrounds {
			if err := s.AddBackground(bg); err != nil {
				return out, err
			}
		}
		ext := ".gltf"
		if o.Binary {
			ext = ".glb"
		}
		rel := sanitize(in.Name) + ext
		if err := s.Save(filepath.Join(o.Dir, rel), o.Binary); err != nil {
			return out, fmt.Errorf("export: save %s: %w", rel, err)
		}
		out.Scene = rel
	}
	return out, nil
}

func writeFile(dir, rel string, data []byte) error {
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}
