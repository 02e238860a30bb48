package batch

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// ManifestEntry represents one job in the output manifest.
type ManifestEntry struct {
	Name        string   `json:"name"`
	RunID       string   `json:"run_id"`
	Kind        string   `json:"kind"`
	Success     bool     `json:"success"`
	Error       string   `json:"error,omitempty"`
	Meshes      int      `json:"meshes"`
	Triangles   int      `json:"triangles"`
	Textures    int      `json:"textures"`
	Fallbacks   int      `json:"fallback_textures"`
	Hierarchies int      `json:"hierarchies"`
	Animations  int      `json:"animations"`
	Backgrounds int      `json:"backgrounds"`
	Warnings    int64    `json:"warnings"`
	Errors      int64    `json:"errors"`
	Scene       string   `json:"scene,omitempty"`
	Files       []string `json:"files,omitempty"`
}

func entryOf(r Result) ManifestEntry {
	e := ManifestEntry{
		Name:        r.Name,
		Kind:        r.Kind,
		Success:     r.Success,
		Error:       r.Error,
		Meshes:      r.Meshes,
		Triangles:   r.Triangles,
		Textures:    r.Textures,
		Fallbacks:   r.Fallbacks,
		Hierarchies: r.Hierarchies,
		Animations:  r.Animations,
		Backgrounds: r.Backgrounds,
		Warnings:    r.Warnings,
		Errors:      r.Errors,
	}
	if f := r.Files; f != nil {
		e.Scene = f.Scene
		e.Files = append(e.Files, f.Textures...)
		e.Files = append(e.Files, f.Backgrounds...)
		e.Files = append(e.Files, f.Animations...)
	}
	return e
}

// WriteManifest merges results into the manifest at path. Entries of jobs
// that ran again are replaced in place, others are kept, new ones are
// appended.
func WriteManifest(path string, runID uuid.UUID, results []Result) error {
	doc, err := os.ReadFile(path)
	if os.IsNotExist(err) || (err == nil && !gjson.ValidBytes(doc)) {
		doc, err = []byte(`{"jobs":[]}`), nil
	}
	if err != nil {
		return err
	}

	for _, r := range results {
		key := "jobs.-1"
		gjson.GetBytes(doc, "jobs").ForEach(func(i, v gjson.Result) bool {
			if v.Get("name").String() == r.Name {
				key = fmt.Sprintf("jobs.%d", i.Int())
				return false
			}
			return true
		})
		e := entryOf(r)
		e.RunID = runID.String()
		if doc, err = sjson.SetBytes(doc, key, e); err != nil {
			return err
		}
	}

	if doc, err = sjson.SetBytes(doc, "run_id", runID.String()); err != nil {
		return err
	}
	if doc, err = sjson.SetBytes(doc, "updated", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return os.WriteFile(path, pretty.Pretty(doc), 0644)
}

// ReadManifest returns the entries recorded in the manifest at path.
func ReadManifest(path string) ([]ManifestEntry, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("manifest %s: invalid JSON", path)
	}
	var out []ManifestEntry
	for _, v := range gjson.GetBytes(doc, "jobs").Array() {
		e := ManifestEntry{
			Name:        v.Get("name").String(),
			RunID:       v.Get("run_id").String(),
			Kind:        v.Get("kind").String(),
			Success:     v.Get("success").Bool(),
			Error:       v.Get("error").String(),
			Meshes:      int(v.Get("meshes").Int()),
			Triangles:   int(v.Get("triangles").Int()),
			Textures:    int(v.Get("textures").Int()),
			Fallbacks:   int(v.Get("fallback_textures").Int()),
			Hierarchies: int(v.Get("hierarchies").Int()),
			Animations:  int(v.Get("animations").Int()),
			Backgrounds: int(v.Get("backgrounds").Int()),
			Warnings:    v.Get("warnings").Int(),
			Errors:      v.Get("errors").Int(),
			Scene:       v.Get("scene").String(),
		}
		for _, f := range v.Get("files").Array() {
			e.Files = append(e.Files, f.String())
		}
		out = append(out, e)
	}
	return out, nil
}
