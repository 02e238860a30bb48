package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"z64import/internal/diag"
	"z64import/internal/discovery"
	"z64import/internal/f3dzex"
	"z64import/internal/segment"
)

// Config holds the segment paths, import settings and export settings of
// one run.
type Config struct {
	// Paths
	BaseDir      string            `json:"base_dir" ini:"base_dir"`
	Segments     map[string]string `json:"segments" ini:"-"`
	DisplayLists string            `json:"display_lists" ini:"display_lists"`
	OutputDir    string            `json:"output_dir" ini:"output_dir"`

	Import Import `json:"import" ini:"Import"`
	Export Export `json:"export" ini:"Export"`

	Workers  int    `json:"workers" ini:"workers"`
	LogLevel string `json:"log_level" ini:"log_level"`
}

// Import holds the decoder and discovery settings.
type Import struct {
	// Kind is "object", "room" or empty to pick by loaded segments.
	Kind       string  `json:"kind" ini:"kind"`
	Strategy   string  `json:"import_strategy" ini:"import_strategy"`
	VertexMode string  `json:"vertex_mode" ini:"vertex_mode"`
	Scale      float64 `json:"scale_factor" ini:"scale_factor"`
	Prefix     string  `json:"prefix" ini:"prefix"`
	MaxDepth   int     `json:"max_depth" ini:"max_depth"`

	EnableMatrices  bool `json:"enable_matrices" ini:"enable_matrices"`
	EnablePrimColor bool `json:"enable_prim_color" ini:"enable_prim_color"`
	EnableEnvColor  bool `json:"enable_env_color" ini:"enable_env_color"`
	InvertEnvColor  bool `json:"invert_env_color" ini:"invert_env_color"`
	ReplicateMirror bool `json:"replicate_tex_mirror" ini:"replicate_tex_mirror"`
	ImportTextures  bool `json:"import_textures" ini:"import_textures"`
	MirrorTags      bool `json:"mirror_tags" ini:"mirror_tags"`
	ClampTags       bool `json:"clamp_tags" ini:"clamp_tags"`

	DetectedUseTransparency bool `json:"detected_display_lists_use_transparency" ini:"detected_display_lists_use_transparency"`
	ExcludeUnimplemented    bool `json:"detected_display_lists_consider_unimplemented_invalid" ini:"detected_display_lists_consider_unimplemented_invalid"`

	LoadAnimations bool `json:"load_animations" ini:"load_animations"`
	ExternalAnims  bool `json:"external_animes" ini:"external_animes"`
	MajoraAnims    bool `json:"majora_anims" ini:"majora_anims"`
	LinkAnimation  int  `json:"link_animation" ini:"link_animation"`
}

// Export holds the output settings.
type Export struct {
	Textures      bool   `json:"export_textures" ini:"export_textures"`
	TextureFormat string `json:"texture_format" ini:"texture_format"`
	Scene         bool   `json:"scene" ini:"scene"`
	Binary        bool   `json:"binary" ini:"binary"`
	Animations    bool   `json:"animations" ini:"animations"`
}

// Default returns the importer defaults. Load starts from it, so keys
// absent from a file keep these values.
func Default() Config {
	return Config{
		Segments: map[string]string{},
		Import: Import{
			Strategy:        discovery.NoDetection.String(),
			VertexMode:      f3dzex.VertexAuto.String(),
			Scale:           0.01,
			MaxDepth:        f3dzex.DefaultMaxDepth,
			EnableMatrices:  true,
			EnablePrimColor: true,
			ReplicateMirror: true,
			ImportTextures:  true,
			LoadAnimations:  true,
		},
		Export: Export{
			Textures:      true,
			TextureFormat: "tga",
			Scene:         true,
			Animations:    true,
		},
		LogLevel: "info",
	}
}

// Load reads a .json or .ini config file. BaseDir defaults to the file's
// directory.
func Load(path string) (Config, error) {
	cfg := Default()
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg":
		err = loadINI(path, &cfg)
	default:
		err = loadJSON(path, &cfg)
	}
	if err != nil {
		return Config{}, err
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = filepath.Dir(path)
	}
	return cfg, nil
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// loadINI maps the default section and the Import and Export sections onto
// cfg. Segment paths come from the Segments section, keyed by id.
func loadINI(path string, cfg *Config) error {
	options := ini.LoadOptions{
		Insensitive:             false,
		IgnoreInlineComment:     false,
		SkipUnrecognizableLines: true,
		AllowShadows:            false,
	}
	f, err := ini.LoadSources(options, path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := f.MapTo(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if s, err := f.GetSection("Segments"); err == nil {
		for _, key := range s.Keys() {
			cfg.Segments[key.Name()] = key.String()
		}
	}
	return nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	BaseDir      string
	OutputDir    string
	DisplayLists string
	Segments     map[string]string
	Kind         string
	Strategy     string
	Prefix       string
	Workers      int
	LogLevel     string
}

// Resolve applies CLI flags, then fills in defaults and resolves relative
// paths against BaseDir.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.BaseDir != "" {
		c.BaseDir = flags.BaseDir
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.DisplayLists != "" {
		c.DisplayLists = flags.DisplayLists
	}
	if c.Segments == nil {
		c.Segments = map[string]string{}
	}
	for id, p := range flags.Segments {
		c.Segments[id] = p
	}
	if flags.Kind != "" {
		c.Import.Kind = flags.Kind
	}
	if flags.Strategy != "" {
		c.Import.Strategy = flags.Strategy
	}
	if flags.Prefix != "" {
		c.Import.Prefix = flags.Prefix
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}

	// Resolve relative paths against base dir
	if c.BaseDir != "" {
		for id, p := range c.Segments {
			c.Segments[id] = c.abs(p)
		}
		if c.DisplayLists == "" {
			candidate := filepath.Join(c.BaseDir, "displaylists.txt")
			if _, err := os.Stat(candidate); err == nil {
				c.DisplayLists = candidate
			}
		} else {
			c.DisplayLists = c.abs(c.DisplayLists)
		}
		if c.OutputDir == "" {
			c.OutputDir = filepath.Join(c.BaseDir, "out")
		} else {
			c.OutputDir = c.abs(c.OutputDir)
		}
	}
	if c.OutputDir == "" {
		c.OutputDir = "out"
	}

	// Defaults for import settings
	if c.Import.Scale <= 0 {
		c.Import.Scale = 0.01
	}
	if c.Import.MaxDepth <= 0 {
		c.Import.MaxDepth = f3dzex.DefaultMaxDepth
	}
	if c.Export.TextureFormat == "" {
		c.Export.TextureFormat = "tga"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

func (c *Config) abs(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// ParseSegmentID reads a segment id written as "6", "06" or "0x06".
func ParseSegmentID(s string) (int, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil || v >= segment.Count {
		return 0, fmt.Errorf("config: bad segment id %q", s)
	}
	return int(v), nil
}

// SegmentPaths returns the configured segment files by id.
func (c *Config) SegmentPaths() (map[int]string, error) {
	out := make(map[int]string, len(c.Segments))
	for key, p := range c.Segments {
		id, err := ParseSegmentID(key)
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

// DecoderOptions converts the import settings for the interpreter.
func (c *Config) DecoderOptions() (f3dzex.Options, error) {
	mode, err := f3dzex.ParseVertexMode(c.Import.VertexMode)
	if err != nil {
		return f3dzex.Options{}, fmt.Errorf("config: %w", err)
	}
	im := c.Import
	return f3dzex.Options{
		Scale:           float32(im.Scale),
		VertexMode:      mode,
		EnableMatrices:  im.EnableMatrices,
		EnablePrimColor: im.EnablePrimColor,
		EnableEnvColor:  im.EnableEnvColor,
		InvertEnvColor:  im.InvertEnvColor,
		ReplicateMirror: im.ReplicateMirror,
		ImportTextures:  im.ImportTextures,
		MirrorTags:      im.MirrorTags,
		ClampTags:       im.ClampTags,
		Prefix:          im.Prefix,
		MaxDepth:        im.MaxDepth,
	}, nil
}

// DiscoveryOptions converts the import settings for discovery.
func (c *Config) DiscoveryOptions() (discovery.Options, error) {
	strategy, err := discovery.ParseStrategy(c.Import.Strategy)
	if err != nil {
		return discovery.Options{}, fmt.Errorf("config: %w", err)
	}
	im := c.Import
	return discovery.Options{
		Strategy:                strategy,
		Scale:                   float32(im.Scale),
		Prefix:                  im.Prefix,
		LoadAnimations:          im.LoadAnimations,
		ExternalAnimations:      im.ExternalAnims,
		MajoraAnimations:        im.MajoraAnims,
		LinkAnimation:           im.LinkAnimation,
		DetectedUseTransparency: im.DetectedUseTransparency,
		ExcludeUnimplemented:    im.ExcludeUnimplemented,
	}, nil
}

// Level returns the configured log level.
func (c *Config) Level() diag.Level {
	return diag.ParseLevel(c.LogLevel)
}
