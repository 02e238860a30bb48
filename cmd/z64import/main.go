package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"z64import/internal/batch"
	"z64import/internal/config"
	"z64import/internal/diag"
)

// segmentFlags collects repeated -seg id=path flags.
type segmentFlags map[string]string

func (s segmentFlags) String() string {
	parts := make([]string, 0, len(s))
	for id, p := range s {
		parts = append(parts, id+"="+p)
	}
	return strings.Join(parts, ",")
}

func (s segmentFlags) Set(v string) error {
	id, p, ok := strings.Cut(v, "=")
	if !ok || p == "" {
		return fmt.Errorf("want id=path, got %q", v)
	}
	if _, err := config.ParseSegmentID(id); err != nil {
		return err
	}
	s[id] = p
	return nil
}

func main() {
	segs := segmentFlags{}

	// CLI flags
	configFile := flag.String("config", "", "Path to a .json or .ini config file")
	flag.Var(segs, "seg", "Segment file as id=path (repeatable), e.g. 06=object.zobj")
	dataDir := flag.String("data", "", "Base directory for relative paths (default: config file directory)")
	displayLists := flag.String("dl", "", "displaylists.txt with extra display list offsets")
	outputDir := flag.String("out", "", "Output directory (default: <data>/out)")
	kind := flag.String("kind", "", "Import kind: object or room (default: by loaded segments)")
	strategy := flag.String("strategy", "", "NO_DETECTION, BRUTEFORCE, SMART or TRY_EVERYTHING")
	prefix := flag.String("prefix", "", "Name prefix for meshes, textures and animations")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	logLevel := flag.String("log", "", "Log level: trace, debug, info, warn, error")

	flag.Parse()

	flags := config.Flags{
		BaseDir:      *dataDir,
		OutputDir:    *outputDir,
		DisplayLists: *displayLists,
		Segments:     segs,
		Kind:         *kind,
		Strategy:     *strategy,
		Prefix:       *prefix,
		Workers:      *workers,
		LogLevel:     *logLevel,
	}

	// One job per config file; positional arguments add more.
	files := flag.Args()
	if *configFile != "" {
		files = append([]string{*configFile}, files...)
	}

	var jobs []batch.Job
	if len(files) == 0 {
		cfg := config.Default()
		cfg.Resolve(flags)
		jobs = append(jobs, batch.Job{Name: jobName("", cfg), Config: cfg})
	}
	for _, f := range files {
		cfg, err := config.Load(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg.Resolve(flags)
		jobs = append(jobs, batch.Job{Name: jobName(f, cfg), Config: cfg})
	}

	if len(jobs[0].Config.Segments) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no segment files. Use -seg 06=file or a config file.")
		os.Exit(1)
	}

	cfg := jobs[0].Config
	log := diag.New(os.Stderr, cfg.Level())
	runID := uuid.New()

	fmt.Printf("F3DZEX importer, run %s\n", runID)
	fmt.Printf("Jobs: %d, Workers: %d\n", len(jobs), cfg.Workers)
	fmt.Printf("Output: %s\n", cfg.OutputDir)
	fmt.Println("------------------------------------------------------------")

	start := time.Now()

	results := batch.Run(jobs, cfg.Workers, log)

	elapsed := time.Since(start)
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Done in %.1fs\n", elapsed.Seconds())

	// Count results
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
			fmt.Printf("  %s: FAILED: %s\n", r.Name, r.Error)
			continue
		}
		fmt.Printf("  %s (%s): %d meshes, %d triangles, %d textures (%d fallback), %d hierarchies, %d animations, %d backgrounds, %d warnings, %d errors\n",
			r.Name, r.Kind, r.Meshes, r.Triangles, r.Textures, r.Fallbacks,
			r.Hierarchies, r.Animations, r.Backgrounds, r.Warnings, r.Errors)
	}
	fmt.Printf("Imported: %d/%d\n", len(results)-failed, len(results))

	// Write manifest
	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	os.MkdirAll(cfg.OutputDir, 0755)
	if err := batch.WriteManifest(manifestPath, runID, results); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// jobName names a job after its config file, or after its first segment
// file when run from flags alone.
func jobName(configPath string, cfg config.Config) string {
	p := configPath
	if p == "" {
		for _, id := range []string{"06", "6", "0x06", "03", "3", "0x03"} {
			if s, ok := cfg.Segments[id]; ok {
				p = s
				break
			}
		}
	}
	if p == "" {
		return "import"
	}
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
