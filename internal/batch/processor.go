package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"z64import/internal/config"
	"z64import/internal/diag"
	"z64import/internal/discovery"
	"z64import/internal/export"
	"z64import/internal/f3dzex"
	"z64import/internal/segment"
)

// Job is one independent import. Every job gets its own segment table and
// builder context, so jobs share nothing while they run.
type Job struct {
	Name   string
	Config config.Config
}

// Result holds the outcome of one job.
type Result struct {
	Name        string
	Kind        string
	Success     bool
	Error       string
	Meshes      int
	Triangles   int
	Textures    int
	Fallbacks   int
	Hierarchies int
	Animations  int
	Backgrounds int
	Warnings    int64
	Errors      int64
	Files       *export.Files
}

// Run processes all jobs using a worker pool.
func Run(jobs []Job, workers int, log diag.Logger) []Result {
	total := len(jobs)
	results := make([]Result, total)
	var processed atomic.Int64
	if workers <= 0 {
		workers = 1
	}

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					elapsed := time.Since(start).Seconds()
					log.Infof("  [%d/%d] %.1f jobs/sec", p, total, float64(p)/elapsed)
				}
			}
		}
	}()

	// Worker pool
	jobChan := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				results[idx] = processJob(jobs[idx], log.Named(jobs[idx].Name))
				processed.Add(1)
			}
		}()
	}

	// Send work
	for i := range jobs {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	close(done)

	return results
}

// counter counts the warnings and errors logged through it.
type counter struct {
	diag.Logger
	warnings *atomic.Int64
	errors   *atomic.Int64
}

func newCounter(l diag.Logger) counter {
	return counter{Logger: l, warnings: new(atomic.Int64), errors: new(atomic.Int64)}
}

func (c counter) Warnf(format string, v ...interface{}) {
	c.warnings.Add(1)
	c.Logger.Warnf(format, v...)
}

func (c counter) Errorf(format string, v ...interface{}) {
	c.errors.Add(1)
	c.Logger.Errorf(format, v...)
}

func (c counter) Named(name string) diag.Logger {
	return counter{Logger: c.Logger.Named(name), warnings: c.warnings, errors: c.errors}
}

// LoadSegments reads every configured segment file into a new table.
func LoadSegments(cfg *config.Config) (*segment.Table, error) {
	paths, err := cfg.SegmentPaths()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no segment files configured")
	}
	segs := &segment.Table{}
	for id, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("segment 0x%02X: %w", id, err)
		}
		if err := segs.Load(id, data); err != nil {
			return nil, err
		}
	}
	return segs, nil
}

// Kind returns the configured import kind, or "object" when segment 0x06
// is loaded and "room" otherwise.
func Kind(cfg *config.Config, segs *segment.Table) string {
	if cfg.Import.Kind != "" {
		return cfg.Import.Kind
	}
	if segs.Len(segment.Object) > 0 {
		return "object"
	}
	return "room"
}

func readDisplayLists(path string, log diag.Logger) ([]uint32, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return discovery.ParseDisplayLists(f, log)
}

func processJob(job Job, log diag.Logger) Result {
	cfg := job.Config
	log = newCounter(log)
	fail := func(err error) Result {
		log.Errorf("%v", err)
		r := Result{Name: job.Name, Error: err.Error()}
		fillCounts(&r, log)
		return r
	}

	segs, err := LoadSegments(&cfg)
	if err != nil {
		return fail(err)
	}
	decOpts, err := cfg.DecoderOptions()
	if err != nil {
		return fail(err)
	}
	discOpts, err := cfg.DiscoveryOptions()
	if err != nil {
		return fail(err)
	}

	sink := &f3dzex.Collector{}
	ctx := f3dzex.NewContext(segs, decOpts, sink, log)
	im := discovery.NewImporter(ctx, discOpts, log)

	kind := Kind(&cfg, segs)
	var res *discovery.Result
	switch kind {
	case "object":
		lists, err := readDisplayLists(cfg.DisplayLists, log)
		if err != nil {
			return fail(err)
		}
		res = im.ImportObject(lists)
	case "room":
		res = im.ImportRoom()
	default:
		return fail(fmt.Errorf("unknown import kind %q", kind))
	}

	files, err := export.Write(&export.Input{
		Name:        job.Name,
		Meshes:      sink.Meshes,
		Textures:    ctx.Textures(),
		Hierarchies: res.Hierarchies,
		Armature:    res.Armature,
		Tracks:      res.Tracks,
		Backgrounds: res.Backgrounds,
	}, export.Options{
		Dir:              filepath.Join(cfg.OutputDir, job.Name),
		Prefix:           decOpts.Prefix,
		Textures:         cfg.Export.Textures,
		TextureFormat:    cfg.Export.TextureFormat,
		Scene:            cfg.Export.Scene,
		Binary:           cfg.Export.Binary,
		Animations:       cfg.Export.Animations,
		ReplicatedMirror: decOpts.ReplicateMirror,
	})
	if err != nil {
		return fail(err)
	}

	r := Result{
		Name:        job.Name,
		Kind:        kind,
		Success:     true,
		Meshes:      len(sink.Meshes),
		Textures:    len(ctx.Textures()),
		Fallbacks:   files.Fallbacks,
		Hierarchies: len(res.Hierarchies),
		Animations:  len(res.Tracks),
		Backgrounds: len(res.Backgrounds),
		Files:       files,
	}
	for _, m := range sink.Meshes {
		r.Triangles += len(m.Tris)
	}
	fillCounts(&r, log)
	return r
}

func fillCounts(r *Result, log diag.Logger) {
	if c, ok := log.(counter); ok {
		r.Warnings = c.warnings.Load()
		r.Errors = c.errors.Load()
	}
}
