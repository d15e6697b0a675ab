package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/devicelab-dev/checkbox-runner/pkg/scenario"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IndexFile is the report file name inside the output directory.
const IndexFile = "report.json"

// BuilderConfig configures the report skeleton.
type BuilderConfig struct {
	RunnerVersion string
	DriverName    string
	Parallel      int
}

// BuildSkeleton creates an index with every scenario pending.
func BuildSkeleton(scenarios []*scenario.Scenario, cfg BuilderConfig) *Index {
	index := &Index{
		Version: Version,
		RunID:   uuid.NewString(),
		Status:  StatusPending,
		Runner: RunnerInfo{
			Version:  cfg.RunnerVersion,
			Driver:   cfg.DriverName,
			Parallel: cfg.Parallel,
		},
		Scenarios: make([]ScenarioEntry, len(scenarios)),
	}
	for i, sc := range scenarios {
		index.Scenarios[i] = ScenarioEntry{
			Index:       i,
			ID:          uuid.NewString(),
			Name:        sc.Describe(),
			SourceFile:  sc.SourcePath,
			Line:        sc.Line,
			Tags:        sc.Tags,
			Target:      sc.Target.String(),
			Interaction: sc.Interaction.String(),
			Status:      StatusPending,
		}
	}
	index.Summary = computeSummary(index.Scenarios)
	return index
}

// IndexWriter provides thread-safe updates to the report index.
// Multiple scenario goroutines can update the index concurrently.
type IndexWriter struct {
	mu    sync.Mutex
	path  string
	index *Index
	err   error
}

// NewIndexWriter creates the output directory and writes the skeleton.
func NewIndexWriter(outputDir string, index *Index) (*IndexWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	w := &IndexWriter{
		path:  filepath.Join(outputDir, IndexFile),
		index: index,
	}
	if err := atomicWriteJSON(w.path, index); err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}
	return w, nil
}

// Path returns the report.json path.
func (w *IndexWriter) Path() string {
	return w.path
}

// Start marks the run as started.
func (w *IndexWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.Status = StatusRunning
	w.index.StartTime = now
	w.flushLocked()
}

// UpdateScenario updates the entry with the given id.
func (w *IndexWriter) UpdateScenario(id string, update *ScenarioUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.index.Scenarios {
		if w.index.Scenarios[i].ID == id {
			applyUpdate(&w.index.Scenarios[i], update)
			break
		}
	}
	w.flushLocked()
}

// End marks the run as complete.
func (w *IndexWriter) End() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.EndTime = &now
	w.index.Status = computeRunStatus(w.index.Scenarios)
	w.flushLocked()
}

// Err returns the first write error, if any.
func (w *IndexWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Snapshot returns a copy of the current index.
func (w *IndexWriter) Snapshot() Index {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := *w.index
	idx.Scenarios = append([]ScenarioEntry(nil), w.index.Scenarios...)
	return idx
}

// flushLocked writes the index while holding the lock.
func (w *IndexWriter) flushLocked() {
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = computeSummary(w.index.Scenarios)

	if err := atomicWriteJSON(w.path, w.index); err != nil && w.err == nil {
		w.err = err
	}
}

func applyUpdate(e *ScenarioEntry, update *ScenarioUpdate) {
	e.Status = update.Status
	if update.StartTime != nil {
		e.StartTime = update.StartTime
	}
	if update.EndTime != nil {
		e.EndTime = update.EndTime
	}
	if update.Duration != nil {
		e.Duration = update.Duration
	}
	if update.Session != nil {
		e.Session = update.Session
	}
	if update.State != nil {
		e.State = update.State
	}
	e.Clicked = update.Clicked
	e.Skipped = update.Skipped
	if update.Error != nil {
		e.Error = update.Error
	}
	e.UpdateSeq++
	now := time.Now()
	e.LastUpdated = &now
}

// computeSummary calculates summary from scenario statuses.
func computeSummary(entries []ScenarioEntry) Summary {
	var s Summary
	for _, e := range entries {
		s.Total++
		switch e.Status {
		case StatusPassed:
			s.Passed++
		case StatusAssertionFailed:
			s.AssertionFailed++
		case StatusInfrastructureError:
			s.InfrastructureError++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// computeRunStatus determines the overall run status. Infrastructure errors
// outrank assertion failures.
func computeRunStatus(entries []ScenarioEntry) Status {
	status := StatusPassed
	for _, e := range entries {
		switch {
		case !e.Status.IsTerminal():
			return StatusRunning
		case e.Status == StatusInfrastructureError:
			status = StatusInfrastructureError
		case e.Status == StatusAssertionFailed && status == StatusPassed:
			status = StatusAssertionFailed
		}
	}
	return status
}

// ReadIndex loads a report.json written by IndexWriter.
func ReadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- report path chosen by the user
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &idx, nil
}

// atomicWriteJSON writes v to path through a temp file and rename.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
