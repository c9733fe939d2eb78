// Package registry tracks the per-study lifecycle: Uploaded, Validated,
// Analyzing, Analyzed. It linearizes state transitions per study while
// letting the long-running pipeline execute outside any lock.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cortexa/neurogate/internal/pipeline"
	"github.com/cortexa/neurogate/internal/study"
	"github.com/cortexa/neurogate/internal/validate"
)

var (
	// ErrNotFound is returned for an unknown study identifier.
	ErrNotFound = errors.New("study not found")

	// ErrAlreadyInProgress is returned when an analysis is already running
	// for the study; the caller should poll rather than retry immediately.
	ErrAlreadyInProgress = errors.New("analysis already in progress")

	// ErrNoVerdict is returned when analysis is requested before a verdict
	// was attached.
	ErrNoVerdict = errors.New("study has no verdict yet")
)

// State is a study's position in the analysis lifecycle.
type State int

const (
	StateUploaded State = iota
	StateValidated
	StateAnalyzing
	StateAnalyzed
)

// String returns the lifecycle state name.
func (s State) String() string {
	switch s {
	case StateUploaded:
		return "uploaded"
	case StateValidated:
		return "validated"
	case StateAnalyzing:
		return "analyzing"
	case StateAnalyzed:
		return "analyzed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Entry is the per-study lifecycle record. Verdict and Result are nil until
// their stages have run.
type Entry struct {
	mu sync.Mutex

	ID         string
	State      State
	Study      *study.Study
	Verdict    *validate.Verdict
	Result     *pipeline.Result
	UploadedAt time.Time
}

// Snapshot is a copy of an entry's observable fields, safe to use without
// holding the entry lock.
type Snapshot struct {
	ID         string
	State      State
	Study      *study.Study
	Verdict    *validate.Verdict
	Result     *pipeline.Result
	UploadedAt time.Time
}

// Registry is a process-wide keyed store of study entries. It is injected
// into callers rather than shared as a global, and every mutation goes
// through the per-entry lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry), now: time.Now}
}

// Put stores a freshly assembled study in the Uploaded state.
func (r *Registry) Put(s *study.Study) *Entry {
	e := &Entry{
		ID:         s.ID,
		State:      StateUploaded,
		Study:      s,
		UploadedAt: r.now(),
	}
	r.mu.Lock()
	r.entries[s.ID] = e
	r.mu.Unlock()
	return e
}

func (r *Registry) lookup(id string) (*Entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("study %s: %w", id, ErrNotFound)
	}
	return e, nil
}

// AttachVerdict records the validation outcome and moves the entry to
// Validated. The verdict may be a pass or a fail; either way the study is
// now validated and the verdict is the authority the analysis gate consults.
func (r *Registry) AttachVerdict(id string, v validate.Verdict) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.State == StateAnalyzing {
		return fmt.Errorf("study %s is %s: %w", id, e.State, ErrAlreadyInProgress)
	}
	e.Verdict = &v
	if e.State == StateUploaded {
		e.State = StateValidated
	}
	return nil
}

// Guard represents an exclusive claim on a study's analysis slot. Exactly
// one of Complete or Fail must be called to release it.
type Guard struct {
	entry    *Entry
	Bypassed bool
	done     bool
}

// BeginAnalysis atomically claims the study for analysis. The stored
// verdict is re-checked here, at claim time: a failing verdict without
// bypass is rejected with a GateError carrying that verdict, and a study
// already Analyzing is rejected with ErrAlreadyInProgress. The entry lock
// is held only across this check-and-set, never across the pipeline run.
func (r *Registry) BeginAnalysis(id string, bypass bool) (*Guard, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.State {
	case StateAnalyzing:
		return nil, fmt.Errorf("study %s: %w", id, ErrAlreadyInProgress)
	case StateUploaded:
		return nil, fmt.Errorf("study %s: %w", id, ErrNoVerdict)
	}
	if e.Verdict == nil {
		return nil, fmt.Errorf("study %s: %w", id, ErrNoVerdict)
	}
	if !e.Verdict.Pass && !bypass {
		return nil, &validate.GateError{StudyID: id, Verdict: *e.Verdict}
	}

	e.State = StateAnalyzing
	return &Guard{entry: e, Bypassed: bypass && !e.Verdict.Pass}, nil
}

// Complete attaches the result and moves the entry to Analyzed.
func (g *Guard) Complete(res *pipeline.Result) {
	g.entry.mu.Lock()
	defer g.entry.mu.Unlock()
	if g.done {
		return
	}
	g.done = true
	g.entry.Result = res
	g.entry.State = StateAnalyzed
}

// Fail releases the claim and returns the entry to Validated so a caller
// may retry; any earlier result is kept.
func (g *Guard) Fail() {
	g.entry.mu.Lock()
	defer g.entry.mu.Unlock()
	if g.done {
		return
	}
	g.done = true
	g.entry.State = StateValidated
}

// Get returns a snapshot of the entry for the given study identifier.
func (r *Registry) Get(id string) (Snapshot, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		ID:         e.ID,
		State:      e.State,
		Study:      e.Study,
		Verdict:    e.Verdict,
		Result:     e.Result,
		UploadedAt: e.UploadedAt,
	}, nil
}

// List returns a snapshot of every entry, in unspecified order.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, Snapshot{
			ID:         e.ID,
			State:      e.State,
			Study:      e.Study,
			Verdict:    e.Verdict,
			Result:     e.Result,
			UploadedAt: e.UploadedAt,
		})
		e.mu.Unlock()
	}
	return out
}

// Delete removes a study from the registry. A study mid-analysis cannot be
// deleted.
func (r *Registry) Delete(id string) error {
	e, err := r.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	analyzing := e.State == StateAnalyzing
	e.mu.Unlock()
	if analyzing {
		return fmt.Errorf("study %s: %w", id, ErrAlreadyInProgress)
	}

	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
	return nil
}
