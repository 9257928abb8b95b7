package api

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"dvh/internal/dsl"
	"dvh/internal/generate"
	"dvh/internal/templates"
	"dvh/internal/validate"
)

// maxRuns bounds the generation history kept in memory.
const maxRuns = 50

// Run is one generation request and its output.
type Run struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"` // ddl | drop | dml
	CreatedAt time.Time         `json:"created_at"`
	Entities  []string          `json:"entities,omitempty"`
	Scripts   []generate.Script `json:"scripts"`
	Errors    []string          `json:"errors,omitempty"`
}

// Storage holds the loaded model and template catalog behind a lock, plus
// the recent generation runs.
type Storage struct {
	mu            sync.RWMutex
	gen           *generate.Generator
	report        validate.Report
	ModelPath     string
	TemplatesPath string
	Workers       int

	runs    map[string]*Run
	order   []string // run ids, oldest first
	entropy io.Reader
	log     *zap.Logger
}

func NewStorage(log *zap.Logger) *Storage {
	if log == nil {
		log = zap.NewNop()
	}
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Storage{
		runs:    make(map[string]*Run),
		entropy: ulid.Monotonic(src, 0),
		log:     log,
	}
}

func (s *Storage) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// ErrLoad wraps failures to read the model or the templates.
var ErrLoad = errors.New("load failed")

// build reads and prepares a generator without touching the live one.
func (s *Storage) build(modelPath, templatesPath string) (*generate.Generator, validate.Report, error) {
	m, err := dsl.LoadAllModels(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: model: %v", ErrLoad, err)
	}
	c, err := templates.Load(templatesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: templates: %v", ErrLoad, err)
	}
	g := generate.New(m, c, generate.WithLogger(s.log), generate.WithWorkers(s.Workers))
	rep, err := g.Prepare()
	return g, rep, err
}

// Load replaces the model and templates. Structural violations or load
// errors leave the current ones in place. Per-entity setup failures do not
// block the swap: those entities simply fail to generate.
func (s *Storage) Load(modelPath, templatesPath string) (validate.Report, error) {
	g, rep, err := s.build(modelPath, templatesPath)
	if err != nil && (g == nil || errors.Is(err, generate.ErrValidation)) {
		return rep, err
	}
	if err != nil {
		s.log.Warn("model loaded with setup errors", zap.Error(err))
	}

	// swapped atomically under the write lock
	s.mu.Lock()
	s.gen = g
	s.report = rep
	s.ModelPath, s.TemplatesPath = modelPath, templatesPath
	s.mu.Unlock()

	s.log.Info("model loaded",
		zap.String("model", modelPath),
		zap.String("templates", templatesPath),
		zap.Int("entities", len(g.Model().Entities)),
		zap.Int("templates_count", g.Catalog().Len()))
	return rep, nil
}

func (s *Storage) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen != nil
}

// Generate runs one generation under the write lock: DML setup mutates the
// entities. The run is recorded even when some entities fail.
func (s *Storage) Generate(kind string, names []string) (*Run, validate.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == nil {
		return nil, nil, generate.ErrNotPrepared
	}

	var (
		scripts []generate.Script
		rep     validate.Report
		err     error
	)
	switch kind {
	case "ddl":
		scripts, err = s.gen.DDL(names...)
	case "drop":
		scripts, err = s.gen.Drop(names...)
	case "dml":
		scripts, rep, err = s.gen.DML(names...)
	default:
		return nil, nil, fmt.Errorf("unknown generation kind %q", kind)
	}
	if scripts == nil {
		// nothing generated at all: validation or an unknown name
		if err != nil {
			return nil, rep, err
		}
		scripts = []generate.Script{}
	}

	run := &Run{
		ID:        s.newID(),
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
		Entities:  names,
		Scripts:   scripts,
		Errors:    errorStrings(err),
	}
	s.remember(run)
	return run, rep, err
}

func (s *Storage) remember(run *Run) {
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	for len(s.order) > maxRuns {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *Storage) Run(id string) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	return r, ok
}

// Runs lists the kept runs, newest first, without their scripts.
func (s *Storage) Runs() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		r := *s.runs[s.order[i]]
		r.Scripts = nil
		out = append(out, r)
	}
	return out
}

// entities returns the model entities sorted by name. Callers hold the lock.
func (s *Storage) entities() []*dsl.Entity {
	out := s.gen.Model().All()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
