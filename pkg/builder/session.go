package builder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formembed/pkg/form"
)

// Session wraps one logical builder view. It is safe for concurrent use;
// operations are serialised by an internal lock.
type Session struct {
	mu sync.Mutex

	editor     Editor
	catalog    Catalog
	names      NameSource
	mount      MountRef
	attachOpts AttachOptions
	stallAfter time.Duration
	logger     *zap.Logger
	listener   Listener

	state      State
	generation uint64
	record     *form.Record
	seedKey    string
	instance   Instance
	snapshot   form.Schema
	attachErr  error
	lostErr    error
	stalled    bool
	cancel     context.CancelFunc
	stallTimer *time.Timer
	done       chan struct{}
}

// NewSession creates an Empty session attaching editor instances from editor
// and persisting saves through catalog.
func NewSession(editor Editor, catalog Catalog, options ...Option) (*Session, error) {
	if editor == nil {
		return nil, errors.New("builder: editor is required")
	}
	if catalog == nil {
		return nil, errors.New("builder: catalog is required")
	}
	s := &Session{
		editor:     editor,
		catalog:    catalog,
		mount:      DefaultMount,
		stallAfter: DefaultStallAfter,
		logger:     zap.NewNop(),
		state:      StateEmpty,
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = s.logger.With(zap.String("mount", string(s.mount)))
	return s, nil
}

// Mount attaches a fresh editor seeded from record, or from a blank schema
// when record is nil. Mounting the seed that is already attached is a no-op
// unless its attachment failed; any other seed tears the current instance
// down first. Attachment continues in the background; use Wait or Status to
// observe it.
func (s *Session) Mount(ctx context.Context, record *form.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var events []Event
	key := seedKeyFor(record)

	s.mu.Lock()
	active := s.state == StateAttaching || s.state == StateReady
	if active && s.seedKey == key && s.attachErr == nil {
		s.mu.Unlock()
		return nil
	}
	if active {
		events = append(events, s.teardownLocked()...)
	}

	seed := form.BlankSchema()
	s.record = nil
	if record != nil {
		clone := record.Clone()
		s.record = &clone
		if !clone.Schema.IsZero() {
			seed = clone.Schema.Clone()
		}
	}
	s.seedKey = key
	s.snapshot = nil
	s.lostErr = nil
	attachCtx, gen, started := s.beginAttachLocked(context.WithoutCancel(ctx))
	events = append(events, started...)
	s.mu.Unlock()

	s.logger.Info("builder attaching", zap.Uint64("generation", gen), zap.String("seed", key))
	s.emit(events)

	go s.attach(attachCtx, gen, seed)
	return nil
}

// beginAttachLocked starts a new generation in the Attaching state. Callers
// hold s.mu and launch attach with the returned context and generation.
func (s *Session) beginAttachLocked(parent context.Context) (context.Context, uint64, []Event) {
	s.generation++
	gen := s.generation
	s.attachErr = nil
	s.stalled = false
	s.instance = nil
	if s.cancel != nil {
		s.cancel()
	}

	attachCtx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateAttaching
	if s.stallAfter > 0 {
		s.stallTimer = time.AfterFunc(s.stallAfter, func() { s.markStalled(gen) })
	}
	return attachCtx, gen, []Event{s.eventLocked(EventStateChanged, nil)}
}

func (s *Session) attach(ctx context.Context, gen uint64, seed form.Schema) {
	inst, err := s.editor.Attach(ctx, s.mount, seed, s.attachOpts)
	if err == nil && inst == nil {
		err = errors.New("editor returned no instance")
	}
	if err != nil && inst != nil {
		_ = inst.Destroy()
		inst = nil
	}
	if inst != nil {
		inst.OnChange(func(schema form.Schema) {
			s.observe(gen, schema)
		})
	}

	s.mu.Lock()
	if gen != s.generation || s.state != StateAttaching {
		s.mu.Unlock()
		if inst != nil {
			if derr := inst.Destroy(); derr != nil {
				s.logger.Warn("discarding stale editor instance failed", zap.Uint64("generation", gen), zap.Error(derr))
			}
		}
		s.logger.Debug("stale attachment discarded", zap.Uint64("generation", gen))
		return
	}
	s.stopStallLocked()

	if err != nil {
		attachErr := &AttachError{Mount: s.mount, Generation: gen, Cause: err}
		s.attachErr = attachErr
		s.closeDoneLocked()
		events := []Event{s.eventLocked(EventAttachFailed, attachErr)}
		s.mu.Unlock()

		s.logger.Warn("builder attach failed", zap.Uint64("generation", gen), zap.Error(err))
		s.emit(events)
		return
	}

	s.instance = inst
	s.snapshot = inst.CurrentSchema().Clone()
	if s.snapshot.IsZero() {
		s.snapshot = seed
	}
	s.lostErr = nil
	s.state = StateReady
	s.closeDoneLocked()
	events := []Event{s.eventLocked(EventStateChanged, nil)}
	s.mu.Unlock()

	s.logger.Info("builder ready", zap.Uint64("generation", gen))
	s.emit(events)

	go s.watch(gen, inst)
}

// watch waits for inst to go away. Instances released by the session itself
// belong to an older generation by then and are ignored.
func (s *Session) watch(gen uint64, inst Instance) {
	<-inst.Done()
	s.lost(gen, inst)
}

// lost handles an editor that disappeared while Ready, such as a reloaded
// builder page. The loss is reported and a new instance is attached seeded
// with the last snapshot, keeping the bound record.
func (s *Session) lost(gen uint64, inst Instance) {
	s.mu.Lock()
	if gen != s.generation || s.state != StateReady || s.instance != inst {
		s.mu.Unlock()
		return
	}
	lostErr := &AttachError{Mount: s.mount, Generation: gen, Cause: ErrEditorLost}
	s.instance = nil
	events := []Event{s.eventLocked(EventEditorLost, lostErr)}

	seed := s.snapshot.Clone()
	if seed.IsZero() {
		seed = form.BlankSchema()
	}
	attachCtx, next, started := s.beginAttachLocked(context.Background())
	s.lostErr = lostErr
	events = append(events, started...)
	s.mu.Unlock()

	s.logger.Warn("builder editor lost, reattaching", zap.Uint64("generation", gen), zap.Uint64("next", next))
	s.emit(events)

	go s.attach(attachCtx, next, seed)
}

func (s *Session) observe(gen uint64, schema form.Schema) {
	s.mu.Lock()
	if gen != s.generation || (s.state != StateReady && s.state != StateAttaching) {
		s.mu.Unlock()
		return
	}
	s.snapshot = schema.Clone()
	events := []Event{s.eventLocked(EventSchemaChanged, nil)}
	s.mu.Unlock()

	s.emit(events)
}

func (s *Session) markStalled(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state != StateAttaching || s.attachErr != nil || s.stalled {
		s.mu.Unlock()
		return
	}
	s.stalled = true
	stallErr := &AttachError{
		Mount:      s.mount,
		Generation: gen,
		Cause:      fmt.Errorf("no ready signal after %s", s.stallAfter),
	}
	events := []Event{s.eventLocked(EventAttachStalled, stallErr)}
	s.mu.Unlock()

	s.logger.Warn("builder attach stalled", zap.Uint64("generation", gen), zap.Duration("after", s.stallAfter))
	s.emit(events)
}

// Wait blocks until the current attachment is ready, fails, or is abandoned.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()

	for {
		s.mu.Lock()
		switch {
		case s.generation != gen:
			s.mu.Unlock()
			return ErrDetached
		case s.state == StateReady:
			s.mu.Unlock()
			return nil
		case s.state == StateAttaching && s.attachErr != nil:
			err := s.attachErr
			s.mu.Unlock()
			return err
		case s.state == StateDestroyed:
			s.mu.Unlock()
			return ErrDetached
		case s.state != StateAttaching:
			s.mu.Unlock()
			return ErrEditorNotAttached
		}
		done := s.done
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Save persists the latest schema. Sessions seeded from a record update it
// (same id and path); blank sessions create a new draft record named by
// SaveWithName or the NameSource and bind to it for subsequent saves.
func (s *Session) Save(ctx context.Context, options ...SaveOption) (form.Record, error) {
	cfg := saveConfig{}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return form.Record{}, ErrEditorNotAttached
	}
	gen := s.generation
	snapshot := s.snapshot.Clone()
	var bound *form.Record
	if s.record != nil {
		clone := s.record.Clone()
		bound = &clone
	}
	s.mu.Unlock()

	var (
		saved form.Record
		err   error
	)
	if bound != nil {
		revised := bound.Revise(snapshot)
		if cfg.name != "" {
			revised.Name = cfg.name
		}
		saved, err = s.catalog.UpdateForm(ctx, revised)
		if err != nil {
			return form.Record{}, fmt.Errorf("builder: update form %q: %w", bound.ID, err)
		}
	} else {
		name := cfg.name
		if name == "" && s.names != nil {
			name, err = s.names.RequestName(ctx, snapshot.Title())
			if err != nil {
				return form.Record{}, fmt.Errorf("builder: request name: %w", err)
			}
		}
		record, err := form.NewRecord(name, snapshot)
		if err != nil {
			return form.Record{}, err
		}
		saved, err = s.catalog.CreateForm(ctx, record)
		if err != nil {
			return form.Record{}, fmt.Errorf("builder: create form %q: %w", record.ID, err)
		}
	}

	s.mu.Lock()
	var events []Event
	if gen == s.generation && s.state == StateReady {
		clone := saved.Clone()
		s.record = &clone
		s.seedKey = seedKeyFor(&clone)
		events = append(events, s.eventLocked(EventSaved, nil))
	}
	s.mu.Unlock()

	s.logger.Info("builder saved form", zap.String("form", saved.ID), zap.Bool("created", bound == nil))
	s.emit(events)
	return saved, nil
}

// Clear resets the attached editor to a blank schema without detaching and
// forgets the bound record, discarding unsaved changes.
func (s *Session) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateReady || s.instance == nil {
		s.mu.Unlock()
		return ErrEditorNotAttached
	}
	inst := s.instance
	gen := s.generation
	s.mu.Unlock()

	blank := form.BlankSchema()
	if err := inst.Reset(blank); err != nil {
		return fmt.Errorf("builder: reset editor: %w", err)
	}

	s.mu.Lock()
	var events []Event
	if gen == s.generation && s.state == StateReady {
		s.snapshot = blank
		s.record = nil
		s.seedKey = seedKeyFor(nil)
		events = append(events, s.eventLocked(EventCleared, nil))
	}
	s.mu.Unlock()

	s.emit(events)
	return nil
}

// Detach releases the current editor instance and moves to Destroyed. It is a
// no-op when nothing is attached.
func (s *Session) Detach() {
	s.mu.Lock()
	if s.state != StateAttaching && s.state != StateReady {
		s.mu.Unlock()
		return
	}
	events := s.teardownLocked()
	s.mu.Unlock()

	s.logger.Info("builder detached")
	s.emit(events)
}

// Snapshot returns the latest schema observed from the ready editor.
func (s *Session) Snapshot() (form.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return nil, ErrEditorNotAttached
	}
	return s.snapshot.Clone(), nil
}

// Status reports the current state of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:      s.state,
		Mode:       ModeCreate,
		Generation: s.generation,
		Stalled:    s.stalled,
		Components: s.snapshot.ComponentCount(),
		err:        s.attachErr,
	}
	if st.err == nil {
		st.err = s.lostErr
	}
	if s.record != nil {
		st.Mode = ModeEdit
		st.FormID = s.record.ID
	}
	if st.err != nil {
		st.Error = st.err.Error()
	} else if s.stalled {
		st.Error = fmt.Sprintf("editor has not finished loading after %s", s.stallAfter)
	}
	return st
}

// teardownLocked releases the instance before the session leaves the
// Attaching/Ready state. Callers hold s.mu.
func (s *Session) teardownLocked() []Event {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.stopStallLocked()
	if s.instance != nil {
		if err := s.instance.Destroy(); err != nil {
			s.logger.Warn("editor destroy failed", zap.Uint64("generation", s.generation), zap.Error(err))
		}
		s.instance = nil
	}
	s.closeDoneLocked()

	s.generation++
	s.state = StateDestroyed
	s.record = nil
	s.seedKey = ""
	s.snapshot = nil
	s.attachErr = nil
	s.lostErr = nil
	s.stalled = false
	return []Event{s.eventLocked(EventStateChanged, nil)}
}

func (s *Session) stopStallLocked() {
	if s.stallTimer != nil {
		s.stallTimer.Stop()
		s.stallTimer = nil
	}
}

func (s *Session) closeDoneLocked() {
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
}

func (s *Session) eventLocked(kind EventKind, err error) Event {
	ev := Event{
		Kind:       kind,
		State:      s.state,
		Generation: s.generation,
		Err:        err,
	}
	if s.record != nil {
		ev.FormID = s.record.ID
	}
	return ev
}

func (s *Session) emit(events []Event) {
	if s.listener == nil {
		return
	}
	for _, ev := range events {
		s.listener(ev)
	}
}

func seedKeyFor(record *form.Record) string {
	if record == nil {
		return "new:"
	}
	return "form:" + record.ID
}
