package builder_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-formembed/pkg/builder"
	"github.com/goliatone/go-formembed/pkg/catalog"
	"github.com/goliatone/go-formembed/pkg/form"
	"github.com/goliatone/go-formembed/pkg/testsupport"
)

func newCatalog(t *testing.T) *catalog.Memory {
	t.Helper()
	mem, err := catalog.NewMemory(catalog.WithSeed(catalog.DefaultSeed()...))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return mem
}

func newSession(t *testing.T, editor builder.Editor, cat builder.Catalog, opts ...builder.Option) *builder.Session {
	t.Helper()
	session, err := builder.NewSession(editor, cat, opts...)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(session.Detach)
	return session
}

func waitReady(t *testing.T, session *builder.Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := session.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type recorder struct {
	mu     sync.Mutex
	events []builder.Event
}

func (r *recorder) listen(ev builder.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) kinds() []builder.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]builder.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) has(kind builder.EventKind) bool {
	for _, k := range r.kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

func recordWithSchema(id, name, schema string) *form.Record {
	return &form.Record{
		ID:     id,
		Name:   name,
		Path:   id,
		Status: form.StatusPublished,
		Schema: form.Schema(schema),
	}
}

func TestSessionStartsEmpty(t *testing.T) {
	session := newSession(t, builder.NewStaticEditor(), newCatalog(t))
	status := session.Status()
	if status.State != builder.StateEmpty {
		t.Fatalf("expected empty, got %s", status.State)
	}
	if _, err := session.Snapshot(); !errors.Is(err, builder.ErrEditorNotAttached) {
		t.Fatalf("expected ErrEditorNotAttached, got %v", err)
	}
}

func TestMountCreateModeSeedsBlankSchema(t *testing.T) {
	editor := builder.NewStaticEditor()
	session := newSession(t, editor, newCatalog(t),
		builder.WithAttachOptions(builder.AttachOptions{NoDefaultSubmitButton: true}))

	if err := session.Mount(context.Background(), nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitReady(t, session)

	status := session.Status()
	if status.State != builder.StateReady || status.Mode != builder.ModeCreate {
		t.Fatalf("unexpected status: %+v", status)
	}
	instances := editor.Instances()
	if len(instances) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(instances))
	}
	if !instances[0].Seed().Equal(form.BlankSchema()) {
		t.Fatalf("expected blank seed, got %s", instances[0].Seed())
	}
	if !instances[0].Options().NoDefaultSubmitButton {
		t.Fatal("attach options were not forwarded")
	}
	if instances[0].Mount() != builder.DefaultMount {
		t.Fatalf("unexpected mount %q", instances[0].Mount())
	}
}

func TestMountDifferentSeedReplacesInstance(t *testing.T) {
	editor := builder.NewStaticEditor()
	session := newSession(t, editor, newCatalog(t))
	ctx := context.Background()

	recordA := recordWithSchema("a", "Form A", `{"title":"Form A","components":[]}`)
	recordB := recordWithSchema("b", "Form B", `{"title":"Form B","components":[{"type":"email"}]}`)

	if err := session.Mount(ctx, recordA); err != nil {
		t.Fatalf("mount A: %v", err)
	}
	waitReady(t, session)
	if err := session.Mount(ctx, recordB); err != nil {
		t.Fatalf("mount B: %v", err)
	}
	waitReady(t, session)

	if live := editor.Live(); live != 1 {
		t.Fatalf("expected exactly one live instance, got %d", live)
	}
	instances := editor.Instances()
	if !instances[0].Destroyed() {
		t.Fatal("instance seeded with A was not destroyed")
	}
	if !instances[1].Seed().Equal(recordB.Schema) {
		t.Fatalf("live instance seeded with %s", instances[1].Seed())
	}
	snapshot, err := session.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snapshot.Equal(recordB.Schema) {
		t.Fatalf("snapshot %s, want %s", snapshot, recordB.Schema)
	}
	if status := session.Status(); status.FormID != "b" || status.Mode != builder.ModeEdit {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestMountSameSeedIsNoop(t *testing.T) {
	editor := builder.NewStaticEditor()
	session := newSession(t, editor, newCatalog(t))
	ctx := context.Background()
	record := recordWithSchema("a", "Form A", `{"components":[]}`)

	if err := session.Mount(ctx, record); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitReady(t, session)
	generation := session.Status().Generation

	if err := session.Mount(ctx, record); err != nil {
		t.Fatalf("remount: %v", err)
	}
	if got := len(editor.Instances()); got != 1 {
		t.Fatalf("expected a single attach, got %d", got)
	}
	if got := session.Status().Generation; got != generation {
		t.Fatalf("generation moved from %d to %d", generation, got)
	}
}

func TestSaveCreateModeBuildsDraftRecord(t *testing.T) {
	editor := builder.NewStaticEditor()
	cat := newCatalog(t)
	var suggested string
	names := builder.NameSourceFunc(func(_ context.Context, suggestion string) (string, error) {
		suggested = suggestion
		return "Survey", nil
	})
	session := newSession(t, editor, cat, builder.WithNameSource(names))
	ctx := context.Background()

	if err := session.Mount(ctx, nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitReady(t, session)

	edited := form.Schema(`{"title":"Quick survey","components":[{"type":"radio"}]}`)
	if err := editor.Instances()[0].Edit(edited); err != nil {
		t.Fatalf("edit: %v", err)
	}

	saved, err := session.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if suggested != "Quick survey" {
		t.Fatalf("expected title suggestion, got %q", suggested)
	}
	if saved.ID != "survey" || saved.Path != "survey" || saved.Name != "Survey" {
		t.Fatalf("unexpected identity: %+v", saved)
	}
	if saved.Status != form.StatusDraft || saved.Submissions != 0 || saved.Views != 0 {
		t.Fatalf("unexpected lifecycle fields: %+v", saved)
	}
	if !saved.Schema.Equal(edited) {
		t.Fatalf("saved schema %s, want %s", saved.Schema, edited)
	}
	if _, err := cat.GetForm(ctx, "survey"); err != nil {
		t.Fatalf("catalog lookup: %v", err)
	}

	status := session.Status()
	if status.Mode != builder.ModeEdit || status.FormID != "survey" {
		t.Fatalf("session did not bind created record: %+v", status)
	}

	again, err := session.Save(ctx)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if again.ID != "survey" || cat.Len() != 4 {
		t.Fatalf("second save created a new record: id=%q len=%d", again.ID, cat.Len())
	}
}

func TestSaveWithExplicitName(t *testing.T) {
	session := newSession(t, builder.NewStaticEditor(), newCatalog(t))
	ctx := context.Background()
	if err := session.Mount(ctx, nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitReady(t, session)

	saved, err := session.Save(ctx, builder.SaveWithName("Customer Feedback Round 2!"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID != "customer-feedback-round-2" {
		t.Fatalf("unexpected id %q", saved.ID)
	}
}

func TestSaveCreateModeRequiresName(t *testing.T) {
	cat := newCatalog(t)
	names := builder.NameSourceFunc(func(context.Context, string) (string, error) {
		return "   ", nil
	})
	session := newSession(t, builder.NewStaticEditor(), cat, builder.WithNameSource(names))
	ctx := context.Background()
	if err := session.Mount(ctx, nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitReady(t, session)

	if _, err := session.Save(ctx); !errors.Is(err, builder.ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if cat.Len() != 3 {
		t.Fatalf("catalog changed: %d records", cat.Len())
	}
}

func TestSaveEditModePreservesIdentity(t *testing.T) {
	editor := builder.NewStaticEditor()
	cat := newCatalog(t)
	session := newSession(t, editor, cat)
	ctx := context.Background()

	existing, err := cat.GetForm(ctx, "feedback")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := session.Mount(ctx, &existing); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitReady(t, session)

	edited := form.Schema(`{"title":"Customer Feedback 2025","components":[{"type":"textarea"}]}`)
	if err := editor.Instances()[0].Edit(edited); err != nil {
		t.Fatalf("edit: %v", err)
	}
	saved, err := session.Save(ctx)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID != "feedback" || saved.Path != "feedback" {
		t.Fatalf("identity changed: %q/%q", saved.ID, saved.Path)
	}
	if saved.Name != "Customer Feedback 2025" {
		t.Fatalf("expected name refreshed from title, got %q", saved.Name)
	}
	if !saved.Schema.Equal(edited) {
		t.Fatalf("schema not saved: %s", saved.Schema)
	}
	if cat.Len() != 3 {
		t.Fatalf("edit save created a record: %d", cat.Len())
	}
}

func TestSaveWithoutReadyEditor(t *testing.T) {
	gate := make(chan struct{})
	session := newSession(t, builder.NewStaticEditor(builder.WithReadyGate(gate)), newCatalog(t))
	ctx := context.Background()

	if _, err := session.Save(ctx); !errors.Is(err, builder.ErrEditorNotAttached) {
		t.Fatalf("empty: expected ErrEditorNotAttached, got %v", err)
	}
	if err := session.Mount(ctx, nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if _, err := session.Save(ctx); !errors.Is(err, builder.ErrEditorNotAttached) {
		t.Fatalf("attaching: expected ErrEditorNotAttached, got %v", err)
	}
	close(gate)
	waitReady(t, session)
}

func TestSchemaChangesKeepLatestSnapshot(t *testing.T) {
	editor := builder.NewStaticEditor()
	rec := &recorder{}
	session := newSession(t, editor, newCatalog(t), builder.WithListener(rec.listen))
	ctx := context.Background()
	if err := session.Mount(ctx, nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitReady(t, session)

	inst := editor.Instances()[0]
	first := testsupport.MustSchema(t, `{"components":[{"type":"textfield"}]}`)
	second := testsupport.MustSchema(t, `{"components":[{"type":"textfield"},{"type":"email"}]}`)
	_ = inst.Edit(first)
	_ = inst.Edit(second)

	snapshot, err := session.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snapshot.Equal(second) {
		t.Fatalf("snapshot %s, want %s", snapshot, second)
	}
	if got := session.Status().Components; got != 2 {
		t.Fatalf("expected 2 components, got %d", got)
	}
	if !rec.has(builder.EventSchemaChanged) {
		t.Fatalf("no schema change events: %v", rec.kinds())
	}
}

func TestLateReadyAfterDetachIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	editor := builder.NewStaticEditor(builder.WithReadyGate(gate), builder.WithIgnoreCancel())
	session := newSession(t, editor, newCatalog(t))

	if err := session.Mount(context.Background(), nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	session.Detach()
	close(gate)

	eventually(t, func() bool {
		instances := editor.Instances()
		return len(instances) == 1 && instances[0].Destroyed()
	})
	if state := session.Status().State; state != builder.StateDestroyed {
		t.Fatalf("late ready changed state to %s", state)
	}
	if editor.Live() != 0 {
		t.Fatalf("expected no live instances, got %d", editor.Live())
	}
}

func TestStaleAttachAfterRemountIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	editor := builder.NewStaticEditor(builder.WithReadyGate(gate), builder.WithIgnoreCancel())
	session := newSession(t, editor, newCatalog(t))
	ctx := context.Background()

	recordA := recordWithSchema("a", "Form A", `{"title":"A"}`)
	recordB := recordWithSchema("b", "Form B", `{"title":"B"}`)
	if err := session.Mount(ctx, recordA); err != nil {
		t.Fatalf("mount A: %v", err)
	}
	if err := session.Mount(ctx, recordB); err != nil {
		t.Fatalf("mount B: %v", err)
	}
	close(gate)
	waitReady(t, session)

	eventually(t, func() bool { return len(editor.Instances()) == 2 })
	eventually(t, func() bool { return editor.Live() == 1 })

	snapshot, err := session.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snapshot.Equal(recordB.Schema) {
		t.Fatalf("session holds %s, want B", snapshot)
	}
}

func TestWaitReportsDetach(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	session := newSession(t, builder.NewStaticEditor(builder.WithReadyGate(gate)), newCatalog(t))
	if err := session.Mount(context.Background(), nil); err != nil {
		t.Fatalf("mount: %v", err)
	}

	result := make(chan error, 1)
	go func() { result <- session.Wait(context.Background()) }()
	time.Sleep(10 * time.Millisecond)
	session.Detach()

	select {
	case err := <-result:
		if !errors.Is(err, builder.ErrDetached) {
			t.Fatalf("expected ErrDetached, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not return")
	}
}

func TestAttachFailureStaysAttaching(t *testing.T) {
	cause := errors.New("renderer script blocked")
	rec := &recorder{}
	session := newSession(t, builder.NewStaticEditor(builder.WithAttachFailure(cause)), newCatalog(t),
		builder.WithListener(rec.listen))
	ctx := context.Background()

	if err := session.Mount(ctx, nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	err := session.Wait(waitCtx)
	if !errors.Is(err, builder.ErrEditorAttachFailure) || !errors.Is(err, cause) {
		t.Fatalf("expected attach failure wrapping cause, got %v", err)
	}
	var attachErr *builder.AttachError
	if !errors.As(err, &attachErr) || attachErr.Mount != builder.DefaultMount {
		t.Fatalf("expected *AttachError for default mount, got %#v", err)
	}

	status := session.Status()
	if status.State != builder.StateAttaching {
		t.Fatalf("expected attaching, got %s", status.State)
	}
	if !errors.Is(status.Err(), builder.ErrEditorAttachFailure) || status.Error == "" {
		t.Fatalf("status does not report the failure: %+v", status)
	}
	if !rec.has(builder.EventAttachFailed) {
		t.Fatalf("missing attach_failed event: %v", rec.kinds())
	}
	if _, err := session.Save(ctx, builder.SaveWithName("X")); !errors.Is(err, builder.ErrEditorNotAttached) {
		t.Fatalf("expected ErrEditorNotAttached, got %v", err)
	}
}

func TestAttachStallIsReported(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	rec := &recorder{}
	session := newSession(t, builder.NewStaticEditor(builder.WithReadyGate(gate)), newCatalog(t),
		builder.WithStallAfter(20*time.Millisecond), builder.WithListener(rec.listen))

	if err := session.Mount(context.Background(), nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	eventually(t, func() bool { return rec.has(builder.EventAttachStalled) })

	status := session.Status()
	if !status.Stalled || status.State != builder.StateAttaching {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestClearResetsEditorAndBinding(t *testing.T) {
	editor := builder.NewStaticEditor()
	cat := newCatalog(t)
	session := newSession(t, editor, cat)
	ctx := context.Background()

	if err := session.Clear(ctx); !errors.Is(err, builder.ErrEditorNotAttached) {
		t.Fatalf("expected ErrEditorNotAttached, got %v", err)
	}

	record := recordWithSchema("feedback", "Customer Feedback", `{"components":[{"type":"textarea"}]}`)
	if err := session.Mount(ctx, record); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitReady(t, session)

	if err := session.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	status := session.Status()
	if status.State != builder.StateReady || status.Mode != builder.ModeCreate || status.FormID != "" {
		t.Fatalf("unexpected status after clear: %+v", status)
	}
	if len(editor.Instances()) != 1 {
		t.Fatal("clear must not reattach")
	}
	if got := editor.Instances()[0].CurrentSchema(); !got.Equal(form.BlankSchema()) {
		t.Fatalf("editor holds %s after clear", got)
	}

	saved, err := session.Save(ctx, builder.SaveWithName("Fresh Start"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID != "fresh-start" {
		t.Fatalf("expected a new record, got %q", saved.ID)
	}
}

func TestDetachThenRemount(t *testing.T) {
	editor := builder.NewStaticEditor()
	session := newSession(t, editor, newCatalog(t))
	ctx := context.Background()

	session.Detach()
	if state := session.Status().State; state != builder.StateEmpty {
		t.Fatalf("detach of empty session changed state to %s", state)
	}

	if err := session.Mount(ctx, nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitReady(t, session)
	session.Detach()
	if state := session.Status().State; state != builder.StateDestroyed {
		t.Fatalf("expected destroyed, got %s", state)
	}
	if editor.Live() != 0 {
		t.Fatal("instance not released on detach")
	}

	if err := session.Mount(ctx, nil); err != nil {
		t.Fatalf("remount: %v", err)
	}
	waitReady(t, session)
	if editor.Live() != 1 {
		t.Fatalf("expected one live instance, got %d", editor.Live())
	}
}

func TestLostEditorReattachesWithLatestSnapshot(t *testing.T) {
	gate := make(chan struct{})
	editor := builder.NewStaticEditor(builder.WithReadyGate(gate))
	rec := &recorder{}
	session := newSession(t, editor, newCatalog(t), builder.WithListener(rec.listen))
	ctx := context.Background()

	record := recordWithSchema("test", "Contact Form", `{"title":"Contact Form","components":[]}`)
	if err := session.Mount(ctx, record); err != nil {
		t.Fatalf("mount: %v", err)
	}
	gate <- struct{}{}
	waitReady(t, session)

	first := editor.Instances()[0]
	edited := testsupport.MustSchema(t, `{"title":"Contact Form","components":[{"type":"email"}]}`)
	if err := first.Edit(edited); err != nil {
		t.Fatalf("edit: %v", err)
	}
	first.Disconnect()

	eventually(t, func() bool { return session.Status().State == builder.StateAttaching })
	status := session.Status()
	if !errors.Is(status.Err(), builder.ErrEditorAttachFailure) || !errors.Is(status.Err(), builder.ErrEditorLost) {
		t.Fatalf("expected a lost editor to be reported, got %v", status.Err())
	}
	if status.Error == "" {
		t.Fatal("expected a diagnosable status message")
	}
	if status.Mode != builder.ModeEdit || status.FormID != "test" {
		t.Fatalf("binding lost with the editor: %+v", status)
	}
	if _, err := session.Save(ctx); !errors.Is(err, builder.ErrEditorNotAttached) {
		t.Fatalf("expected ErrEditorNotAttached while reattaching, got %v", err)
	}

	gate <- struct{}{}
	eventually(t, func() bool { return session.Status().State == builder.StateReady })

	instances := editor.Instances()
	if len(instances) != 2 || editor.Live() != 1 {
		t.Fatalf("expected one replacement instance, got %d (%d live)", len(instances), editor.Live())
	}
	if !instances[1].Seed().Equal(edited) {
		t.Fatalf("replacement seeded with %s, want %s", instances[1].Seed(), edited)
	}
	if err := session.Status().Err(); err != nil {
		t.Fatalf("error not cleared after reattach: %v", err)
	}
	if !rec.has(builder.EventEditorLost) {
		t.Fatalf("no editor lost event: %v", rec.kinds())
	}

	if err := session.Clear(ctx); err != nil {
		t.Fatalf("clear after reattach: %v", err)
	}
}

func TestDetachDoesNotReportLostEditor(t *testing.T) {
	editor := builder.NewStaticEditor()
	rec := &recorder{}
	session := newSession(t, editor, newCatalog(t), builder.WithListener(rec.listen))

	if err := session.Mount(context.Background(), nil); err != nil {
		t.Fatalf("mount: %v", err)
	}
	waitReady(t, session)
	session.Detach()

	time.Sleep(20 * time.Millisecond)
	if rec.has(builder.EventEditorLost) {
		t.Fatalf("detach reported as a lost editor: %v", rec.kinds())
	}
	if state := session.Status().State; state != builder.StateDestroyed {
		t.Fatalf("expected destroyed, got %s", state)
	}
	if len(editor.Instances()) != 1 {
		t.Fatalf("detach should not reattach, got %d instances", len(editor.Instances()))
	}
}
