package meeting

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"meetwatch/internal/config"
	"meetwatch/internal/logging"
	"meetwatch/internal/notifications"
	"meetwatch/internal/pipelinectl"
	"meetwatch/internal/registry"
	"meetwatch/internal/services/automation"
	"meetwatch/internal/session"
	"meetwatch/internal/testsupport"
)

// trail records collaborator calls across fakes in order.
type trail struct {
	mu     sync.Mutex
	events []string
}

func (t *trail) add(event string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *trail) index(event string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.events {
		if e == event {
			return i
		}
	}
	return -1
}

func (t *trail) count(prefix string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.events {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// fakeDriver emulates a meeting page. Clicking a join button starts the
// admission countdown; the leave button appears after joinedAfter polls.
type fakeDriver struct {
	trail       *trail
	visible     map[string]bool
	reveals     map[string][]string
	joinButtons map[string]bool
	joinedAfter int
	listErr     error
	navigateErr error

	joinClicked bool
	polls       int
	clicks      []string
	typed       []string
	keys        []string
}

func newFakeDriver(tr *trail, visible ...string) *fakeDriver {
	d := &fakeDriver{
		trail:       tr,
		visible:     map[string]bool{},
		reveals:     map[string][]string{},
		joinButtons: map[string]bool{"Ask to join": true, "Join now": true, "Join": true},
		joinedAfter: -1,
	}
	for _, name := range visible {
		d.visible[name] = true
	}
	return d
}

func (d *fakeDriver) Click(_ context.Context, name string) (automation.ClickResult, error) {
	d.trail.add("click " + name)
	d.clicks = append(d.clicks, name)
	if !d.visible[name] {
		return automation.NotFound, nil
	}
	if d.joinButtons[name] {
		d.joinClicked = true
	}
	for _, revealed := range d.reveals[name] {
		d.visible[revealed] = true
	}
	return automation.Clicked, nil
}

func (d *fakeDriver) List(context.Context) ([]automation.Element, error) {
	d.trail.add("list")
	if d.listErr != nil {
		return nil, d.listErr
	}
	if d.joinClicked {
		d.polls++
		if d.joinedAfter >= 0 && d.polls >= d.joinedAfter {
			d.visible["Leave call"] = true
		}
	}
	names := make([]string, 0, len(d.visible))
	for name, ok := range d.visible {
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	elements := make([]automation.Element, 0, len(names))
	for _, name := range names {
		elements = append(elements, automation.Element{Role: "button", Name: name})
	}
	return elements, nil
}

func (d *fakeDriver) Type(_ context.Context, text string) error {
	d.trail.add("type " + text)
	d.typed = append(d.typed, text)
	return nil
}

func (d *fakeDriver) Key(_ context.Context, combo string) error {
	d.trail.add("key " + combo)
	d.keys = append(d.keys, combo)
	return nil
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.trail.add("navigate " + url)
	return d.navigateErr
}

type fakeAudio struct {
	trail      *trail
	ensureErr  error
	releaseErr error
	ensured    []string
	released   []string
}

func (a *fakeAudio) EnsureSink(_ context.Context, id string) error {
	a.trail.add("ensure " + id)
	if a.ensureErr != nil {
		return a.ensureErr
	}
	a.ensured = append(a.ensured, id)
	return nil
}

func (a *fakeAudio) ReleaseSink(_ context.Context, id string) error {
	a.trail.add("release " + id)
	if a.releaseErr != nil {
		return a.releaseErr
	}
	a.released = append(a.released, id)
	return nil
}

type fakeTranscribers struct {
	trail     *trail
	launchErr error
	record    *pipelinectl.Record
	running   bool
	launched  []string
	stops     int
}

func (f *fakeTranscribers) Launch(_ context.Context, id string) (pipelinectl.Record, error) {
	f.trail.add("launch " + id)
	if f.launchErr != nil {
		return pipelinectl.Record{}, f.launchErr
	}
	f.launched = append(f.launched, id)
	rec := pipelinectl.Record{PID: 4242, SessionID: id, StartedAt: time.Now()}
	f.record = &rec
	f.running = true
	return rec, nil
}

func (f *fakeTranscribers) Stop(context.Context) (pipelinectl.StopResult, error) {
	f.trail.add("stop")
	f.stops++
	if f.record == nil {
		return pipelinectl.StopResult{}, nil
	}
	result := pipelinectl.StopResult{PID: f.record.PID, SessionID: f.record.SessionID, WasRunning: f.running}
	f.record = nil
	f.running = false
	return result, nil
}

func (f *fakeTranscribers) Inspect() (pipelinectl.Status, error) {
	return pipelinectl.Status{Record: f.record, Running: f.running}, nil
}

type fakeHealth struct{ err error }

func (h fakeHealth) Health(context.Context) error { return h.err }

type fakeIndex struct {
	entries map[string]registry.Entry
}

func (i *fakeIndex) Record(_ context.Context, entry registry.Entry) error {
	if i.entries == nil {
		i.entries = map[string]registry.Entry{}
	}
	i.entries[entry.ID] = entry
	return nil
}

type fakeNotifier struct {
	events []notifications.Event
	err    error
}

func (f *fakeNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	f.events = append(f.events, event)
	return f.err
}

type harness struct {
	cfg          *config.Config
	store        *session.Store
	trail        *trail
	driver       *fakeDriver
	audio        *fakeAudio
	transcribers *fakeTranscribers
	index        *fakeIndex
	health       *fakeHealth
	notifier     *fakeNotifier
	sleeps       []time.Duration
	svc          *Service
}

func newHarness(t *testing.T, visible ...string) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	tr := &trail{}
	h := &harness{
		cfg:          cfg,
		store:        session.NewStore(cfg.Paths.MeetingsDir),
		trail:        tr,
		driver:       newFakeDriver(tr, visible...),
		audio:        &fakeAudio{trail: tr},
		transcribers: &fakeTranscribers{trail: tr},
		index:        &fakeIndex{},
		health:       &fakeHealth{},
		notifier:     &fakeNotifier{},
	}
	h.svc = New(cfg, Dependencies{
		Store:        h.store,
		Driver:       h.driver,
		Audio:        h.audio,
		Transcribers: h.transcribers,
		Health:       h.health,
		Index:        h.index,
		Notifier:     h.notifier,
	}, logging.NewNop())
	h.svc.sleep = func(ctx context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return ctx.Err()
	}
	return h
}

var errBoom = errors.New("boom")
