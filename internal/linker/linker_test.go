package linker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"zapmotor/internal/browser"
	"zapmotor/internal/domain"
	"zapmotor/internal/store"
	"zapmotor/internal/waweb"
)

type fakeStore struct {
	mu      sync.Mutex
	updates []store.Fields
	err     error
}

func (s *fakeStore) UpdateConnection(ctx context.Context, id string, f store.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.updates = append(s.updates, f)
	return nil
}

func (s *fakeStore) statuses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, f := range s.updates {
		if st, ok := f["status"].(string); ok {
			out = append(out, st)
		}
	}
	return out
}

// fakePage scripts the pairing screens: when the chat list becomes visible,
// which QR payload or login code attribute is present.
type fakePage struct {
	mu        sync.Mutex
	authAfter int // chat list visible from the Nth probe on; -1 = never
	authProbe int
	qrPayload string
	codeAttr  string

	navigated []string
	clicked   []string
	typed     []string
	navErr    error
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigated = append(p.navigated, url)
	return p.navErr
}

func (p *fakePage) Reload(ctx context.Context) error { return nil }

func (p *fakePage) WaitVisible(ctx context.Context, sel browser.Selector, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sel.CSS == waweb.ChatList.CSS {
		p.authProbe++
		if p.authAfter < 0 {
			return false, nil
		}
		return p.authProbe > p.authAfter, nil
	}
	return false, nil
}

func (p *fakePage) Attribute(ctx context.Context, sel browser.Selector, name string, timeout time.Duration) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch name {
	case waweb.QRAttr:
		return p.qrPayload, p.qrPayload != "", nil
	case waweb.LoginCodeAttr:
		return p.codeAttr, p.codeAttr != "", nil
	}
	return "", false, nil
}

func (p *fakePage) Text(ctx context.Context, sel browser.Selector, timeout time.Duration) (string, bool, error) {
	return "", false, nil
}

func (p *fakePage) Screenshot(ctx context.Context, sel browser.Selector, timeout time.Duration) ([]byte, error) {
	return nil, errors.New("no canvas")
}

func (p *fakePage) Type(ctx context.Context, sel browser.Selector, text string, delay func() time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed = append(p.typed, text)
	return nil
}

func (p *fakePage) Click(ctx context.Context, sel browser.Selector, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clicked = append(p.clicked, sel.Name)
	return nil
}

type fakeSession struct {
	page   *fakePage
	closed int
}

func (s *fakeSession) Page(ctx context.Context) (browser.Page, error) { return s.page, nil }
func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

type fakeLauncher struct {
	session  *fakeSession
	launches int
	err      error
}

func (l *fakeLauncher) Launch(ctx context.Context, dir string) (browser.Session, error) {
	l.launches++
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

func newLinker(st *fakeStore, la *fakeLauncher, timeout time.Duration) *Linker {
	return &Linker{
		Store:        st,
		Browser:      la,
		SessionsBase: "/tmp/test_sessions",
		Timeout:      timeout,
		PollInterval: time.Millisecond,
	}
}

func TestQRPublishedOnce(t *testing.T) {
	st := &fakeStore{}
	sess := &fakeSession{page: &fakePage{authAfter: -1, qrPayload: "QR-PAYLOAD-1"}}
	l := newLinker(st, &fakeLauncher{session: sess}, 30*time.Millisecond)

	if err := l.Run(context.Background(), "conn_1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One awaiting_scan publish despite many polls seeing the same payload,
	// then the single terminal update.
	want := []string{string(domain.ConnAwaitingScan), string(domain.ConnUnlinked)}
	got := st.statuses()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if sess.closed != 1 {
		t.Fatalf("expected exactly one close, got %d", sess.closed)
	}
}

func TestChangedQRRepublished(t *testing.T) {
	st := &fakeStore{}
	page := &fakePage{authAfter: -1, qrPayload: "QR-1"}
	sess := &fakeSession{page: page}
	l := newLinker(st, &fakeLauncher{session: sess}, 40*time.Millisecond)

	go func() {
		time.Sleep(15 * time.Millisecond)
		page.mu.Lock()
		page.qrPayload = "QR-2"
		page.mu.Unlock()
	}()

	if err := l.Run(context.Background(), "conn_1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var scans int
	for _, f := range st.updates {
		if f["status"] == string(domain.ConnAwaitingScan) {
			scans++
		}
	}
	if scans != 2 {
		t.Fatalf("expected 2 challenge publishes for 2 payloads, got %d", scans)
	}
}

func TestAuthWinsOverStaleChallenge(t *testing.T) {
	st := &fakeStore{}
	sess := &fakeSession{page: &fakePage{authAfter: 0, qrPayload: "STALE-QR"}}
	l := newLinker(st, &fakeLauncher{session: sess}, time.Second)

	if err := l.Run(context.Background(), "conn_1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := st.statuses()
	if len(got) != 1 || got[0] != string(domain.ConnLinked) {
		t.Fatalf("expected single conectado update, got %v", got)
	}
	f := st.updates[0]
	if _, ok := f["qrCode"].(store.DeleteSentinel); !ok {
		t.Fatalf("expected qrCode cleared on link, got %v", f["qrCode"])
	}
	if _, ok := f["conectadoEm"].(store.TimestampSentinel); !ok {
		t.Fatal("expected server timestamp on conectadoEm")
	}
	if sess.closed != 1 {
		t.Fatalf("expected exactly one close, got %d", sess.closed)
	}
}

func TestTimeoutPublishesOnceAfterDeadline(t *testing.T) {
	st := &fakeStore{}
	sess := &fakeSession{page: &fakePage{authAfter: -1}}
	timeout := 30 * time.Millisecond
	l := newLinker(st, &fakeLauncher{session: sess}, timeout)

	start := time.Now()
	if err := l.Run(context.Background(), "conn_1", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Fatalf("terminal update published before the deadline: %v < %v", elapsed, timeout)
	}

	got := st.statuses()
	if len(got) != 1 || got[0] != string(domain.ConnUnlinked) {
		t.Fatalf("expected single desconectado update, got %v", got)
	}
	if st.updates[0]["erroMsg"] == "" {
		t.Fatal("expected a timeout message")
	}
	if sess.closed != 1 {
		t.Fatalf("expected exactly one close, got %d", sess.closed)
	}
}

func TestLoginCodeFlow(t *testing.T) {
	st := &fakeStore{}
	page := &fakePage{authAfter: 3, codeAttr: "t,s,c,8,e,9,4,x"}
	sess := &fakeSession{page: page}
	l := newLinker(st, &fakeLauncher{session: sess}, time.Second)

	if err := l.Run(context.Background(), "conn_1", "+5511912345678"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := st.statuses()
	if len(got) != 2 || got[0] != string(domain.ConnAwaitingCode) || got[1] != string(domain.ConnLinked) {
		t.Fatalf("expected awaiting_code_entry then conectado, got %v", got)
	}
	if st.updates[0]["loginCode"] != "TSC8-E94X" {
		t.Fatalf("expected normalized code, got %v", st.updates[0]["loginCode"])
	}
}

func TestStoreFailureStillClosesBrowser(t *testing.T) {
	st := &fakeStore{err: store.ErrNotFound}
	sess := &fakeSession{page: &fakePage{authAfter: 0}}
	l := newLinker(st, &fakeLauncher{session: sess}, time.Second)

	// Terminal publish fails (document deleted externally); the run must
	// still complete and release the browser.
	if err := l.Run(context.Background(), "conn_1", ""); err != nil {
		t.Fatalf("teardown store failure must not propagate: %v", err)
	}
	if sess.closed != 1 {
		t.Fatalf("expected exactly one close, got %d", sess.closed)
	}
}

func TestNavigationFailurePublishesError(t *testing.T) {
	st := &fakeStore{}
	sess := &fakeSession{page: &fakePage{authAfter: -1, navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}}
	l := newLinker(st, &fakeLauncher{session: sess}, time.Second)

	if err := l.Run(context.Background(), "conn_1", ""); err == nil {
		t.Fatal("expected navigation error")
	}
	got := st.statuses()
	if len(got) != 1 || got[0] != string(domain.ConnUnlinked) {
		t.Fatalf("expected desconectado terminal update, got %v", got)
	}
	if sess.closed != 1 {
		t.Fatalf("expected exactly one close, got %d", sess.closed)
	}
}

func TestLaunchFailurePublishesWithoutClose(t *testing.T) {
	st := &fakeStore{}
	l := newLinker(st, &fakeLauncher{err: errors.New("no chromium")}, time.Second)

	if err := l.Run(context.Background(), "conn_1", ""); err == nil {
		t.Fatal("expected launch error")
	}
	got := st.statuses()
	if len(got) != 1 || got[0] != string(domain.ConnUnlinked) {
		t.Fatalf("expected desconectado update, got %v", got)
	}
}

func TestNormalizeLoginCode(t *testing.T) {
	cases := map[string]string{
		"t,s,c,8,e,9,4,x": "TSC8-E94X",
		"TSC8E94X":        "TSC8-E94X",
		"ab-12":           "AB12",
		"":                "",
	}
	for in, want := range cases {
		if got := NormalizeLoginCode(in); got != want {
			t.Errorf("NormalizeLoginCode(%q) = %q, want %q", in, got, want)
		}
	}
}
