// Package linker pairs a connection's browser session with the messaging
// account. It drives one persistent browser context through the pairing
// screens, publishes challenge material (QR payload or numeric code) to the
// state store for a human to complete, and settles the connection document in
// a terminal status when the session links, times out or crashes.
package linker

import (
	"context"
	"encoding/base64"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"zapmotor/internal/browser"
	"zapmotor/internal/domain"
	"zapmotor/internal/observability"
	"zapmotor/internal/pacing"
	"zapmotor/internal/store"
	"zapmotor/internal/waweb"
)

type Store interface {
	UpdateConnection(ctx context.Context, id string, f store.Fields) error
}

type Linker struct {
	Store        Store
	Browser      browser.Launcher
	SessionsBase string

	// Total pairing budget and the pause between detection passes.
	Timeout      time.Duration
	PollInterval time.Duration
}

// linkState enumerates the outcomes of one detection pass. Keeping it a real
// type makes the auth-before-challenge priority an explicit ordering instead
// of incidental code order.
type linkState int

const (
	stateDetecting linkState = iota
	stateLinked
	stateTimedOut
	stateFailed
)

// run is the mutable state of one pairing attempt. lastQR/lastCode suppress
// re-publishing an unchanged challenge.
type run struct {
	phone            string
	phoneFlowStarted bool
	lastQR           string
	lastCode         string
}

func (l *Linker) timeout() time.Duration {
	if l.Timeout > 0 {
		return l.Timeout
	}
	return 150 * time.Second
}

func (l *Linker) pollInterval() time.Duration {
	if l.PollInterval > 0 {
		return l.PollInterval
	}
	return 2 * time.Second
}

// checkWait bounds each individual element probe within a pass.
func (l *Linker) checkWait() time.Duration {
	w := l.pollInterval() / 2
	if w > time.Second {
		w = time.Second
	}
	return w
}

// Run drives one pairing attempt for the connection. The returned error is
// for the job queue's benefit; the user-visible outcome is whatever terminal
// status was published.
func (l *Linker) Run(ctx context.Context, connectionID, phoneNumber string) error {
	log := slog.With("connection_id", connectionID)

	sessionDir := filepath.Join(l.SessionsBase, connectionID)
	sess, err := l.Browser.Launch(ctx, sessionDir)
	if err != nil {
		observability.LinkRuns.WithLabelValues("failed").Inc()
		l.publishTerminal(ctx, connectionID, domain.ConnUnlinked, "browser launch failed: "+err.Error(), false)
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("browser close failed", "err", cerr)
		}
	}()

	st, runErr := l.drive(ctx, sess, connectionID, phoneNumber)

	switch st {
	case stateLinked:
		observability.LinkRuns.WithLabelValues("linked").Inc()
		log.Info("session linked")
		l.publishTerminal(ctx, connectionID, domain.ConnLinked, "", true)
		return nil
	case stateTimedOut:
		observability.LinkRuns.WithLabelValues("timeout").Inc()
		log.Warn("pairing timed out", "timeout", l.timeout())
		l.publishTerminal(ctx, connectionID, domain.ConnUnlinked,
			"timeout: pairing was not completed in time", false)
		return nil
	default:
		observability.LinkRuns.WithLabelValues("failed").Inc()
		msg := "pairing failed"
		if runErr != nil {
			msg = runErr.Error()
			log.Error("pairing failed", "err", runErr)
		}
		l.publishTerminal(ctx, connectionID, domain.ConnUnlinked, msg, false)
		return runErr
	}
}

func (l *Linker) drive(ctx context.Context, sess browser.Session, connectionID, phoneNumber string) (linkState, error) {
	page, err := sess.Page(ctx)
	if err != nil {
		return stateFailed, err
	}

	navURL := waweb.HomeURL()
	if phoneNumber != "" {
		navURL = waweb.ComposeURL(phoneNumber)
	}
	if err := page.Navigate(ctx, navURL); err != nil {
		return stateFailed, err
	}

	r := &run{phone: phoneNumber}
	deadline := time.Now().Add(l.timeout())

	for {
		if time.Now().After(deadline) {
			return stateTimedOut, nil
		}
		st, err := l.pollOnce(ctx, page, connectionID, r)
		if err != nil {
			return stateFailed, err
		}
		if st == stateLinked {
			return stateLinked, nil
		}
		if err := pacing.Sleep(ctx, l.pollInterval()); err != nil {
			return stateFailed, err
		}
	}
}

// pollOnce is the single dispatch point of the detection loop. The
// authenticated marker is always probed before any challenge material: the
// challenge element can linger in the DOM for a beat after a successful scan,
// and publishing it again would race the true success.
func (l *Linker) pollOnce(ctx context.Context, page browser.Page, connectionID string, r *run) (linkState, error) {
	ok, err := page.WaitVisible(ctx, waweb.ChatList, l.checkWait())
	if err != nil {
		return stateFailed, err
	}
	if ok {
		return stateLinked, nil
	}

	if r.phone != "" {
		if err := l.checkLoginCode(ctx, page, connectionID, r); err != nil {
			return stateFailed, err
		}
		if r.lastCode != "" {
			return stateDetecting, nil
		}
	}

	if err := l.checkQR(ctx, page, connectionID, r); err != nil {
		return stateFailed, err
	}
	return stateDetecting, nil
}

func (l *Linker) checkQR(ctx context.Context, page browser.Page, connectionID string, r *run) error {
	payload, found := l.readQR(ctx, page)
	if !found || payload == r.lastQR {
		return nil
	}
	err := l.Store.UpdateConnection(ctx, connectionID, store.Fields{
		"status":    string(domain.ConnAwaitingScan),
		"qrCode":    payload,
		"loginCode": store.Delete,
	})
	if err != nil {
		return err
	}
	r.lastQR = payload
	observability.ChallengePublished.WithLabelValues("qr").Inc()
	return nil
}

// readQR prefers the machine-readable pairing payload; when that attribute
// is unreadable it falls back to screenshotting the QR canvas as a data URL,
// which the original UI rendered directly.
func (l *Linker) readQR(ctx context.Context, page browser.Page) (string, bool) {
	payload, found, err := page.Attribute(ctx, waweb.QRContainer, waweb.QRAttr, l.checkWait())
	if err == nil && found && payload != "" {
		return payload, true
	}
	png, err := page.Screenshot(ctx, waweb.QRCanvas, l.checkWait())
	if err != nil || len(png) == 0 {
		return "", false
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), true
}

func (l *Linker) checkLoginCode(ctx context.Context, page browser.Page, connectionID string, r *run) error {
	if !r.phoneFlowStarted {
		l.startPhoneFlow(ctx, page, r)
	}

	code, found := l.readLoginCode(ctx, page)
	if !found || code == r.lastCode {
		return nil
	}
	err := l.Store.UpdateConnection(ctx, connectionID, store.Fields{
		"status":    string(domain.ConnAwaitingCode),
		"loginCode": code,
		"qrCode":    store.Delete,
	})
	if err != nil {
		return err
	}
	r.lastCode = code
	observability.ChallengePublished.WithLabelValues("code").Inc()
	return nil
}

// startPhoneFlow switches the pairing screen from QR to numeric code. It is
// attempted once; when the button is absent the page is usually already on
// the code screen.
func (l *Linker) startPhoneFlow(ctx context.Context, page browser.Page, r *run) {
	r.phoneFlowStarted = true
	if err := page.Click(ctx, waweb.PhoneLinkButton, 2*time.Second); err != nil {
		return
	}
	if err := page.Type(ctx, waweb.PhoneInput, r.phone, pacing.KeystrokeDelay); err != nil {
		slog.Warn("phone entry failed", "err", err)
		return
	}
	if err := page.Click(ctx, waweb.PhoneNextButton, 2*time.Second); err != nil {
		slog.Warn("phone submit failed", "err", err)
	}
}

func (l *Linker) readLoginCode(ctx context.Context, page browser.Page) (string, bool) {
	raw, found, err := page.Attribute(ctx, waweb.LoginCodeBox, waweb.LoginCodeAttr, l.checkWait())
	if err == nil && found {
		if code := NormalizeLoginCode(raw); code != "" {
			return code, true
		}
	}
	text, found, err := page.Text(ctx, waweb.LoginCodeBox, l.checkWait())
	if err != nil || !found {
		return "", false
	}
	if m := codePattern.FindString(strings.ToUpper(text)); m != "" {
		return m, true
	}
	return "", false
}

var codePattern = regexp.MustCompile(`[A-Z0-9]{2,}(-[A-Z0-9]{2,})+`)

// NormalizeLoginCode turns the raw attribute form ("t,s,c,8,e,9,4,x") into
// the grouped form shown on the phone ("TSC8-E94X").
func NormalizeLoginCode(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(raw) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	code := b.String()
	if code == "" {
		return ""
	}
	if len(code)%2 == 0 && len(code) >= 6 {
		half := len(code) / 2
		return code[:half] + "-" + code[half:]
	}
	return code
}

// publishTerminal settles the connection document. Both challenge fields are
// always cleared; a write failure here (document deleted externally, store
// down) is logged and swallowed so the browser context still gets closed.
func (l *Linker) publishTerminal(ctx context.Context, connectionID string, status domain.ConnectionStatus, errMsg string, linked bool) {
	// Detached from the run context so a shutdown still flushes the status.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	f := store.Fields{
		"status":    string(status),
		"qrCode":    store.Delete,
		"loginCode": store.Delete,
	}
	if linked {
		f["conectadoEm"] = store.ServerTimestamp
		f["erroMsg"] = store.Delete
	} else {
		f["erroMsg"] = errMsg
	}
	if err := l.Store.UpdateConnection(ctx, connectionID, f); err != nil {
		slog.Warn("terminal status publish failed",
			"connection_id", connectionID,
			"status", string(status),
			"err", err,
		)
	}
}
