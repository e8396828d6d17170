package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// RodLauncher launches headless Chromium contexts with a persistent profile
// directory per connection.
type RodLauncher struct {
	Headless bool
	Bin      string
}

func (l *RodLauncher) Launch(ctx context.Context, sessionDir string) (Session, error) {
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	la := launcher.New().
		Headless(l.Headless).
		UserDataDir(sessionDir).
		Set(flags.NoSandbox).
		Set("disable-setuid-sandbox")
	if l.Bin != "" {
		la = la.Bin(l.Bin)
	}

	controlURL, err := la.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		la.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	return &rodSession{browser: b}, nil
}

type rodSession struct {
	browser *rod.Browser
}

func (s *rodSession) Page(ctx context.Context) (Page, error) {
	pages, err := s.browser.Pages()
	if err != nil {
		return nil, err
	}
	if len(pages) > 0 {
		return &rodPage{page: pages.First()}, nil
	}
	p, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, err
	}
	return &rodPage{page: p}, nil
}

// Close shuts the browser down. The profile directory is left in place; it
// is the durable session state.
func (s *rodSession) Close() error {
	return s.browser.Close()
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *rodPage) Reload(ctx context.Context) error {
	pg := p.page.Context(ctx)
	if err := pg.Reload(); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *rodPage) find(ctx context.Context, sel Selector, timeout time.Duration) (*rod.Element, error) {
	pg := p.page.Context(ctx)
	if timeout > 0 {
		pg = pg.Timeout(timeout)
	}
	if sel.Text != "" {
		return pg.ElementR(sel.CSS, sel.Text)
	}
	return pg.Element(sel.CSS)
}

func (p *rodPage) WaitVisible(ctx context.Context, sel Selector, timeout time.Duration) (bool, error) {
	el, err := p.find(ctx, sel, timeout)
	if err != nil {
		if isTimeout(err) {
			return false, nil
		}
		return false, err
	}
	if err := el.WaitVisible(); err != nil {
		if isTimeout(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *rodPage) Attribute(ctx context.Context, sel Selector, name string, timeout time.Duration) (string, bool, error) {
	el, err := p.find(ctx, sel, timeout)
	if err != nil {
		if isTimeout(err) {
			return "", false, nil
		}
		return "", false, err
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (p *rodPage) Text(ctx context.Context, sel Selector, timeout time.Duration) (string, bool, error) {
	el, err := p.find(ctx, sel, timeout)
	if err != nil {
		if isTimeout(err) {
			return "", false, nil
		}
		return "", false, err
	}
	t, err := el.Text()
	if err != nil {
		return "", false, err
	}
	return t, true, nil
}

func (p *rodPage) Screenshot(ctx context.Context, sel Selector, timeout time.Duration) ([]byte, error) {
	el, err := p.find(ctx, sel, timeout)
	if err != nil {
		return nil, err
	}
	return el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
}

func (p *rodPage) Type(ctx context.Context, sel Selector, text string, delay func() time.Duration) error {
	el, err := p.find(ctx, sel, 5*time.Second)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	for _, r := range text {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := el.Input(string(r)); err != nil {
			return err
		}
		time.Sleep(delay())
	}
	return nil
}

func (p *rodPage) Click(ctx context.Context, sel Selector, timeout time.Duration) error {
	el, err := p.find(ctx, sel, timeout)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
