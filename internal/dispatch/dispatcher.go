// Package dispatch runs one campaign end to end: resolve the recipient set,
// reuse the connection's linked browser session, send each recipient one
// rendered message with humanized pacing, and record per-recipient and
// campaign outcomes. A single recipient failing never takes the campaign
// down; a dead session does.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"zapmotor/internal/browser"
	"zapmotor/internal/domain"
	"zapmotor/internal/observability"
	"zapmotor/internal/pacing"
	"zapmotor/internal/store"
	"zapmotor/internal/util"
	"zapmotor/internal/waweb"
)

type Store interface {
	GetCampaign(ctx context.Context, id string) (store.Campaign, bool, error)
	UpdateCampaign(ctx context.Context, id string, f store.Fields) error
	AvailableContacts(ctx context.Context, limit int) ([]store.Contact, error)
	ContactByID(ctx context.Context, id string) (store.Contact, bool, error)
	MarkContactUsed(ctx context.Context, id string) error
}

type Dispatcher struct {
	Store        Store
	Browser      browser.Launcher
	SessionsBase string

	// AuthWait bounds the wait for the authenticated marker; it is applied
	// twice, with one page reload in between.
	AuthWait     time.Duration
	ComposerWait time.Duration

	// Limiter caps global send throughput per pod; Breaker trips on sustained
	// consecutive send failures, which is how a crashed session presents.
	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker

	// Delay overrides the inter-recipient delay source. Nil means
	// pacing.RecipientDelay.
	Delay func(minSeconds, maxSeconds int) time.Duration
}

func (d *Dispatcher) delay(minSeconds, maxSeconds int) time.Duration {
	if d.Delay != nil {
		return d.Delay(minSeconds, maxSeconds)
	}
	return pacing.RecipientDelay(minSeconds, maxSeconds)
}

func (d *Dispatcher) authWait() time.Duration {
	if d.AuthWait > 0 {
		return d.AuthWait
	}
	return 60 * time.Second
}

func (d *Dispatcher) composerWait() time.Duration {
	if d.ComposerWait > 0 {
		return d.ComposerWait
	}
	return 15 * time.Second
}

// Run executes the campaign. Errors are returned only when the job should be
// redriven (store unreachable before any work); everything else settles into
// the campaign document.
func (d *Dispatcher) Run(ctx context.Context, campaignID string) error {
	log := slog.With("campaign_id", campaignID)

	camp, found, err := d.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if !found {
		log.Error("campaign not found")
		return nil
	}
	if camp.Status == string(domain.CampaignDone) || camp.Status == string(domain.CampaignError) {
		log.Info("campaign already terminal", "status", camp.Status)
		return nil
	}
	if camp.ConnectionID == "" {
		d.markError(ctx, campaignID, "campanha sem connectionId")
		return nil
	}

	// Pollers see progress as the first act, like the original engine.
	if err := d.Store.UpdateCampaign(ctx, campaignID, store.Fields{
		"status": string(domain.CampaignRunning),
	}); err != nil {
		return err
	}

	recipients, err := d.resolve(ctx, camp)
	if err != nil {
		d.markError(ctx, campaignID, "falha ao resolver contatos: "+err.Error())
		return err
	}
	if len(recipients) == 0 {
		d.markError(ctx, campaignID, "nenhum contato válido encontrado para esta campanha")
		return nil
	}
	log.Info("campaign resolved", "recipients", len(recipients), "tipo", camp.Type)

	sess, err := d.Browser.Launch(ctx, filepath.Join(d.SessionsBase, camp.ConnectionID))
	if err != nil {
		observability.CampaignRuns.WithLabelValues("erro").Inc()
		d.markError(ctx, campaignID, "browser launch failed: "+err.Error())
		return nil
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("browser close failed", "err", cerr)
		}
	}()

	page, err := sess.Page(ctx)
	if err != nil {
		observability.CampaignRuns.WithLabelValues("erro").Inc()
		d.markError(ctx, campaignID, err.Error())
		return nil
	}

	if err := d.requireAuthenticated(ctx, page); err != nil {
		observability.CampaignRuns.WithLabelValues("erro").Inc()
		d.markError(ctx, campaignID, err.Error())
		return nil
	}

	if name, ok := browser.ClickFirst(ctx, page, waweb.Popups, 2*time.Second); ok {
		log.Info("dismissed popup", "popup", name)
	}

	for i, contact := range recipients {
		if ctx.Err() != nil {
			d.markError(ctx, campaignID, "execução interrompida pelo desligamento")
			return ctx.Err()
		}
		if d.Limiter != nil {
			if err := d.Limiter.Wait(ctx); err != nil {
				d.markError(ctx, campaignID, "execução interrompida pelo desligamento")
				return err
			}
		}

		start := time.Now()
		err := d.sendWithBreaker(ctx, page, camp, contact)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.Sends.WithLabelValues("cb_open").Inc()
			observability.CampaignRuns.WithLabelValues("erro").Inc()
			d.markError(ctx, campaignID, "envios falhando em sequência, sessão provavelmente perdida")
			return nil
		}
		if err != nil {
			// The contact stays disponivel and remains eligible for a later
			// campaign. If the failure landed after the send but before the
			// bookkeeping, that later campaign will message it twice; the
			// automation surface gives no receipt to tell the two apart.
			observability.Sends.WithLabelValues("error").Inc()
			log.Warn("send failed, skipping recipient",
				"contact_id", contact.ID,
				"numero", contact.Number,
				"err", err,
			)
		} else {
			observability.Sends.WithLabelValues("ok").Inc()
			observability.SendLatency.Observe(time.Since(start).Seconds())
		}

		if i < len(recipients)-1 {
			if err := pacing.Sleep(ctx, d.delay(camp.MinDelay, camp.MaxDelay)); err != nil {
				d.markError(ctx, campaignID, "execução interrompida pelo desligamento")
				return err
			}
		}
	}

	observability.CampaignRuns.WithLabelValues("concluida").Inc()
	if err := d.Store.UpdateCampaign(ctx, campaignID, store.Fields{
		"status":  string(domain.CampaignDone),
		"erroMsg": store.Delete,
	}); err != nil {
		log.Warn("final status update failed", "err", err)
	}
	log.Info("campaign finished")
	return nil
}

// resolve picks the recipient set. quantity mode drains the shared pool
// oldest-first; selection mode keeps only ids that exist and are still
// available, silently dropping the rest.
func (d *Dispatcher) resolve(ctx context.Context, camp store.Campaign) ([]store.Contact, error) {
	switch camp.Type {
	case domain.CampaignTypeQuantity:
		if camp.TotalContacts <= 0 {
			return nil, nil
		}
		return d.Store.AvailableContacts(ctx, camp.TotalContacts)
	default:
		var out []store.Contact
		for _, id := range camp.ContactIDs {
			c, found, err := d.Store.ContactByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if found && c.Status == string(domain.ContactAvailable) {
				out = append(out, c)
			}
		}
		return out, nil
	}
}

// requireAuthenticated waits for the linked-session marker, reloading once
// before giving up. The dispatcher never pairs a session itself.
func (d *Dispatcher) requireAuthenticated(ctx context.Context, page browser.Page) error {
	if err := page.Navigate(ctx, waweb.HomeURL()); err != nil {
		return err
	}
	ok, err := page.WaitVisible(ctx, waweb.ChatList, d.authWait())
	if err != nil {
		return err
	}
	if !ok {
		if err := page.Reload(ctx); err != nil {
			return err
		}
		ok, err = page.WaitVisible(ctx, waweb.ChatList, d.authWait())
		if err != nil {
			return err
		}
	}
	if !ok {
		return errors.New("sessão não autenticada: vincule a conexão antes de disparar")
	}
	return nil
}

func (d *Dispatcher) sendWithBreaker(ctx context.Context, page browser.Page, camp store.Campaign, contact store.Contact) error {
	if d.Breaker == nil {
		return d.sendOne(ctx, page, camp, contact)
	}
	_, err := d.Breaker.Execute(func() (any, error) {
		return nil, d.sendOne(ctx, page, camp, contact)
	})
	return err
}

func (d *Dispatcher) sendOne(ctx context.Context, page browser.Page, camp store.Campaign, contact store.Contact) error {
	message := util.RenderTemplate(camp.Template, contact.Name)

	if err := page.Navigate(ctx, waweb.ComposeURL(util.NormalizePhone(contact.Number))); err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	ok, err := page.WaitVisible(ctx, waweb.Composer, d.composerWait())
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("composer not available")
	}
	if err := page.Type(ctx, waweb.Composer, message, pacing.KeystrokeDelay); err != nil {
		return fmt.Errorf("type message: %w", err)
	}
	if err := page.Click(ctx, waweb.SendButton, 5*time.Second); err != nil {
		return fmt.Errorf("press send: %w", err)
	}
	if err := d.Store.MarkContactUsed(ctx, contact.ID); err != nil {
		return fmt.Errorf("mark contact used: %w", err)
	}
	return nil
}

// markError settles the campaign in erro. Detached from the run context so a
// shutdown still flushes the status; failures here are only loggable.
func (d *Dispatcher) markError(ctx context.Context, campaignID, msg string) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := d.Store.UpdateCampaign(ctx, campaignID, store.Fields{
		"status":  string(domain.CampaignError),
		"erroMsg": msg,
	}); err != nil {
		slog.Warn("campaign error status update failed", "campaign_id", campaignID, "err", err)
	}
}
