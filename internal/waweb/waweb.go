// Package waweb pins down the WhatsApp Web landmarks the engine steers by:
// URLs, the authenticated marker, the pairing challenges and the compose
// controls. Everything selector-shaped lives here so a UI change is a
// one-file fix.
package waweb

import (
	"net/url"

	"zapmotor/internal/browser"
)

const baseURL = "https://web.whatsapp.com"

func HomeURL() string { return baseURL }

// ComposeURL opens a chat with the given phone number (digits, optional +).
func ComposeURL(phone string) string {
	return baseURL + "/send?phone=" + url.QueryEscape(phone)
}

// QRAttr is the attribute on the QR container carrying the pairing payload.
const QRAttr = "data-ref"

// LoginCodeAttr carries the numeric pairing code as comma-separated characters.
const LoginCodeAttr = "data-link-code"

var (
	// Authenticated marker: the conversation list pane. Present only once the
	// session is linked.
	ChatList = browser.Selector{CSS: "#pane-side", Name: "chat list"}

	QRContainer = browser.Selector{CSS: "div[data-ref]", Name: "qr container"}
	QRCanvas    = browser.Selector{CSS: "canvas", Name: "qr canvas"}

	PhoneLinkButton = browser.Selector{CSS: "div[role='button'],button", Text: "Entrar com número de telefone", Name: "link with phone"}
	PhoneInput      = browser.Selector{CSS: "form input[type='text']", Name: "phone input"}
	PhoneNextButton = browser.Selector{CSS: "div[role='button'],button", Text: "Avançar", Name: "phone next"}
	LoginCodeBox    = browser.Selector{CSS: "div[data-link-code]", Name: "login code"}

	Composer   = browser.Selector{CSS: "div[contenteditable='true'][data-tab='10']", Name: "composer"}
	SendButton = browser.Selector{CSS: "span[data-icon='send']", Name: "send"}
)

// Popups are transient dialogs that sometimes cover the chat list right
// after login. Tried in order; first hit wins.
var Popups = []browser.Selector{
	{CSS: "div[role='button'],button", Text: "Continuar", Name: "continuar"},
	{CSS: "div[role='button'],button", Text: "OK", Name: "ok"},
	{CSS: "div[role='button'],button", Text: "Entendi", Name: "entendi"},
	{CSS: "div[role='button'],button", Text: "Concluir", Name: "concluir"},
}
