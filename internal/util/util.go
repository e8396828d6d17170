package util

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NormalizePhone strips whitespace and separators, keeping digits and a
// leading +. The chat web client's compose URL accepts that form.
func NormalizePhone(p string) string {
	p = strings.TrimSpace(p)
	var b strings.Builder
	for i, r := range p {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RenderTemplate substitutes every {{nome}} occurrence with the recipient's
// name. A missing name renders as the empty string.
func RenderTemplate(body, name string) string {
	return strings.ReplaceAll(body, "{{nome}}", name)
}

func NewConnectionID() string {
	// ULID is sortable (nice for DB indexes and dashboards)
	t := time.Now().UTC()
	return "conn_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
