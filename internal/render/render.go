// Package render turns view models into HTML using the embedded templates.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/dukerupert/familytask/internal/notify"
	"github.com/dukerupert/familytask/internal/view"
)

//go:embed templates/*.html
var files embed.FS

const Title = "Family Task Manager"

// fragment is the data every panel template receives. OOB marks the root
// element for an htmx out-of-band swap.
type fragment struct {
	view.Panels
	OOB bool
}

type notices struct {
	Notifications []notify.Notification
	OOB           bool
}

type page struct {
	Title   string
	Panels  fragment
	Notices notices
}

type Templates struct {
	t *template.Template
}

func New() (*Templates, error) {
	t, err := template.ParseFS(files, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Templates{t: t}, nil
}

// Page renders the full document: the login form when p has no user, the
// dashboard otherwise.
func (t *Templates) Page(w io.Writer, p view.Panels, active []notify.Notification) error {
	return t.t.ExecuteTemplate(w, "layout", page{
		Title:   Title,
		Panels:  fragment{Panels: p},
		Notices: notices{Notifications: active},
	})
}

// Panels renders the family bar, invite confirmation and family content as
// out-of-band fragments, so one response or websocket frame updates them all.
func (t *Templates) Panels(w io.Writer, p view.Panels) error {
	return t.t.ExecuteTemplate(w, "panels", fragment{Panels: p, OOB: true})
}

// Notifications renders the banner stack as an out-of-band fragment.
func (t *Templates) Notifications(w io.Writer, active []notify.Notification) error {
	return t.t.ExecuteTemplate(w, "notifications", notices{Notifications: active, OOB: true})
}

// Partial renders a single named panel template, without out-of-band markers.
func (t *Templates) Partial(w io.Writer, name string, p view.Panels) error {
	return t.t.ExecuteTemplate(w, name, fragment{Panels: p})
}

// PanelsHTML is Panels into a string, for websocket frames.
func (t *Templates) PanelsHTML(p view.Panels) (string, error) {
	var buf bytes.Buffer
	if err := t.Panels(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// NotificationsHTML is Notifications into a string, for websocket frames.
func (t *Templates) NotificationsHTML(active []notify.Notification) (string, error) {
	var buf bytes.Buffer
	if err := t.Notifications(&buf, active); err != nil {
		return "", err
	}
	return buf.String(), nil
}
