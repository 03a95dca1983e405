package http

import (
	"encoding/json"
	"html/template"
	"net/http"

	"budgetly/internal/core"
)

// Client-side events sent through HX-Trigger. The dashboard panels reload on
// the expense events.
const (
	EventExpenseCreated = "expense:created"
	EventExpenseDeleted = "expense:deleted"
	EventFormReset      = "form:reset"
)

// Partial is an HTMX answer: an HTML fragment plus the events and headers
// the page reacts to.
type Partial struct {
	status int
	html   string
	header http.Header
	events map[string]any
}

// NewPartial starts an empty response with the given status.
func NewPartial(status int) *Partial {
	return &Partial{status: status, header: make(http.Header), events: make(map[string]any)}
}

// Message is a one-line fragment styled by class. msg is escaped.
func Message(status int, class, msg string) *Partial {
	p := NewPartial(status)
	p.html = `<div class="` + class + `">` + template.HTMLEscapeString(msg) + `</div>`
	return p
}

// Failure renders msg as an error fragment.
func Failure(status int, msg string) *Partial {
	return Message(status, "error", msg)
}

// Notice renders msg as a 200 success fragment.
func Notice(msg string) *Partial {
	return Message(http.StatusOK, "success", msg)
}

// Emit queues a client event. data must marshal to JSON.
func (p *Partial) Emit(event string, data any) *Partial {
	p.events[event] = data
	return p
}

// ExpenseChanged emits event with the month the change belongs to, so
// listeners can tell whether the month they show is affected.
func (p *Partial) ExpenseChanged(event string, d core.Date) *Partial {
	return p.Emit(event, map[string]int{"year": d.Year(), "month": d.Month()})
}

// ResetForm asks the page to clear the add form.
func (p *Partial) ResetForm() *Partial {
	return p.Emit(EventFormReset, struct{}{})
}

// Redirect makes HTMX navigate to url instead of swapping.
func (p *Partial) Redirect(url string) *Partial {
	p.header.Set("HX-Redirect", url)
	return p
}

func (p *Partial) Write(w http.ResponseWriter) {
	h := w.Header()
	for k, v := range p.header {
		h[k] = v
	}
	if len(p.events) > 0 {
		if b, err := json.Marshal(p.events); err == nil {
			h.Set("HX-Trigger", string(b))
		}
	}
	if p.html != "" {
		h.Set("Content-Type", "text/html; charset=utf-8")
	}
	w.WriteHeader(p.status)
	if p.html != "" {
		_, _ = w.Write([]byte(p.html))
	}
}
