package alerts

import (
	"time"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
)

// DefaultAcknowledgedRetention bounds how many acknowledged alerts stay in
// the list. Unacknowledged alerts are never trimmed.
const DefaultAcknowledgedRetention = 100

type key struct {
	typ    model.AlertType
	target string
}

func keyOf(a model.Alert) key { return key{a.Type, a.Target} }

// Book merges findings into the alert list. It is not safe for concurrent
// use; the engine serializes access.
type Book struct {
	newID     func() string
	retention int

	// silenced holds keys acknowledged while their condition was still
	// firing. A key is released once a tick observes the condition false.
	silenced map[key]bool
}

// NewBook creates a Book that names new alerts with newID.
func NewBook(newID func() string) *Book {
	return &Book{
		newID:     newID,
		retention: DefaultAcknowledgedRetention,
		silenced:  make(map[key]bool),
	}
}

// Apply merges the condition findings of one tick into list and returns the
// new list plus the alerts created by this call. Existing alerts are never
// removed.
func (b *Book) Apply(list []model.Alert, findings []Finding, now time.Time) ([]model.Alert, []model.Alert) {
	firing := make(map[key]bool, len(findings))
	for _, f := range findings {
		firing[key{f.Type, f.Target}] = true
	}
	for k := range b.silenced {
		if !firing[k] {
			delete(b.silenced, k)
		}
	}

	var created []model.Alert
	for _, f := range findings {
		if b.silenced[key{f.Type, f.Target}] {
			continue
		}
		var a *model.Alert
		list, a = b.raise(list, f, now)
		if a != nil {
			created = append(created, *a)
		}
	}
	return list, created
}

// Raise records an event alert such as a completed pump timer. Events
// ignore silencing but still dedup against an unacknowledged alert with
// the same key. The returned alert is nil when an existing one was
// refreshed.
func (b *Book) Raise(list []model.Alert, f Finding, now time.Time) ([]model.Alert, *model.Alert) {
	return b.raise(list, f, now)
}

func (b *Book) raise(list []model.Alert, f Finding, now time.Time) ([]model.Alert, *model.Alert) {
	k := key{f.Type, f.Target}
	for i := range list {
		if list[i].Acknowledged || keyOf(list[i]) != k {
			continue
		}
		list[i].Message = f.Message
		list[i].Severity = f.Severity
		list[i].UpdatedAt = now
		list[i].Occurrences++
		return list, nil
	}

	a := model.Alert{
		ID:          b.newID(),
		Type:        f.Type,
		Severity:    f.Severity,
		Target:      f.Target,
		Message:     f.Message,
		CreatedAt:   now,
		UpdatedAt:   now,
		Occurrences: 1,
	}
	// Newest first.
	list = append([]model.Alert{a}, list...)
	return list, &a
}

// Acknowledge marks the alert with id acknowledged and silences its key
// until the condition clears. It reports whether the id was found.
func (b *Book) Acknowledge(list []model.Alert, id string, now time.Time) ([]model.Alert, bool) {
	for i := range list {
		if list[i].ID != id {
			continue
		}
		if !list[i].Acknowledged {
			at := now
			list[i].Acknowledged = true
			list[i].AcknowledgedAt = &at
			b.silenced[keyOf(list[i])] = true
		}
		return b.trim(list), true
	}
	return list, false
}

// Clear drops every alert and releases every silenced key.
func (b *Book) Clear() []model.Alert {
	b.silenced = make(map[key]bool)
	return []model.Alert{}
}

// trim keeps at most retention acknowledged alerts, dropping the oldest.
func (b *Book) trim(list []model.Alert) []model.Alert {
	acked := 0
	out := list[:0]
	for _, a := range list {
		if a.Acknowledged {
			acked++
			if acked > b.retention {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}
