package coretest

import (
	"sync"

	"github.com/dkeye/Webinar/internal/domain"
)

// Notifier collects alerts.
type Notifier struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (n *Notifier) Notify(a domain.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
}

func (n *Notifier) Alerts() []domain.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Alert(nil), n.alerts...)
}

// Modal is an in-memory core.Modal.
type Modal struct {
	mu   sync.Mutex
	open bool
}

func (m *Modal) Open()  { m.mu.Lock(); m.open = true; m.mu.Unlock() }
func (m *Modal) Close() { m.mu.Lock(); m.open = false; m.mu.Unlock() }

func (m *Modal) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}
