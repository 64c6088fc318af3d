package app

import (
	"github.com/dkeye/Webinar/internal/core"
	"github.com/dkeye/Webinar/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

type Policy interface {
	Allow(role domain.Role, intent domain.Intent) bool
	OnBackPressure(sid core.SessionID) BackpressureAction
}

// hostOnly lists the intents a guest may not issue.
var hostOnly = map[domain.Intent]struct{}{
	domain.IntentToggleAudio:     {},
	domain.IntentToggleVideo:     {},
	domain.IntentToggleScreen:    {},
	domain.IntentToggleRecording: {},
}

type SimplePolicy struct{}

func (SimplePolicy) Allow(role domain.Role, intent domain.Intent) bool {
	if _, ok := hostOnly[intent]; ok {
		return role.IsHost()
	}
	return true
}

func (SimplePolicy) OnBackPressure(core.SessionID) BackpressureAction {
	return DropFrame
}
