package domain

import "fmt"

// Panel is the single-select side panel slot.
type Panel string

const (
	PanelNone        Panel = ""
	PanelChat        Panel = "chat"
	PanelAttachments Panel = "attachments"
)

// Intent is a discrete toolbar action issued by the UI.
type Intent string

const (
	IntentOpenChat         Intent = "open_chat"
	IntentOpenAttachments  Intent = "open_attachments"
	IntentClosePanel       Intent = "close_panel"
	IntentOpenWhiteboard   Intent = "open_whiteboard"
	IntentCloseWhiteboard  Intent = "close_whiteboard"
	IntentToggleAudio      Intent = "toggle_audio"
	IntentToggleVideo      Intent = "toggle_video"
	IntentToggleScreen     Intent = "toggle_screen"
	IntentToggleFullscreen Intent = "toggle_fullscreen"
	IntentToggleRecording  Intent = "toggle_recording"
	IntentRaiseHand        Intent = "raise_hand"
	IntentLeave            Intent = "leave"
)

var intents = map[Intent]struct{}{
	IntentOpenChat: {}, IntentOpenAttachments: {}, IntentClosePanel: {},
	IntentOpenWhiteboard: {}, IntentCloseWhiteboard: {},
	IntentToggleAudio: {}, IntentToggleVideo: {}, IntentToggleScreen: {},
	IntentToggleFullscreen: {}, IntentToggleRecording: {},
	IntentRaiseHand: {}, IntentLeave: {},
}

func ParseIntent(s string) (Intent, error) {
	if _, ok := intents[Intent(s)]; ok {
		return Intent(s), nil
	}
	return "", fmt.Errorf("unknown intent %q", s)
}

// ToolbarState is everything the toolbar needs to render.
type ToolbarState struct {
	Participant     Participant       `json:"participant"`
	Room            Room              `json:"room"`
	Media           MediaStatus       `json:"mediaStatus"`
	ActivePanel     Panel             `json:"activePanel"`
	WhiteboardOpen  bool              `json:"whiteboardOpen"`
	Fullscreen      bool              `json:"isFullscreen"`
	FullscreenAvail bool              `json:"fullscreenAvailable"`
	Recording       RecordingInfo     `json:"recording"`
	RaiseHand       RaiseHandCooldown `json:"raiseHand"`
	Left            bool              `json:"left"`
}
