package core

import "context"

// FullscreenHost is the document-level surface the fullscreen controller drives.
// Method, property and event names are the vendor-specific DOM names.
type FullscreenHost interface {
	Has(method string) bool
	Invoke(ctx context.Context, method string) error
	ElementPresent(property string) bool
	AddEventListener(event string, fn func()) (remove func())
}
