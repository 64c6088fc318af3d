//go:build !devices

package devices

import "github.com/pion/mediadevices"

const hasEncoders = false

// Without the devices tag no cgo encoders or drivers are linked.
func newCodecSelector(string) (*mediadevices.CodecSelector, error) {
	return mediadevices.NewCodecSelector(), nil
}
