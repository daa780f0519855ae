// Package bridge implements the request/reply protocol between the host
// orchestrator and the code running inside the previewed application. The
// preview's origin is dynamically assigned, so messages are never filtered
// by origin; the shape and type tag of every inbound message is validated
// instead.
package bridge

import (
	"errors"
	"fmt"
)

// Message type discriminators. These are a stable wire format shared with
// the injected scripts; renaming them breaks deployed previews.
const (
	TypeCaptureScreenshot  = "capture-screenshot"
	TypeScreenshotCaptured = "screenshot-captured"
	TypeScreenshotError    = "screenshot-error"
	TypeToggleMode         = "toggle-mode"
	TypeSelected           = "selected"
	TypeUpdateStyle        = "update-style"
)

// Custom error types for protocol handling
var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMalformedMessage   = errors.New("malformed message")
)

// Message is the tagged union exchanged over the bridge channel. Which
// fields are meaningful depends on Type.
type Message struct {
	Type string `json:"type"`

	// toggle-mode
	Enabled bool `json:"enabled,omitempty"`

	// screenshot-captured / screenshot-error
	Data  string `json:"data,omitempty"`
	Error string `json:"error,omitempty"`

	// update-style
	Property string `json:"property,omitempty"`
	Value    string `json:"value,omitempty"`

	// selected
	ElementID  string            `json:"elementId,omitempty"`
	TagName    string            `json:"tagName,omitempty"`
	ClassName  string            `json:"className,omitempty"`
	Selector   string            `json:"selector,omitempty"`
	InnerText  string            `json:"innerText,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	SourceHint string            `json:"sourceHint,omitempty"`
}

// Validate checks an inbound message's discriminator and required fields.
// Shape validation stands in for the origin check the dynamic preview
// address makes impossible.
func Validate(msg Message) error {
	switch msg.Type {
	case TypeScreenshotCaptured:
		if msg.Data == "" {
			return fmt.Errorf("%w: screenshot-captured without data", ErrMalformedMessage)
		}
	case TypeScreenshotError:
		if msg.Error == "" {
			return fmt.Errorf("%w: screenshot-error without error", ErrMalformedMessage)
		}
	case TypeSelected:
		if msg.TagName == "" || msg.Selector == "" {
			return fmt.Errorf("%w: selected without tagName/selector", ErrMalformedMessage)
		}
	case TypeCaptureScreenshot, TypeToggleMode, TypeUpdateStyle:
		// Host-originated types are valid as-is; the app may echo them back
		// but they carry no reply payload to check.
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessageType, msg.Type)
	}
	return nil
}
