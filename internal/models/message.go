package models

import (
	"encoding/base64"
	"strings"
)

// Sender identifies who authored a message
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Kind tells how a message's content is to be rendered
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Status marks bot messages that are not answer content
type Status string

const (
	StatusNone Status = ""
	// StatusPlaceholder is the in-flight "processing" message
	StatusPlaceholder Status = "placeholder"
	// StatusBackendError is an error the backend reported
	StatusBackendError Status = "backend_error"
	// StatusFailure is the generic message shown for transport or parse failures
	StatusFailure Status = "failure"
)

// MessageID identifies a message within one transcript
type MessageID uint64

// Message is a single entry of the chat transcript.
// For KindImage, Content is the base64 image payload as received.
type Message struct {
	ID      MessageID
	Sender  Sender
	Kind    Kind
	Content string
	Status  Status
}

// IsPlaceholder reports whether the message stands in for a pending response
func (m Message) IsPlaceholder() bool {
	return m.Status == StatusPlaceholder
}

// IsError reports whether the message reports a failed request
func (m Message) IsError() bool {
	return m.Status == StatusBackendError || m.Status == StatusFailure
}

// IsImage reports whether the message carries an image
func (m Message) IsImage() bool {
	return m.Kind == KindImage
}

// DataURI returns the image as a data: URI. Empty for text messages.
func (m Message) DataURI() string {
	if !m.IsImage() {
		return ""
	}
	return "data:" + ImageMIME + ";base64," + m.Content
}

// Decode returns the raw image bytes of an image message
func (m Message) Decode() ([]byte, error) {
	return DecodeImage(m.Content)
}

// DecodeImage decodes a base64 image payload. Whitespace and a leading
// data: URI prefix are tolerated.
func DecodeImage(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if i := strings.Index(payload, ";base64,"); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+len(";base64,"):]
	}
	payload = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, payload)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders omit padding
		return base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	return data, nil
}
