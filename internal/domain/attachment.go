package domain

import (
	"encoding/base64"
	"strings"
)

// MaxAttachmentBytes is the largest image accepted for analysis (10 MiB).
const MaxAttachmentBytes = 10 << 20

// Attachment is the user supplied image blob. Treat Data as read-only.
type Attachment struct {
	Name      string
	MediaType string
	Data      []byte
}

// NewAttachment copies data so later mutation by the caller cannot leak into
// an in-flight run.
func NewAttachment(name, mediaType string, data []byte) Attachment {
	return Attachment{
		Name:      strings.TrimSpace(name),
		MediaType: strings.ToLower(strings.TrimSpace(mediaType)),
		Data:      append([]byte(nil), data...),
	}
}

// Size returns the byte size of the blob.
func (a Attachment) Size() int {
	return len(a.Data)
}

// Validate enforces the boundary preconditions: image media type, non-empty,
// at most MaxAttachmentBytes.
func (a Attachment) Validate() error {
	mediaType := strings.ToLower(strings.TrimSpace(a.MediaType))
	if !strings.HasPrefix(mediaType, "image/") {
		return Errorf(KindInvalidAttachment, "attachment must be an image, got %q", a.MediaType)
	}
	if len(a.Data) == 0 {
		return Errorf(KindInvalidAttachment, "attachment is empty")
	}
	if len(a.Data) > MaxAttachmentBytes {
		return Errorf(KindInvalidAttachment, "attachment is %d bytes, limit is %d", len(a.Data), MaxAttachmentBytes)
	}
	return nil
}

// DataURL renders the blob as a base64 data URL for vision providers.
func (a Attachment) DataURL() string {
	var sb strings.Builder
	sb.WriteString("data:")
	sb.WriteString(strings.ToLower(strings.TrimSpace(a.MediaType)))
	sb.WriteString(";base64,")
	sb.WriteString(base64.StdEncoding.EncodeToString(a.Data))
	return sb.String()
}
