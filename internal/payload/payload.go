// Package payload handles binary attachments inside queued mutation data.
//
// A live file handle cannot be serialized into the durable slot, so an
// attachment is stored flattened: a marker, the file metadata, the content
// base64-encoded, and the remaining form fields as plain pairs. On replay
// the executor side rebuilds a proper multipart body from that flat form
// before the network call.
package payload

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/multipart"
)

// Marker is the data key that identifies a flattened attachment payload.
const Marker = "__attachment__"

const (
	fieldFilename    = "__filename__"
	fieldContentType = "__contentType__"
	fieldContent     = "__content__"
	fieldFormField   = "__field__"
)

// Attachment is one binary file destined for a multipart upload.
type Attachment struct {
	// Field is the multipart form field name the file is sent under.
	Field string

	Filename    string
	ContentType string
	Content     []byte
}

// Flatten converts form fields plus an attachment into the slot-safe flat
// representation. Field values stay as plain strings; the file content is
// base64 so the whole map survives JSON serialization.
func Flatten(fields map[string]string, att Attachment) (map[string]any, error) {
	if att.Field == "" {
		return nil, fmt.Errorf("flatten attachment: form field name is required")
	}
	if att.Filename == "" {
		return nil, fmt.Errorf("flatten attachment: filename is required")
	}

	data := make(map[string]any, len(fields)+5)
	for k, v := range fields {
		data[k] = v
	}
	data[Marker] = true
	data[fieldFormField] = att.Field
	data[fieldFilename] = att.Filename
	data[fieldContentType] = att.ContentType
	data[fieldContent] = base64.StdEncoding.EncodeToString(att.Content)
	return data, nil
}

// IsAttachment reports whether the data map carries a flattened attachment.
func IsAttachment(data map[string]any) bool {
	marked, ok := data[Marker].(bool)
	return ok && marked
}

// BuildMultipart reconstructs a multipart/form-data body from a flattened
// payload. Returns the body, the Content-Type header value (including the
// boundary), and the ordinary form fields that were carried alongside.
func BuildMultipart(data map[string]any) (body []byte, contentType string, err error) {
	if !IsAttachment(data) {
		return nil, "", fmt.Errorf("build multipart: data carries no attachment marker")
	}

	field, _ := data[fieldFormField].(string)
	filename, _ := data[fieldFilename].(string)
	encoded, _ := data[fieldContent].(string)
	if field == "" || filename == "" {
		return nil, "", fmt.Errorf("build multipart: attachment metadata incomplete")
	}

	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("build multipart: decode attachment content: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range data {
		switch k {
		case Marker, fieldFormField, fieldFilename, fieldContentType, fieldContent:
			continue
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprintf("%v", v)
		}
		if err := w.WriteField(k, s); err != nil {
			return nil, "", fmt.Errorf("build multipart: write field %q: %w", k, err)
		}
	}

	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", fmt.Errorf("build multipart: create form file: %w", err)
	}
	if _, err := fw.Write(content); err != nil {
		return nil, "", fmt.Errorf("build multipart: write content: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("build multipart: close writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
