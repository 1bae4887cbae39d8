package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidDataURL reports a payload that is neither a base64 data URL nor raw base64.
var ErrInvalidDataURL = errors.New("invalid base64 data url")

// EncodeDataURL renders data as a base64 data URL.
func EncodeDataURL(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURL accepts "data:<mime>;base64,<payload>" or bare base64 and
// returns the decoded bytes. The MIME type is sniffed when the input has none.
func DecodeDataURL(raw string) (string, []byte, error) {
	payload := strings.TrimSpace(raw)
	mimeType := ""

	if strings.HasPrefix(payload, "data:") {
		header, body, ok := strings.Cut(payload, ",")
		if !ok {
			return "", nil, ErrInvalidDataURL
		}
		meta := strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(meta, ";base64") {
			return "", nil, fmt.Errorf("%w: only base64 encoding is supported", ErrInvalidDataURL)
		}
		mimeType = strings.TrimSuffix(meta, ";base64")
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}

	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return mimeType, data, nil
}
