package chat

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// MaxImageBytes caps uploaded images.
const MaxImageBytes = 5 << 20

// ErrUnsupportedImage is returned for empty, oversized or non-image uploads.
var ErrUnsupportedImage = errors.New("chat: unsupported image")

// ImagePromptPrefix introduces the user's prompt in an image turn.
const ImagePromptPrefix = "Please analyze and summarize this university document or image: "

// DataURI encodes image as a base64 data URI. An empty mimeType is sniffed.
func DataURI(image []byte, mimeType string) (string, error) {
	if len(image) == 0 || len(image) > MaxImageBytes {
		return "", ErrUnsupportedImage
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.TrimSpace(mimeType)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", errors.Wrapf(ErrUnsupportedImage, "content type %s", mimeType)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image), nil
}

// ImageMessage builds the user turn for an image upload.
func ImageMessage(prompt string, image []byte, mimeType string) (Message, error) {
	uri, err := DataURI(image, mimeType)
	if err != nil {
		return Message{}, err
	}
	return Message{Role: RoleUser, Content: ImagePromptPrefix + prompt, ImageURL: uri}, nil
}
