package gmail

import (
	"encoding/base64"
	"strings"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// extractHTML walks the MIME part tree and returns the first text/html body,
// base64url decoded.
func extractHTML(part *gmailv1.MessagePart) string {
	if part == nil {
		return ""
	}
	if strings.ToLower(part.MimeType) == "text/html" && part.Body != nil && part.Body.Data != "" {
		return decodeBase64URL(part.Body.Data)
	}
	for _, sub := range part.Parts {
		if body := extractHTML(sub); body != "" {
			return body
		}
	}
	return ""
}

// extractText collects every text/* leaf in the part tree, joined with
// newlines. Unlike extractHTML it does not stop at the first hit: the plain
// rendition of a report mail is often split across parts.
func extractText(part *gmailv1.MessagePart) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(part.MimeType), "text/") && part.Body != nil && part.Body.Data != "" {
		return decodeBase64URL(part.Body.Data)
	}
	var texts []string
	for _, sub := range part.Parts {
		if t := extractText(sub); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n")
}

func decodeBase64URL(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail uses unpadded base64url
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(b)
}
