package clipboard

import (
	"strings"

	"clipvault/pkg/types"
)

const (
	// maxLinkLength bounds the scheme-less URL heuristic; longer text is
	// never classified as a link.
	maxLinkLength = 500

	// maxLinkDots avoids classifying dotted prose as a URL.
	maxLinkDots = 10
)

var urlSchemes = []string{"http://", "https://", "ftp://", "ftps://"}

// DetectTextType classifies text content as a link or plain text. A URL
// scheme prefix wins outright; scheme-less URLs are caught by a heuristic:
// contains a dot, no whitespace, bounded length and dot count.
func DetectTextType(text string) types.ContentType {
	s := strings.TrimSpace(text)
	if s == "" {
		return types.TypeText
	}

	for _, scheme := range urlSchemes {
		if strings.HasPrefix(s, scheme) {
			return types.TypeLink
		}
	}

	if strings.Contains(s, ".") &&
		!strings.ContainsAny(s, " \n\t") &&
		len(s) < maxLinkLength &&
		strings.Count(s, ".") <= maxLinkDots {
		return types.TypeLink
	}

	return types.TypeText
}
