package uploads

import (
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var filenameStripRe = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// sniffedExtensions maps detected content types to the extension used for
// files whose client name sanitizes to nothing.
var sniffedExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// SanitizeFilename reduces a client-supplied filename to a safe single path
// component: NFKD-normalised ASCII, separators turned into spaces, whitespace
// runs joined with "_", only [A-Za-z0-9_.-] kept, and leading or trailing
// "." and "_" trimmed. The result may be empty.
func SanitizeFilename(filename string) string {
	decomposed := norm.NFKD.String(filename)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r > unicode.MaxASCII {
			continue
		}
		if r == '/' || r == '\\' {
			r = ' '
		}
		b.WriteRune(r)
	}

	joined := strings.Join(strings.Fields(b.String()), "_")
	return strings.Trim(filenameStripRe.ReplaceAllString(joined, ""), "._")
}

// fallbackName names an upload whose filename sanitized to nothing.
func fallbackName(data []byte) string {
	if ext, ok := sniffedExtensions[http.DetectContentType(data)]; ok {
		return "upload" + ext
	}
	return "upload.bin"
}
