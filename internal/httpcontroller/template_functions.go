package httpcontroller

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// GetTemplateFunctions returns a map of functions that can be used in templates
func GetTemplateFunctions() template.FuncMap {
	return template.FuncMap{
		"title":      title,
		"percent":    percent,
		"formatDate": formatDate,
		"staticURL":  staticURL,
		"uploadURL":  uploadURL,
		"add":        func(a, b int) int { return a + b },
	}
}

// title upper-cases the first letter of each word. A Caser holds state,
// so each call gets its own.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

// percent converts a probability (0.0 - 1.0) to a percentage string.
func percent(p float32) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// staticURL turns a path relative to the static root, such as
// "uploads/mole.png", into an escaped URL.
func staticURL(relPath string) string {
	segments := strings.Split(relPath, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return "/static/" + strings.Join(segments, "/")
}

// uploadURL returns the URL of a stored upload by file name.
func uploadURL(name string) string {
	return "/static/uploads/" + url.PathEscape(name)
}
