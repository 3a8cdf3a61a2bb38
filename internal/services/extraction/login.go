package extraction

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	loginPathRe = regexp.MustCompile(`(?i)/(login|signin|sign-in|sso|auth/|passport|account/login)`)
	loginTextRe = regexp.MustCompile(`(?i)\b(log\s*in|sign\s*in)\b.{0,40}\b(to\s+continue|to\s+view|required)\b|\bplease\s+(log|sign)\s*in\b`)
)

// DetectLoginWall reports whether the page is an authentication wall: a login
// route, or a visible password field next to a login prompt.
func DetectLoginWall(doc *goquery.Document, pageURL string) bool {
	if u, err := url.Parse(pageURL); err == nil && loginPathRe.MatchString(u.Path) {
		return true
	}

	hasPassword := doc.Find(`input[type="password"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return !IsHidden(s)
	}).Length() > 0

	text := strings.Join(Lines(doc.Find("body")), " ")
	if hasPassword && loginTextRe.MatchString(text) {
		return true
	}

	// Modal walls without a form of their own
	return doc.Find(`[class*="login-modal"], [class*="loginModal"], [class*="LoginModal"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return !IsHidden(s)
	}).Length() > 0 && loginTextRe.MatchString(text)
}
