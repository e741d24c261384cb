package platform

import (
	"regexp"
	"strings"
)

// Link families accepted by the relay
var (
	videoHostingPattern = regexp.MustCompile(`(?i)(youtube|youtu\.be)`)
	photoSharingPattern = regexp.MustCompile(`(?i)(instagram\.com|instagr\.am)`)
)

// Cookie-gated hosts
var (
	CookieHosts = []string{"instagram.com", "instagr.am"}
)

// IsSupported reports whether text contains a supported media link anywhere.
// No normalization or scheme validation is done.
func IsSupported(text string) bool {
	return videoHostingPattern.MatchString(text) || photoSharingPattern.MatchString(text)
}

// RequiresCookies reports whether the link belongs to a site that needs the
// credential file to be passed to the extraction engine
func RequiresCookies(url string) bool {
	lower := strings.ToLower(url)
	for _, host := range CookieHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}
