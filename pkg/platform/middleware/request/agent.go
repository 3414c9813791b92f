package request

import (
	"strings"

	"github.com/mssola/useragent"
)

// describeAgent condenses a User-Agent header into "browser on os" for logs.
// Crawlers report as "bot: <name>"; API clients without a browser keep their
// product token, e.g. "curl".
func describeAgent(header string) string {
	if header == "" {
		return "unknown"
	}
	ua := useragent.New(header)
	browser, _ := ua.Browser()
	if ua.Bot() {
		return "bot: " + browser
	}
	os := strings.TrimSpace(ua.OS())
	if os == "" {
		if name, _ := ua.Browser(); name != "" {
			return name
		}
		return "unknown"
	}
	if ua.Mobile() {
		os += " (mobile)"
	}
	return browser + " on " + os
}
