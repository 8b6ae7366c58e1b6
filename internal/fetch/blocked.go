package fetch

import (
	"net/http"
	"strings"
)

// challengeSignatures are markers of anti-bot interstitials. Municode and
// county GIS portals sit behind Cloudflare or similar; their challenge pages
// are short and contain one of these phrases.
var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"cloudflare",
	"attention required",
}

// looksBlocked decides whether a response is a bot wall rather than portal
// content. The remedy for a blocked page is the next link in the chain, not
// a retry, so callers treat it as a terminal failure for their link.
//
// A 403 is a block outright; a 503 only when the body carries a challenge
// marker (plain 503s are transient and retryable). Successful responses are
// blocked when near-empty or when a challenge marker appears in a short body;
// a long page that merely mentions one of the phrases is real content.
func looksBlocked(statusCode int, body string) (bool, string) {
	trimmed := strings.TrimSpace(body)
	lower := strings.ToLower(trimmed)

	switch statusCode {
	case http.StatusForbidden:
		if sig := matchSignature(lower); sig != "" {
			return true, "challenge"
		}
		return true, "forbidden"
	case http.StatusServiceUnavailable:
		if sig := matchSignature(lower); sig != "" {
			return true, "challenge"
		}
		return false, ""
	}

	if statusCode >= 200 && statusCode < 300 {
		if len(trimmed) < 100 {
			return true, "empty"
		}
		if len(trimmed) < 1000 {
			if sig := matchSignature(lower); sig != "" {
				return true, "challenge"
			}
		}
	}

	return false, ""
}

func matchSignature(lower string) string {
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) {
			return sig
		}
	}
	return ""
}
