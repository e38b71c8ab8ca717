// Package errorpage builds the HTTP proxy's own error responses: styled HTML
// pages for 403/503 content-filter rejections (listing the blocked terms)
// and for 400/502 (with a short message). Grounded on
// original_source/include/ErrorResponseBuilder.hpp's interface
// (build403Forbidden/build503ServiceUnavailable/build502BadGateway/
// build400BadRequest), reworked from static methods into Go functions that
// each return the complete response as a string.
package errorpage

import (
	"fmt"
	"html"
	"strings"
)

const htmlTemplate = `<!DOCTYPE html>
<html>
<head><title>%d %s</title>
<style>
body { font-family: sans-serif; background: #1e1e1e; color: #eee; text-align: center; padding-top: 8%%; }
h1 { color: %s; font-size: 3em; }
p { color: #ccc; font-size: 1.2em; }
ul { display: inline-block; text-align: left; color: %s; }
</style>
</head>
<body>
<h1>%d %s</h1>
<p>%s</p>
%s
</body>
</html>
`

func buildHTML(code int, title, heading, message string, blockedTerms []string, color string) string {
	var list string
	if len(blockedTerms) > 0 {
		var b strings.Builder
		b.WriteString("<ul>")
		for _, t := range blockedTerms {
			b.WriteString("<li>")
			b.WriteString(html.EscapeString(t))
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
		list = b.String()
	}
	return fmt.Sprintf(htmlTemplate, code, title, color, color, code, heading, message, list)
}

func buildResponse(statusLine, body string) string {
	return fmt.Sprintf("%s\r\nContent-Type: text/html; charset=utf-8\r\nContent-Length: %d\r\nConnection: close\r\nCache-Control: no-cache, no-store\r\nPragma: no-cache\r\n\r\n%s",
		statusLine, len(body), body)
}

// Build403Forbidden returns a complete HTTP response rejecting a request
// whose body matched one or more forbidden terms.
func Build403Forbidden(blockedTerms []string) string {
	body := buildHTML(403, "Forbidden", "403 Forbidden",
		"Your request was blocked because it contains forbidden content.", blockedTerms, "#e74c3c")
	return buildResponse("HTTP/1.1 403 Forbidden", body)
}

// Build503ServiceUnavailable returns a complete HTTP response rejecting an
// upstream response whose body matched one or more forbidden terms.
func Build503ServiceUnavailable(blockedTerms []string) string {
	body := buildHTML(503, "Service Unavailable", "503 Service Unavailable",
		"The response was blocked because it contains forbidden content.", blockedTerms, "#e67e22")
	return buildResponse("HTTP/1.1 503 Service Unavailable", body)
}

// Build502BadGateway returns a complete HTTP response for an upstream
// connection failure, with an optional reason.
func Build502BadGateway(reason string) string {
	message := "The proxy could not connect to the destination server."
	if reason != "" {
		message = html.EscapeString(reason)
	}
	body := buildHTML(502, "Bad Gateway", "502 Bad Gateway", message, nil, "#c0392b")
	return buildResponse("HTTP/1.1 502 Bad Gateway", body)
}

// Build400BadRequest returns a complete HTTP response for a malformed
// request, with an optional reason.
func Build400BadRequest(reason string) string {
	message := "The request could not be parsed."
	if reason != "" {
		message = html.EscapeString(reason)
	}
	body := buildHTML(400, "Bad Request", "400 Bad Request", message, nil, "#7f8c8d")
	return buildResponse("HTTP/1.1 400 Bad Request", body)
}
