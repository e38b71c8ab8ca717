package errorpage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild403ForbiddenEscapesBlockedTerms(t *testing.T) {
	resp := Build403Forbidden([]string{"<script>"})

	assert.Contains(t, resp, "HTTP/1.1 403 Forbidden")
	assert.Contains(t, resp, "&lt;script&gt;")
	assert.NotContains(t, resp, "<script>evil")
}

func TestBuild503ServiceUnavailable(t *testing.T) {
	resp := Build503ServiceUnavailable([]string{"banned"})
	assert.Contains(t, resp, "HTTP/1.1 503 Service Unavailable")
	assert.Contains(t, resp, "banned")
}

func TestBuild502BadGatewayWithReason(t *testing.T) {
	resp := Build502BadGateway("connection refused")
	assert.Contains(t, resp, "HTTP/1.1 502 Bad Gateway")
	assert.Contains(t, resp, "connection refused")
}

func TestResponseHasMatchingContentLength(t *testing.T) {
	resp := Build400BadRequest("bad header")

	idx := strings.Index(resp, "\r\n\r\n")
	require.NotEqual(t, -1, idx)
	body := resp[idx+4:]

	clLine := ""
	for _, line := range strings.Split(resp[:idx], "\r\n") {
		if strings.HasPrefix(line, "Content-Length:") {
			clLine = strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
		}
	}
	require.NotEmpty(t, clLine)
	assert.Equal(t, clLine, itoa(len(body)))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
