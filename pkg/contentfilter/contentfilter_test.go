package contentfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckCaseInsensitive(t *testing.T) {
	f := New([]string{"malware", "forbidden"})

	term, found := f.Check([]byte("this payload contains MalWare inside"))
	assert.True(t, found)
	assert.Equal(t, "malware", term)
}

func TestCheckNoMatch(t *testing.T) {
	f := New([]string{"malware"})

	_, found := f.Check([]byte("perfectly clean content"))
	assert.False(t, found)
}

func TestCheckIgnoresEmptyWords(t *testing.T) {
	f := New([]string{"", "banned"})

	_, found := f.Check([]byte("nothing to see"))
	assert.False(t, found)
}

func TestWordsReturnsLowercasedCopy(t *testing.T) {
	f := New([]string{"FOO", "Bar"})
	words := f.Words()
	assert.Equal(t, []string{"foo", "bar"}, words)
}
