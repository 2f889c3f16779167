package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitle(t *testing.T) {
	s := New()
	assert.Equal(t, "Hello World", s.Title("  <b>Hello</b> World "))
	assert.Equal(t, "", s.Title("<script>alert(1)</script>"))
}

func TestContent(t *testing.T) {
	s := New()
	assert.Equal(t, "<p>hi <strong>there</strong></p>", s.Content(`<p onclick="x()">hi <strong>there</strong></p><script>bad()</script>`))
	assert.Equal(t, "Thanks bot!", s.Content("Thanks bot!"))
}

func TestPlainText(t *testing.T) {
	s := New()
	assert.Equal(t, "one two Tom & Jerry", s.PlainText("<p>one</p><p>two</p><div>Tom &amp; Jerry</div>"))
}
