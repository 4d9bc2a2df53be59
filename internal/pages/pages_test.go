package pages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrivacyPolicy(t *testing.T) {
	page, err := PrivacyPolicy()
	require.NoError(t, err)

	html := string(page)
	assert.Contains(t, html, "<title>Privacy Policy</title>")
	assert.Contains(t, html, "<h2 id=\"what-we-store\">What we store</h2>")
	assert.Contains(t, html, "<table>")
}

func TestRender(t *testing.T) {
	page, err := Render("t", []byte("hello **world**"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<p>hello <strong>world</strong></p>")
}
