// Package pages renders the static pages served by the API.
package pages

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

//go:embed privacy.md
var privacyMarkdown []byte

const pageTemplate = `<!DOCTYPE html>
<html lang="ko">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>body{font-family:sans-serif;max-width:720px;margin:2rem auto;padding:0 1rem;line-height:1.6}table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.3rem .6rem}</style>
</head>
<body>
%s</body>
</html>
`

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// Render converts markdown to a complete HTML page.
func Render(title string, source []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert(source, &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return []byte(fmt.Sprintf(pageTemplate, title, body.String())), nil
}

// PrivacyPolicy returns the rendered privacy policy page.
func PrivacyPolicy() ([]byte, error) {
	return Render("Privacy Policy", privacyMarkdown)
}
