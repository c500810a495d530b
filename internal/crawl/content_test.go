package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeContentDropsNonVisibleMarkup(t *testing.T) {
	t.Parallel()

	html := `<html><head>
		<script>var x = 1;</script>
		<style>body { color: red; }</style>
	</head><body>
		<noscript>enable js</noscript>
		<iframe src="https://ads.example.com"></iframe>
		<h1>Hello</h1>
		<p>World</p>
	</body></html>`

	require.Equal(t, "Hello World", NormalizeContent(html))
}

func TestNormalizeContentStableUnderMarkupChurn(t *testing.T) {
	t.Parallel()

	a := `<html><body><h1>Title</h1> <p>Some   text</p></body></html>`
	b := `<html><head><script>analytics("` + "v2" + `")</script></head>
		<body>
			<h1>Title</h1>
			<p>Some
			text</p>
		</body></html>`

	require.Equal(t, NormalizeContent(a), NormalizeContent(b))
}

func TestNormalizeContentPlainText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "just text", NormalizeContent("  just \n\t text "))
	require.Equal(t, "", NormalizeContent(""))
}

func TestExtractPageMeta(t *testing.T) {
	t.Parallel()

	html := `<html><head>
		<title> Docs Home </title>
		<meta name="description" content=" Everything you need. ">
	</head><body></body></html>`

	title, description := ExtractPageMeta(html)
	require.Equal(t, "Docs Home", title)
	require.Equal(t, "Everything you need.", description)

	title, description = ExtractPageMeta("<html><body><p>no head</p></body></html>")
	require.Equal(t, "", title)
	require.Equal(t, "", description)
}
