package htmlkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head><title> Martin &amp; Fils </title>
<script>var x = "hidden";</script></head>
<body>
  <h2>Nos  services</h2><h2>Nos services</h2><h2>Devis</h2>
  <p>  Plomberie
     générale </p>
  <a href="/contact">Contact</a><a href=" ">vide</a>
</body></html>`

func TestParseHelpers(t *testing.T) {
	doc, err := Parse([]byte(samplePage))
	require.NoError(t, err)

	assert.Equal(t, "Martin & Fils", CleanText(doc.Find("title").Text()))
	assert.Equal(t, []string{"Nos services", "Devis"}, Texts(doc.Find("h2"), 0))
	assert.Equal(t, []string{"Nos services"}, Texts(doc.Find("h2"), 1))
	assert.Equal(t, []string{"/contact"}, Attrs(doc.Find("a"), "href"))

	text := VisibleText(doc)
	assert.Contains(t, text, "Plomberie générale")
	assert.NotContains(t, text, "hidden")
}
