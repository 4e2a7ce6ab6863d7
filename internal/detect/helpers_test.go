package detect_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scriptfill/internal/browser/dom"
	"github.com/xkilldash9x/scriptfill/internal/browser/htmldom"
)

func parse(t *testing.T, src string) *htmldom.Document {
	t.Helper()
	doc, err := htmldom.ParseString(src, htmldom.WithViewport(1000, 800))
	require.NoError(t, err)
	return doc
}

func query(t *testing.T, doc *htmldom.Document, selector string) dom.Element {
	t.Helper()
	el := doc.Query(selector)
	require.NotNil(t, el, "no element for %s", selector)
	return el
}

func ids(els []dom.Element) []string {
	out := make([]string, 0, len(els))
	for _, el := range els {
		id, _ := el.Attr("id")
		out = append(out, id)
	}
	return out
}
