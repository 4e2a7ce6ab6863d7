package detect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scriptfill/internal/detect"
)

const finderPage = `<body>
	<input id="a">
	<div id="b" contenteditable="true" role="textbox" class="ProseMirror"></div>
	<textarea id="c"></textarea>
	<select id="s"></select>
	<div id="scriptfill-widget">
		<input id="widget-search" placeholder="Search scripts">
		<div><textarea id="widget-note"></textarea></div>
	</div>
	<div id="richInput" contenteditable="true"></div>
	<div id="d" role="textbox"></div>
</body>`

func TestFindAll(t *testing.T) {
	doc := parse(t, finderPage)
	f := detect.NewFinder("scriptfill-widget")

	found := f.FindAll(doc)
	assert.Equal(t, []string{"a", "b", "c", "richInput", "d"}, ids(found),
		"deduplicated, widget excluded, document order")
}

func TestFindAll_Idempotent(t *testing.T) {
	doc := parse(t, finderPage)
	f := detect.NewFinder("scriptfill-widget")

	first := f.FindAll(doc)
	second := f.FindAll(doc)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i] == second[i], "position %d differs", i)
	}
}

func TestFindAll_NoWidgetExclusion(t *testing.T) {
	doc := parse(t, finderPage)
	found := detect.NewFinder("").FindAll(doc)
	assert.Contains(t, ids(found), "widget-search")
	assert.Contains(t, ids(found), "widget-note")
}

func TestFindAll_EmptyDocument(t *testing.T) {
	doc := parse(t, `<body><p>nothing here</p></body>`)
	assert.Empty(t, detect.NewFinder("w").FindAll(doc))
}

func TestInWidget(t *testing.T) {
	doc := parse(t, finderPage)
	f := detect.NewFinder("scriptfill-widget")
	assert.True(t, f.InWidget(query(t, doc, "#widget-note")))
	assert.False(t, f.InWidget(query(t, doc, "#a")))
	assert.False(t, f.InWidget(nil))
}
