package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esglens/esglens/internal/domain/document"
)

func TestLoadDocument_FormFeedPages(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "report.txt", "page one text\fpage two text\fpage three\f")

	doc, err := loadDocument(document.KindReport, path)
	require.NoError(t, err)

	assert.Equal(t, document.KindReport, doc.Kind)
	assert.Equal(t, "report", doc.Title)
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, "page one text", doc.Pages[0].Text)
	assert.Equal(t, "page three", doc.Pages[2].Text)
}

func TestLoadDocument_SinglePage(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "short.txt", "no form feeds here")

	doc, err := loadDocument(document.KindStandard, path)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
}

func TestLoadDocument_NormalizesCRLF(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "crlf.txt", "line one\r\nline two")

	doc, err := loadDocument(document.KindReport, path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", doc.Pages[0].Text)
}

func TestLoadDocument_MissingFile(t *testing.T) {
	_, err := loadDocument(document.KindReport, "/nope/missing.txt")
	assert.Error(t, err)
}

func TestLoadReports(t *testing.T) {
	dir := t.TempDir()
	p1 := writeFile(t, dir, "a.txt", "report a")
	p2 := writeFile(t, dir, "b.txt", "report b")

	reports, err := loadReports([]string{p1, p2})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "a", reports[0].Title)
	assert.Equal(t, "b", reports[1].Title)
}

func TestEmitJSON_ToWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, emitJSON(&buf, "", map[string]int{"n": 1}))
	assert.JSONEq(t, `{"n": 1}`, buf.String())
}

func TestEmitJSON_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, emitJSON(nil, path, map[string]int{"n": 2}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n": 2}`, string(raw))
}
