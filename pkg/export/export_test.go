package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Charities",
		Headers: []string{"Name", "Status"},
		Rows: []map[string]string{
			{"Name": "Relief Org", "Status": "active"},
			{"Name": "=HYPERLINK(\"x\")", "Status": "pending"},
		},
	}
}

func TestCSVRender(t *testing.T) {
	out, err := Render(FormatCSV, sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Name,Status\nRelief Org,active\n\"'=HYPERLINK(\"\"x\"\")\",pending\n", string(out))
}

func TestPDFRender(t *testing.T) {
	out, err := Render(FormatPDF, sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := Render(FormatCSV, Dataset{})
	assert.Error(t, err)
	_, err = Render(FormatPDF, Dataset{})
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestPDFRenderPaginatesLongTables(t *testing.T) {
	data := Dataset{Headers: []string{"Name"}}
	for i := 0; i < 120; i++ {
		data.Rows = append(data.Rows, map[string]string{"Name": strings.Repeat("x", 80)})
	}
	out, err := Render(FormatPDF, data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Len(t, []rune(clip(strings.Repeat("y", 80))), maxPDFCell)
	assert.Equal(t, "short", clip("short"))
}
