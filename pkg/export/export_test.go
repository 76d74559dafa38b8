package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Attendance",
		Headers: []string{"Session", "Status"},
		Rows: []map[string]string{
			{"Session": "1", "Status": "PRESENT"},
			{"Session": "2", "Status": "EXCUSED"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	text := strings.TrimPrefix(string(out), "\ufeff")
	assert.Equal(t, "Session,Status\n1,PRESENT\n2,EXCUSED\n", text)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	value, err := f.GetCellValue("Attendance", "B3")
	require.NoError(t, err)
	assert.Equal(t, "EXCUSED", value)
}

func TestRendererRequiresHeaders(t *testing.T) {
	for format, renderer := range NewRegistry() {
		_, err := renderer.Render(Dataset{})
		assert.Error(t, err, format)
	}
}

func TestRegistryUnknownFormat(t *testing.T) {
	_, err := NewRegistry().Get("docx")
	require.Error(t, err)
}
