package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/store"
)

// Archive writes <dir>/<system id>/<stamp>.pdf and the matching snapshot
// JSON, returning the PDF path.
func Archive(dir string, s model.State, journal *store.Store) (string, error) {
	var pdfBuf bytes.Buffer
	if err := PlantPDF(&pdfBuf, s, journal); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	jsonData, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	out := filepath.Join(dir, s.SystemID)
	if err := os.MkdirAll(out, 0755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", out, err)
	}
	stamp := s.UpdatedAt.UTC().Format("20060102T150405Z")

	jsonPath := filepath.Join(out, stamp+".json")
	if err := os.WriteFile(jsonPath, jsonData, 0644); err != nil {
		return "", fmt.Errorf("write JSON: %w", err)
	}
	pdfPath := filepath.Join(out, stamp+".pdf")
	if err := os.WriteFile(pdfPath, pdfBuf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write PDF: %w", err)
	}
	return pdfPath, nil
}
