
package ioformats

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"llmstxt-crawler/internal/models"
)

// ReadURLs reads a page list from a CSV (header with "url"), an NDJSON file
// (bare strings or {"url": ...} objects, sitemap entry dumps included) or a
// plain text file with one URL per line. Blank lines and # comments are
// skipped in text and NDJSON input.
func ReadURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(f)
	case ".ndjson", ".jsonl":
		return readLines(f, true)
	default:
		return readLines(f, false)
	}
}

func readCSV(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("empty csv")
	}
	col := -1
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(h), "url") {
			col = i
			break
		}
	}
	if col == -1 {
		return nil, errors.New("csv must contain a 'url' header column")
	}
	var out []string
	for _, row := range rows[1:] {
		if col < len(row) {
			if u := strings.TrimSpace(row[col]); u != "" {
				out = append(out, u)
			}
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no urls found in csv")
	}
	return out, nil
}

func readLines(r io.Reader, jsonObjects bool) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if jsonObjects {
			if u, ok := urlFromJSON(line); ok {
				out = append(out, u)
			}
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("no urls found")
	}
	return out, nil
}

func urlFromJSON(line string) (string, bool) {
	if !strings.HasPrefix(line, "{") && !strings.HasPrefix(line, `"`) {
		return line, true
	}
	var s string
	if err := json.Unmarshal([]byte(line), &s); err == nil {
		return s, s != ""
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(line), &obj); err == nil && obj.URL != "" {
		return obj.URL, true
	}
	return "", false
}

// WriteRecords writes one JSON page record per line.
func WriteRecords(w io.Writer, records []models.PageRecord) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
