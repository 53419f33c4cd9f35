package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"leadscout/internal/lead"
)

const maxLeadLine = 1 << 20

// ParseLeads reads one lead per line: {"username":..., "name":..., "url":...}.
// Blank lines and #-comments are skipped. A malformed line fails the whole
// batch with its line number so drop files are all-or-nothing.
func ParseLeads(r io.Reader) ([]lead.Lead, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLeadLine)

	var leads []lead.Lead
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var l lead.Lead
		if err := json.Unmarshal([]byte(text), &l); err != nil {
			return nil, fmt.Errorf("leads line %d: %w", line, err)
		}
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("leads line %d: %w", line, err)
		}
		leads = append(leads, l)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading leads: %w", err)
	}
	return leads, nil
}

// ReadLeads parses a JSONL lead file from disk.
func ReadLeads(path string) ([]lead.Lead, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	leads, err := ParseLeads(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return leads, nil
}
