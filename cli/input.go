package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Tripp808/iyacare-app-sub001/core/record"
)

// readRecordFile loads a record or a change set from a .json, .yaml or .yml
// file. "-" reads JSON from stdin.
func readRecordFile(path string, stdin io.Reader) (record.PatientRecord, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var fields map[string]any
		if err := yaml.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if fields == nil {
			return nil, fmt.Errorf("parse %s: %w", path, record.ErrNotObject)
		}
		return record.FromMap(fields)
	default:
		return record.FromJSON(raw)
	}
}
