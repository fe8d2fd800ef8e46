package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/xab-mack/contractscope/internal/model"
)

type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCBOR  Format = "cbor"
	FormatSARIF Format = "sarif"
)

// ParseFormat accepts a format name case-insensitively; "table" is an
// alias for text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", "table":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatCBOR, FormatSARIF:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want text|json|yaml|cbor|sarif)", s)
}

// View selects which artifacts of a result are rendered.
type View int

const (
	ViewFull View = iota
	ViewLayout
	ViewCalls
)

type layoutReport struct {
	Name         string        `json:"name" yaml:"name"`
	AbsolutePath string        `json:"absolutePath" yaml:"absolutePath"`
	Layout       *model.Layout `json:"layout" yaml:"layout"`
}

type callsReport struct {
	Name         string            `json:"name" yaml:"name"`
	AbsolutePath string            `json:"absolutePath" yaml:"absolutePath"`
	CallTrees    []*model.CallNode `json:"callTrees" yaml:"callTrees"`
	Stats        model.Stats       `json:"stats" yaml:"stats"`
}

// project reduces the result to what the view asks for.
func project(result *model.Result, view View) any {
	switch view {
	case ViewLayout:
		out := []layoutReport{}
		for _, c := range result.Contracts {
			out = append(out, layoutReport{Name: c.Name, AbsolutePath: c.AbsolutePath, Layout: c.Layout})
		}
		return out
	case ViewCalls:
		out := []callsReport{}
		for _, c := range result.Contracts {
			out = append(out, callsReport{Name: c.Name, AbsolutePath: c.AbsolutePath, CallTrees: c.CallTrees, Stats: c.Stats})
		}
		return out
	}
	return result
}

// Encode serializes the result in a machine-readable format.
func Encode(result *model.Result, format Format, view View) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(project(result, view), "", "  ")
	case FormatYAML:
		return yaml.Marshal(project(result, view))
	case FormatCBOR:
		return cbor.Marshal(project(result, view))
	case FormatSARIF:
		return ToSARIF(result)
	}
	return nil, fmt.Errorf("format %s is not a data encoding", format)
}

// Render writes the result to w.
func Render(w io.Writer, result *model.Result, format Format, view View) error {
	if format == FormatText {
		return Text(w, result, view)
	}
	data, err := Encode(result, format, view)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if format == FormatJSON || format == FormatSARIF {
		_, err = io.WriteString(w, "\n")
	}
	return err
}
