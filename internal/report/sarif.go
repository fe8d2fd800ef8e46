package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/plugins"
	"github.com/xab-mack/contractscope/internal/util"
)

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}
type sarifDriver struct {
	Name  string      `json:"name"`
	Rules []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string       `json:"id"`
	ShortDescription sarifMessage `json:"shortDescription"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLoc        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}
type sarifLoc struct {
	Physical sarifPhys `json:"physicalLocation"`
}
type sarifPhys struct {
	ArtifactLocation sarifArt     `json:"artifactLocation"`
	Region           *sarifRegion `json:"region,omitempty"`
}
type sarifArt struct {
	URI string `json:"uri"`
}
type sarifRegion struct {
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`
}

const sarifSchema = "https://json.schemastore.org/sarif-2.1.0.json"

// low-level call sites are reported under this rule id.
const ruleLowLevelCall = "LOW_LEVEL_CALL"

func ruleTitles() map[string]string {
	titles := map[string]string{
		model.CodeUnknownType:   "Storage variable of unknown type",
		model.CodeLayoutFailed:  "Storage layout could not be computed",
		model.CodeNoRoots:       "Contract has no eligible entry points",
		model.CodeUnresolved:    "Call target missing from the input",
		model.CodeAnalyzeFailed: "Contract analysis failed",
		ruleLowLevelCall:        "Low-level call site reachable from an entry point",
	}
	reg := plugins.NewRegistry()
	reg.RegisterBuiltin()
	for _, c := range reg.Checks() {
		m := c.Meta()
		titles[m.ID] = m.Title
	}
	return titles
}

func level(s model.Severity) string {
	switch s {
	case model.SeverityError:
		return "error"
	case model.SeverityWarning:
		return "warning"
	}
	return "note"
}

// ToSARIF emits every diagnostic plus one note per distinct low-level call
// site reachable from a root.
func ToSARIF(result *model.Result) ([]byte, error) {
	results := []sarifResult{}
	titles := ruleTitles()
	rules := map[string]string{}
	for _, c := range result.Contracts {
		for _, d := range c.Diagnostics {
			path := d.Path
			if path == "" {
				path = c.AbsolutePath
			}
			fp := d.Fingerprint
			if fp == "" {
				fp = util.Fingerprint(d.Code, path, d.StartLine, d.EndLine, d.Contract+"|"+d.Entity+"|"+d.Message)
			}
			results = append(results, sarifResult{
				RuleID:              d.Code,
				Level:               level(d.Severity),
				Message:             sarifMessage{Text: d.Message},
				Locations:           []sarifLoc{location(path, d.StartLine, d.EndLine)},
				PartialFingerprints: map[string]string{"primaryLocationLineHash": fp},
			})
			rules[d.Code] = d.Code
			if t, ok := titles[d.Code]; ok {
				rules[d.Code] = t
			}
		}
		for _, s := range lowLevelSites(c) {
			r := s.node.Ref
			msg := fmt.Sprintf("%s: %s reaches %s", c.Name, s.root, r.Name)
			results = append(results, sarifResult{
				RuleID:    ruleLowLevelCall,
				Level:     "note",
				Message:   sarifMessage{Text: msg},
				Locations: []sarifLoc{location(r.AbsolutePath, r.StartLine, r.EndLine)},
				PartialFingerprints: map[string]string{
					"primaryLocationLineHash": util.Fingerprint(ruleLowLevelCall, filepath.ToSlash(r.AbsolutePath), r.StartLine, r.EndLine, string(s.node.CallType)+"|"+r.Src),
				},
			})
			rules[ruleLowLevelCall] = titles[ruleLowLevelCall]
		}
	}

	ids := make([]string, 0, len(rules))
	for id := range rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	driver := sarifDriver{Name: "contractscope"}
	for _, id := range ids {
		driver.Rules = append(driver.Rules, sarifRule{ID: id, ShortDescription: sarifMessage{Text: rules[id]}})
	}
	s := sarif{Schema: sarifSchema, Version: "2.1.0", Runs: []sarifRun{{Tool: sarifTool{Driver: driver}, Results: results}}}
	return json.MarshalIndent(s, "", "  ")
}

func location(path string, start, end int) sarifLoc {
	loc := sarifLoc{Physical: sarifPhys{ArtifactLocation: sarifArt{URI: filepath.ToSlash(path)}}}
	if start > 0 {
		if end < start {
			end = start
		}
		loc.Physical.Region = &sarifRegion{StartLine: start, EndLine: end}
	}
	return loc
}

type site struct {
	root string
	node *model.CallNode
}

// lowLevelSites lists low-level call nodes once per call expression, in
// root order, attributed to the first root that reaches them.
func lowLevelSites(c *model.ContractReport) []site {
	var out []site
	seen := map[int64]bool{}
	var walk func(root string, n *model.CallNode)
	walk = func(root string, n *model.CallNode) {
		for _, ch := range n.Children {
			if ch.CallType.IsLowLevel() && !seen[ch.Ref.ID] {
				seen[ch.Ref.ID] = true
				out = append(out, site{root: root, node: ch})
			}
			walk(root, ch)
		}
	}
	for _, root := range c.CallTrees {
		name := root.Ref.Name
		if root.Ref.Signature != "" {
			name = root.Ref.Signature
		}
		walk(name, root)
	}
	return out
}
