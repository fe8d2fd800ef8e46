package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/xab-mack/contractscope/internal/layout"
	"github.com/xab-mack/contractscope/internal/model"
)

// slotEntry is one member's position in a layout snapshot.
type slotEntry struct {
	Slot   string `json:"slot"`
	Offset int    `json:"offset"`
	Size   int    `json:"size"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

type baseline struct {
	GeneratedAt time.Time              `json:"generatedAt"`
	Contracts   map[string][]slotEntry `json:"contracts"`
}

// ChangeKind classifies a difference between two layouts.
type ChangeKind string

const (
	ChangeRemoved         ChangeKind = "removed"
	ChangeRetyped         ChangeKind = "retyped"
	ChangeRenamed         ChangeKind = "renamed"
	ChangeOverlapping     ChangeKind = "overlapping"
	ChangeAdded           ChangeKind = "added"
	ChangeContractRemoved ChangeKind = "contract-removed"
	ChangeLayoutFailed    ChangeKind = "layout-failed"
)

// LayoutChange is one difference found when checking a layout against a
// baseline.
type LayoutChange struct {
	Contract string     `json:"contract"`
	Kind     ChangeKind `json:"kind"`
	Slot     string     `json:"slot,omitempty"`
	Offset   int        `json:"offset"`
	Old      string     `json:"old,omitempty"`
	New      string     `json:"new,omitempty"`
}

// Incompatible reports whether the change moves or reinterprets existing
// storage of a deployed contract.
func (c LayoutChange) Incompatible() bool {
	switch c.Kind {
	case ChangeRemoved, ChangeRetyped, ChangeOverlapping, ChangeLayoutFailed:
		return true
	}
	return false
}

func (c LayoutChange) String() string {
	at := fmt.Sprintf("%s@%d", c.Slot, c.Offset)
	switch c.Kind {
	case ChangeContractRemoved:
		return fmt.Sprintf("%s: contract no longer analyzed", c.Contract)
	case ChangeLayoutFailed:
		return fmt.Sprintf("%s: layout unavailable: %s", c.Contract, c.New)
	case ChangeAdded:
		return fmt.Sprintf("%s: added %s at %s", c.Contract, c.New, at)
	case ChangeRemoved:
		return fmt.Sprintf("%s: removed %s at %s", c.Contract, c.Old, at)
	}
	return fmt.Sprintf("%s: %s %s -> %s at %s", c.Contract, c.Kind, c.Old, c.New, at)
}

func snapshot(result *model.Result) baseline {
	b := baseline{GeneratedAt: time.Now().UTC(), Contracts: map[string][]slotEntry{}}
	for _, rep := range result.Contracts {
		if rep.Layout == nil || rep.Layout.Error != "" {
			continue
		}
		b.Contracts[rep.Name] = entries(rep.Layout)
	}
	return b
}

func entries(l *model.Layout) []slotEntry {
	out := []slotEntry{}
	for _, s := range l.Slots {
		for _, m := range s.Members {
			out = append(out, slotEntry{Slot: s.Key, Offset: m.Offset, Size: m.Size, Name: qualifiedName(m), Type: m.Type})
		}
	}
	return out
}

// qualifiedName prefixes a struct field with its enclosing variables.
func qualifiedName(m model.Member) string {
	parts := []string{m.Name}
	for p := m.Parent; p != nil; p = p.Parent {
		parts = append([]string{p.Name}, parts...)
	}
	return strings.Join(parts, ".")
}

func loadBaseline(path string) (baseline, error) {
	var b baseline
	data, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("invalid baseline %s: %w", path, err)
	}
	if b.Contracts == nil {
		b.Contracts = map[string][]slotEntry{}
	}
	return b, nil
}

func writeBaseline(path string, result *model.Result) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(snapshot(result), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// diffBaseline compares each baselined contract with its new layout. A new
// member is compatible only when it occupies storage no baselined member
// used.
func diffBaseline(b baseline, result *model.Result) []LayoutChange {
	current := map[string]*model.ContractReport{}
	for _, rep := range result.Contracts {
		current[rep.Name] = rep
	}
	names := make([]string, 0, len(b.Contracts))
	for n := range b.Contracts {
		names = append(names, n)
	}
	sort.Strings(names)

	var out []LayoutChange
	for _, name := range names {
		rep, ok := current[name]
		switch {
		case !ok:
			out = append(out, LayoutChange{Contract: name, Kind: ChangeContractRemoved})
		case rep.Layout == nil || rep.Layout.Error != "":
			msg := "no layout"
			if rep.Layout != nil {
				msg = rep.Layout.Error
			}
			out = append(out, LayoutChange{Contract: name, Kind: ChangeLayoutFailed, New: msg})
		default:
			out = append(out, diffEntries(name, b.Contracts[name], entries(rep.Layout))...)
		}
	}
	return out
}

func diffEntries(contract string, old, cur []slotEntry) []LayoutChange {
	type pos struct {
		slot   string
		offset int
	}
	prev := map[pos]bool{}
	bySlot := map[string][]slotEntry{}
	for _, e := range old {
		prev[pos{e.Slot, e.Offset}] = true
		bySlot[e.Slot] = append(bySlot[e.Slot], e)
	}
	now := map[pos]slotEntry{}
	for _, e := range cur {
		now[pos{e.Slot, e.Offset}] = e
	}

	var out []LayoutChange
	for _, e := range old {
		n, ok := now[pos{e.Slot, e.Offset}]
		change := LayoutChange{Contract: contract, Slot: e.Slot, Offset: e.Offset, Old: describe(e), New: describe(n)}
		switch {
		case !ok:
			change.Kind = ChangeRemoved
		case layout.Normalize(n.Type) != layout.Normalize(e.Type) || n.Size != e.Size:
			change.Kind = ChangeRetyped
		case n.Name != e.Name:
			change.Kind = ChangeRenamed
		default:
			continue
		}
		out = append(out, change)
	}
	for _, n := range cur {
		if prev[pos{n.Slot, n.Offset}] {
			continue
		}
		change := LayoutChange{Contract: contract, Kind: ChangeAdded, Slot: n.Slot, Offset: n.Offset, New: describe(n)}
		for _, e := range bySlot[n.Slot] {
			if e.Offset < n.Offset+n.Size && n.Offset < e.Offset+e.Size {
				change.Kind = ChangeOverlapping
				change.Old = describe(e)
				break
			}
		}
		out = append(out, change)
	}
	return out
}

func describe(e slotEntry) string {
	if e.Name == "" && e.Type == "" {
		return ""
	}
	return e.Type + " " + e.Name
}
