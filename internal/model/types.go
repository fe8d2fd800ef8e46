package model

import (
	"fmt"
	"strings"
	"time"
)

// CallType classifies a call edge by risk.
type CallType string

const (
	CallInternal     CallType = "internal"
	CallHighLevel    CallType = "high-level"
	CallLowLevel     CallType = "low-level-call"
	CallStaticcall   CallType = "low-level-staticcall"
	CallDelegatecall CallType = "low-level-delegatecall"
	CallSend         CallType = "low-level-send"
	CallTransfer     CallType = "low-level-transfer"
)

// LowLevelCallType maps a builtin address member to its call type.
func LowLevelCallType(member string) (CallType, bool) {
	switch member {
	case "call":
		return CallLowLevel, true
	case "staticcall":
		return CallStaticcall, true
	case "delegatecall":
		return CallDelegatecall, true
	case "send":
		return CallSend, true
	case "transfer":
		return CallTransfer, true
	}
	return "", false
}

func (t CallType) IsLowLevel() bool {
	switch t {
	case CallLowLevel, CallStaticcall, CallDelegatecall, CallSend, CallTransfer:
		return true
	}
	return false
}

// IsExternal reports whether the edge leaves the contract.
func (t CallType) IsExternal() bool {
	return t == CallHighLevel || t.IsLowLevel()
}

// Parent is the provenance of a flattened struct field.
type Parent struct {
	Type   string  `json:"type" yaml:"type"`
	Name   string  `json:"name" yaml:"name"`
	Parent *Parent `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// Member is one state variable, or one field of a struct state variable.
type Member struct {
	Name         string   `json:"name" yaml:"name"`
	Type         string   `json:"type" yaml:"type"`
	Visibility   string   `json:"visibility" yaml:"visibility"`
	Mutability   string   `json:"mutability" yaml:"mutability"`
	Constant     bool     `json:"constant" yaml:"constant"`
	Size         int      `json:"size" yaml:"size"`
	Offset       int      `json:"offset" yaml:"offset"`
	Parent       *Parent  `json:"parent,omitempty" yaml:"parent,omitempty"`
	Children     []Member `json:"children,omitempty" yaml:"children,omitempty"`
	AbsolutePath string   `json:"absolutePath" yaml:"absolutePath"`
	DeclaredIn   string   `json:"declaredIn,omitempty" yaml:"declaredIn,omitempty"`
	// DataSlot is keccak256(slot) for dynamic arrays, bytes and string.
	DataSlot string `json:"dataSlot,omitempty" yaml:"dataSlot,omitempty"`
	Unsized  bool   `json:"unsized,omitempty" yaml:"unsized,omitempty"`
}

// Slot is one 32-byte storage slot.
type Slot struct {
	Key     string   `json:"key" yaml:"key"`
	Members []Member `json:"members" yaml:"members"`
	// Span is set when a large fixed array is collapsed into one entry; it
	// holds the decimal number of consecutive keys the entry stands for.
	Span string `json:"span,omitempty" yaml:"span,omitempty"`
}

// Used returns the number of occupied bytes.
func (s Slot) Used() int {
	n := 0
	for _, m := range s.Members {
		n += m.Size
	}
	return n
}

// Constant is a constant or immutable state variable.
type Constant struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type" yaml:"type"`
	Visibility   string `json:"visibility" yaml:"visibility"`
	Mutability   string `json:"mutability" yaml:"mutability"`
	Source       string `json:"source" yaml:"source"`
	AbsolutePath string `json:"absolutePath" yaml:"absolutePath"`
	DeclaredIn   string `json:"declaredIn,omitempty" yaml:"declaredIn,omitempty"`
}

type Layout struct {
	Variables []Member   `json:"variables" yaml:"variables"`
	Slots     []Slot     `json:"slots" yaml:"slots"`
	Transient []Slot     `json:"transient,omitempty" yaml:"transient,omitempty"`
	Constants []Constant `json:"constants" yaml:"constants"`
	Error     string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// SlotMap returns the slot key to member list view of the layout.
func (l *Layout) SlotMap() map[string][]Member {
	out := make(map[string][]Member, len(l.Slots))
	for _, s := range l.Slots {
		out[s.Key] = s.Members
	}
	return out
}

// DeclarationRef is the source provenance of a call graph node.
type DeclarationRef struct {
	ID              int64  `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	Kind            string `json:"kind" yaml:"kind"`
	Contract        string `json:"contract,omitempty" yaml:"contract,omitempty"`
	Signature       string `json:"signature,omitempty" yaml:"signature,omitempty"`
	Visibility      string `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	StateMutability string `json:"stateMutability,omitempty" yaml:"stateMutability,omitempty"`
	AbsolutePath    string `json:"absolutePath,omitempty" yaml:"absolutePath,omitempty"`
	Src             string `json:"src,omitempty" yaml:"src,omitempty"`
	StartLine       int    `json:"startLine,omitempty" yaml:"startLine,omitempty"`
	EndLine         int    `json:"endLine,omitempty" yaml:"endLine,omitempty"`
}

type CallNode struct {
	Ref      DeclarationRef `json:"ref" yaml:"ref"`
	CallType CallType       `json:"callType" yaml:"callType"`
	Children []*CallNode    `json:"children" yaml:"children"`
	// Unresolved marks a call whose target is missing from the input.
	Unresolved bool `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	// Recursive marks a target already being expanded on this path.
	Recursive bool `json:"recursive,omitempty" yaml:"recursive,omitempty"`
	// Truncated marks expansion stopped by the depth limit.
	Truncated bool `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	// Pruned marks a target under an ignored path whose body was not walked.
	Pruned bool `json:"pruned,omitempty" yaml:"pruned,omitempty"`
}

// Count returns the number of nodes in the tree rooted at n.
func (n *CallNode) Count() int {
	c := 1
	for _, ch := range n.Children {
		c += ch.Count()
	}
	return c
}

// Tally adds the call types of every non-root node to counts.
func (n *CallNode) Tally(counts map[CallType]int) {
	for _, ch := range n.Children {
		counts[ch.CallType]++
		ch.Tally(counts)
	}
}

// Element is an event, struct, error, enum or user-defined value type.
type Element struct {
	Kind         string `json:"kind" yaml:"kind"`
	Name         string `json:"name" yaml:"name"`
	Signature    string `json:"signature,omitempty" yaml:"signature,omitempty"`
	DeclaredIn   string `json:"declaredIn,omitempty" yaml:"declaredIn,omitempty"`
	AbsolutePath string `json:"absolutePath" yaml:"absolutePath"`
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rank orders severities; unknown values rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	}
	return 0
}

func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(s)); sev {
	case SeverityInfo, SeverityWarning, SeverityError:
		return sev, nil
	}
	return "", fmt.Errorf("unknown severity %q (want info|warning|error)", s)
}

// Diagnostic codes.
const (
	CodeUnknownType   = "UNKNOWN_TYPE"
	CodeLayoutFailed  = "LAYOUT_FAILED"
	CodeNoRoots       = "NO_ROOTS"
	CodeUnresolved    = "UNRESOLVED_CALL"
	CodeAnalyzeFailed = "ANALYZE_FAILED"

	CodeStorageGap    = "STORAGE_GAP"
	CodeDelegatecall  = "DELEGATECALL_REACHABLE"
	CodeGasStipend    = "GAS_STIPEND_TRANSFER"
	CodeUnguardedCall = "UNGUARDED_EXTERNAL_CALL"
)

// RuleMeta describes a contract check.
type RuleMeta struct {
	ID       string   `json:"id" yaml:"id"`
	Title    string   `json:"title" yaml:"title"`
	Severity Severity `json:"severity" yaml:"severity"`
}

type Diagnostic struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Code     string   `json:"code" yaml:"code"`
	Message  string   `json:"message" yaml:"message"`
	Contract string   `json:"contract,omitempty" yaml:"contract,omitempty"`
	Path     string   `json:"path,omitempty" yaml:"path,omitempty"`
	// Entity names the function the diagnostic is about, if any.
	Entity      string `json:"entity,omitempty" yaml:"entity,omitempty"`
	StartLine   int    `json:"startLine,omitempty" yaml:"startLine,omitempty"`
	EndLine     int    `json:"endLine,omitempty" yaml:"endLine,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
}

type Stats struct {
	Roots  int              `json:"roots" yaml:"roots"`
	Nodes  int              `json:"nodes" yaml:"nodes"`
	ByType map[CallType]int `json:"byType" yaml:"byType"`
}

type ContractReport struct {
	Name         string       `json:"name" yaml:"name"`
	AbsolutePath string       `json:"absolutePath" yaml:"absolutePath"`
	Kind         string       `json:"kind" yaml:"kind"`
	Layout       *Layout      `json:"layout" yaml:"layout"`
	CallTrees    []*CallNode  `json:"callTrees" yaml:"callTrees"`
	Elements     []Element    `json:"elements" yaml:"elements"`
	Diagnostics  []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	Stats        Stats        `json:"stats" yaml:"stats"`
}

type Failure struct {
	Name    string `json:"name" yaml:"name"`
	Message string `json:"message" yaml:"message"`
}

// Summary is the run-level outcome. Skipped contracts had no eligible roots.
type Summary struct {
	Succeeded []string  `json:"succeeded" yaml:"succeeded"`
	Skipped   []string  `json:"skipped" yaml:"skipped"`
	Failed    []Failure `json:"failed" yaml:"failed"`
}

type Request struct {
	Path           string
	Contracts      []string
	IncludeDeps    bool
	IncludeAll     bool
	NoStatic       bool
	MaxDepth       int
	IgnorePrefixes []string
	SolcPath       string
	Timeout        time.Duration
	UseCache       bool
}

type Result struct {
	Contracts []*ContractReport `json:"contracts" yaml:"contracts"`
	Summary   Summary           `json:"summary" yaml:"summary"`
	Elapsed   time.Duration     `json:"elapsed" yaml:"elapsed"`
}
