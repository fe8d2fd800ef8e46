package layout

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/xab-mack/contractscope/internal/model"
)

// MaxExpandedSlots bounds how many keys one fixed array is expanded into.
// Larger arrays collapse into a single entry whose Span carries the count.
const MaxExpandedSlots = 1024

// SizeError reports a member that reached the packer without a valid size.
type SizeError struct {
	Member string
	Type   string
	Size   int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("member %s (%s) has invalid size %d", e.Member, e.Type, e.Size)
}

// Pack assigns members to 32-byte slots in declaration order. Members with
// Children are structs; their fields stream into the same slot sequence.
// The input is not modified.
func Pack(members []model.Member) ([]model.Slot, error) {
	p := &packer{}
	for _, m := range members {
		if err := p.add(m); err != nil {
			return nil, err
		}
	}
	p.flush()
	return assignKeys(p.groups), nil
}

type packer struct {
	groups [][]model.Member
	cur    []model.Member
	size   int
}

func (p *packer) add(m model.Member) error {
	if len(m.Children) > 0 {
		for _, c := range m.Children {
			if err := p.add(c); err != nil {
				return err
			}
		}
		return nil
	}
	if m.Unsized || m.Size < 1 || m.Size > WordSize {
		return &SizeError{Member: m.Name, Type: m.Type, Size: m.Size}
	}
	if p.size+m.Size > WordSize {
		p.flush()
	}
	m.Offset = p.size
	m.Children = nil
	p.cur = append(p.cur, m)
	p.size += m.Size
	return nil
}

func (p *packer) flush() {
	if len(p.cur) == 0 {
		return
	}
	p.groups = append(p.groups, p.cur)
	p.cur = nil
	p.size = 0
}

func assignKeys(groups [][]model.Member) []model.Slot {
	var slots []model.Slot
	idx := uint256.NewInt(0)
	for _, g := range groups {
		if len(g) == 1 {
			if n, ok := FixedArrayLength(g[0].Type); ok {
				slots = appendArray(slots, g, idx, n)
				continue
			}
		}
		slots = append(slots, model.Slot{Key: SlotKey(idx), Members: withDataSlots(g, idx)})
		idx.AddUint64(idx, 1)
	}
	return slots
}

// appendArray emits one key per element of a fixed array, each holding a
// copy of the array member.
func appendArray(slots []model.Slot, g []model.Member, idx, n *uint256.Int) []model.Slot {
	if n.IsZero() {
		return slots
	}
	if !n.IsUint64() || n.Uint64() > MaxExpandedSlots {
		slots = append(slots, model.Slot{Key: SlotKey(idx), Members: copyGroup(g), Span: n.Dec()})
		idx.Add(idx, n)
		return slots
	}
	for i := uint64(0); i < n.Uint64(); i++ {
		slots = append(slots, model.Slot{Key: SlotKey(idx), Members: copyGroup(g)})
		idx.AddUint64(idx, 1)
	}
	return slots
}

func copyGroup(g []model.Member) []model.Member {
	return append([]model.Member(nil), g...)
}

func withDataSlots(g []model.Member, idx *uint256.Int) []model.Member {
	out := copyGroup(g)
	for i := range out {
		if IsDynamic(out[i].Type) {
			out[i].DataSlot = DataSlot(idx)
		}
	}
	return out
}

// SlotKey formats a slot index as 0x followed by 64 lowercase hex digits.
func SlotKey(idx *uint256.Int) string {
	return common.Hash(idx.Bytes32()).Hex()
}

// DataSlot returns keccak256 of the 32-byte slot index: where the elements
// of a dynamic array stored at idx begin, and the contents of a bytes or
// string of 32 bytes or more.
func DataSlot(idx *uint256.Int) string {
	word := idx.Bytes32()
	h := sha3.NewLegacyKeccak256()
	h.Write(word[:])
	return common.BytesToHash(h.Sum(nil)).Hex()
}
