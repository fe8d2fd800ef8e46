package layout

import (
	"errors"
	"fmt"

	"github.com/xab-mack/contractscope/internal/model"
	"github.com/xab-mack/contractscope/internal/solidity"
)

// LayoutError aborts layout reconstruction for one contract.
type LayoutError struct {
	Contract string
	Variable string
	Err      error
}

func (e *LayoutError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("layout of %s: %v", e.Contract, e.Err)
	}
	return fmt.Sprintf("layout of %s: variable %s: %v", e.Contract, e.Variable, e.Err)
}

func (e *LayoutError) Unwrap() error { return e.Err }

// Collector turns a contract's state variables into packable members.
type Collector struct {
	idx *solidity.Index
}

func NewCollector(idx *solidity.Index) *Collector {
	return &Collector{idx: idx}
}

// Build reconstructs the storage layout of c. Variables are taken from the
// linearized bases, most-base first. On error the returned layout still
// lists the variables, with unsized ones marked, but has no slots.
func (c *Collector) Build(contract *solidity.ContractDefinition) (*model.Layout, error) {
	out := &model.Layout{}
	var transient []model.Member
	var firstErr error

	bases := c.idx.Bases(contract)
	for i := len(bases) - 1; i >= 0; i-- {
		base := bases[i]
		for _, n := range base.Nodes {
			v, ok := n.(*solidity.VariableDeclaration)
			if !ok || !v.StateVariable {
				continue
			}
			if v.Constant || v.Mutability == "constant" || v.Mutability == "immutable" {
				out.Constants = append(out.Constants, c.constant(base, v))
				continue
			}
			m, err := c.member(v, nil, map[int64]bool{})
			declaredIn(&m, base.Name)
			if err != nil && firstErr == nil {
				firstErr = &LayoutError{Contract: contract.Name, Variable: v.Name, Err: err}
			}
			if v.Mutability == "transient" {
				transient = append(transient, m)
				continue
			}
			out.Variables = append(out.Variables, m)
		}
	}
	if firstErr != nil {
		out.Error = firstErr.Error()
		return out, firstErr
	}

	slots, err := Pack(out.Variables)
	if err != nil {
		err = &LayoutError{Contract: contract.Name, Err: err}
		out.Error = err.Error()
		return out, err
	}
	out.Slots = slots
	if len(transient) > 0 {
		if out.Transient, err = Pack(transient); err != nil {
			err = &LayoutError{Contract: contract.Name, Err: err}
			out.Error = err.Error()
			return out, err
		}
	}
	return out, nil
}

func (c *Collector) constant(base *solidity.ContractDefinition, v *solidity.VariableDeclaration) model.Constant {
	unit := c.idx.Unit(v.ID())
	k := model.Constant{
		Name:       v.Name,
		Type:       v.Type.TypeString,
		Visibility: v.Visibility,
		Mutability: v.Mutability,
		Source:     unit.Text(v.Src()),
		DeclaredIn: base.Name,
	}
	if unit != nil {
		k.AbsolutePath = unit.AbsolutePath
	}
	return k
}

// member builds the member for v, expanding structs into children. visiting
// holds the struct definitions on the current expansion path.
func (c *Collector) member(v *solidity.VariableDeclaration, parent *model.Parent, visiting map[int64]bool) (model.Member, error) {
	m := model.Member{
		Name:         v.Name,
		Type:         v.Type.TypeString,
		Visibility:   v.Visibility,
		Mutability:   v.Mutability,
		Constant:     v.Constant,
		Parent:       parent,
		AbsolutePath: c.idx.Path(v.ID()),
	}

	if IsStruct(m.Type) {
		def, err := c.structDef(v)
		if err != nil {
			m.Unsized = true
			return m, err
		}
		if visiting[def.ID()] {
			m.Unsized = true
			return m, fmt.Errorf("recursive struct %s", def.Name)
		}
		visiting[def.ID()] = true
		defer delete(visiting, def.ID())

		p := &model.Parent{Type: Normalize(m.Type), Name: v.Name, Parent: parent}
		for _, f := range def.Members {
			child, err := c.member(f, p, visiting)
			m.Children = append(m.Children, child)
			if err != nil {
				return m, err
			}
		}
		return m, nil
	}

	size, err := ByteWidth(c.underlying(v))
	if err != nil {
		m.Unsized = true
		return m, err
	}
	m.Size = size
	return m, nil
}

// declaredIn stamps the declaring contract on m and its flattened fields.
func declaredIn(m *model.Member, contract string) {
	m.DeclaredIn = contract
	for i := range m.Children {
		declaredIn(&m.Children[i], contract)
	}
}

func (c *Collector) structDef(v *solidity.VariableDeclaration) (*solidity.StructDefinition, error) {
	ref, ok := solidity.Reference(v.TypeName)
	if ok {
		if def, ok := c.idx.Lookup(ref).(*solidity.StructDefinition); ok {
			return def, nil
		}
	}
	return nil, &UnknownTypeError{TypeString: v.Type.TypeString}
}

// underlying resolves user-defined value types to their underlying type
// string. Other types are returned unchanged.
func (c *Collector) underlying(v *solidity.VariableDeclaration) string {
	ref, ok := solidity.Reference(v.TypeName)
	if !ok {
		return v.Type.TypeString
	}
	udvt, ok := c.idx.Lookup(ref).(*solidity.UserDefinedValueTypeDefinition)
	if !ok || udvt.UnderlyingType == nil {
		return v.Type.TypeString
	}
	return udvt.UnderlyingType.Types().TypeString
}

// IsUnknownType reports whether err stems from an unresolvable type string
// and returns that string.
func IsUnknownType(err error) (string, bool) {
	var ut *UnknownTypeError
	if errors.As(err, &ut) {
		return ut.TypeString, true
	}
	return "", false
}
