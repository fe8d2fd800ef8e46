package solidity

// Index resolves node ids across all source units of one compilation.
type Index struct {
	units    []*SourceUnit
	byID     map[int64]Node
	unitOf   map[int64]*SourceUnit
	ownerOf  map[int64]*ContractDefinition
	contract []*ContractDefinition
}

// NewIndex indexes every node reachable from units. Units are expected to
// share one id space, i.e. come from the same compiler run.
func NewIndex(units []*SourceUnit) *Index {
	idx := &Index{
		units:   units,
		byID:    map[int64]Node{},
		unitOf:  map[int64]*SourceUnit{},
		ownerOf: map[int64]*ContractDefinition{},
	}
	for _, u := range units {
		var owner *ContractDefinition
		var visit func(n Node)
		visit = func(n Node) {
			idx.byID[n.ID()] = n
			idx.unitOf[n.ID()] = u
			if owner != nil {
				idx.ownerOf[n.ID()] = owner
			}
			if c, ok := n.(*ContractDefinition); ok {
				idx.contract = append(idx.contract, c)
				prev := owner
				owner = c
				for _, ch := range c.Children() {
					visit(ch)
				}
				owner = prev
				return
			}
			for _, ch := range n.Children() {
				visit(ch)
			}
		}
		visit(u)
	}
	return idx
}

// Lookup returns the node with the given id, or nil.
func (x *Index) Lookup(id int64) Node {
	return x.byID[id]
}

// Unit returns the source unit containing the node with the given id.
func (x *Index) Unit(id int64) *SourceUnit {
	return x.unitOf[id]
}

// Path returns the absolute path of the unit declaring id, or "".
func (x *Index) Path(id int64) string {
	if u := x.unitOf[id]; u != nil {
		return u.AbsolutePath
	}
	return ""
}

// Owner returns the contract enclosing id, or nil for file-level nodes.
func (x *Index) Owner(id int64) *ContractDefinition {
	return x.ownerOf[id]
}

// Contracts returns all contract, interface and library definitions in
// unit order.
func (x *Index) Contracts() []*ContractDefinition {
	return x.contract
}

// Units returns the indexed units.
func (x *Index) Units() []*SourceUnit {
	return x.units
}

// Bases resolves c's linearized base contracts, most-derived first. Ids the
// index cannot resolve are dropped.
func (x *Index) Bases(c *ContractDefinition) []*ContractDefinition {
	if len(c.LinearizedBaseContracts) == 0 {
		return []*ContractDefinition{c}
	}
	var out []*ContractDefinition
	for _, id := range c.LinearizedBaseContracts {
		if b, ok := x.byID[id].(*ContractDefinition); ok {
			out = append(out, b)
		}
	}
	return out
}
