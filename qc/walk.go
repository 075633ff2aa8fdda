package qc

// NodeKind discriminates the exported structural view of a query.
type NodeKind int

const (
	NodeNav NodeKind = iota
	NodeFilter
	NodeSort
	NodeSelect
	NodeGroup
	NodeCount
	NodeFirst
	NodeSlice
	NodeID
	NodeBinary
	NodeLit
	NodeArg
	NodeParam
)

// Node is a read-only structural view of a query expression, for engine
// implementations that compile queries into another language. A nil Base
// on a NodeNav marks the current scope.
type Node struct {
	Kind NodeKind

	Base *Node

	Steps  []string    // NodeNav
	Pred   *Node       // NodeFilter
	Keys   []SortKey   // NodeSort
	Fields []NodeField // NodeSelect, NodeGroup

	Limit  *Node // NodeSlice, nil when open
	Offset *Node // NodeSlice, nil when open

	Op       string // NodeBinary: "=", "~" or "in"
	LHS, RHS *Node  // NodeBinary

	Value any    // NodeLit
	Name  string // NodeArg, NodeParam
}

// NodeField is one named selection inside a Select or GroupBy node.
type NodeField struct {
	Name string
	Expr *Node
}

// Node returns the structural view of q.
func (q *Query) Node() *Node { return exportNode(q.n) }

func exportNode(n node) *Node {
	switch x := n.(type) {
	case nil:
		return &Node{Kind: NodeNav}
	case navNode:
		out := &Node{Kind: NodeNav, Steps: append([]string(nil), x.steps...)}
		if x.base != nil {
			out.Base = exportNode(x.base)
		}
		return out
	case filterNode:
		return &Node{Kind: NodeFilter, Base: exportNode(x.base), Pred: exportNode(x.pred)}
	case sortNode:
		return &Node{Kind: NodeSort, Base: exportNode(x.base), Keys: x.keys}
	case selectNode:
		return &Node{Kind: NodeSelect, Base: exportNode(x.base), Fields: exportFields(x.fields)}
	case groupNode:
		return &Node{Kind: NodeGroup, Base: exportNode(x.base), Fields: exportFields(x.keys)}
	case countNode:
		return &Node{Kind: NodeCount, Base: exportNode(x.base)}
	case firstNode:
		return &Node{Kind: NodeFirst, Base: exportNode(x.base)}
	case sliceNode:
		out := &Node{Kind: NodeSlice, Base: exportNode(x.base)}
		if x.limit != nil {
			out.Limit = exportNode(x.limit)
		}
		if x.offset != nil {
			out.Offset = exportNode(x.offset)
		}
		return out
	case idNode:
		return &Node{Kind: NodeID, Base: exportNode(x.base)}
	case binaryNode:
		return &Node{Kind: NodeBinary, Op: string(x.op), LHS: exportNode(x.lhs), RHS: exportNode(x.rhs)}
	case litNode:
		return &Node{Kind: NodeLit, Value: x.value}
	case argNode:
		return &Node{Kind: NodeArg, Name: x.name}
	case paramNode:
		return &Node{Kind: NodeParam, Name: x.name}
	default:
		return nil
	}
}

func exportFields(fields []Selection) []NodeField {
	out := make([]NodeField, len(fields))
	for i, f := range fields {
		out[i] = NodeField{Name: f.Name, Expr: exportNode(f.Expr.n)}
	}
	return out
}
