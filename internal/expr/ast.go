package expr

// Expr is any node of the parsed expression tree. Accept dispatches to the
// matching Visit method, a visitor-based double-dispatch shape closed over
// five node kinds.
type Expr interface {
	Accept(v Visitor) (any, error)
	Pos() int
}

// Visitor evaluates one Expr node kind at a time. ScalarEvaluator implements
// it, carrying units.Quantity in the `any` return; time-dependent evaluation
// (analogEval in time_eval.go) walks the tree with a type switch instead.
type Visitor interface {
	VisitNumber(*NumberExpr) (any, error)
	VisitIdent(*IdentExpr) (any, error)
	VisitUnary(*UnaryExpr) (any, error)
	VisitBinary(*BinaryExpr) (any, error)
	VisitCall(*CallExpr) (any, error)
}

// NumberExpr is a numeric literal with an optional unit suffix ("" for a
// bare dimensionless number).
type NumberExpr struct {
	Value float64
	Unit  string
	pos   int
}

func (n *NumberExpr) Accept(v Visitor) (any, error) { return v.VisitNumber(n) }
func (n *NumberExpr) Pos() int                      { return n.pos }

// IdentExpr is a bare identifier reference; "t" is the reserved time symbol.
type IdentExpr struct {
	Name string
	pos  int
}

func (n *IdentExpr) Accept(v Visitor) (any, error) { return v.VisitIdent(n) }
func (n *IdentExpr) Pos() int                      { return n.pos }

// UnaryExpr is a prefix +/- applied to Operand.
type UnaryExpr struct {
	Op      byte
	Operand Expr
	pos     int
}

func (n *UnaryExpr) Accept(v Visitor) (any, error) { return v.VisitUnary(n) }
func (n *UnaryExpr) Pos() int                       { return n.pos }

// BinaryExpr is a left-associative binary +, -, *, /, or ^.
type BinaryExpr struct {
	Op          byte
	Left, Right Expr
	pos         int
}

func (n *BinaryExpr) Accept(v Visitor) (any, error) { return v.VisitBinary(n) }
func (n *BinaryExpr) Pos() int                       { return n.pos }

// CallExpr is a named function applied to one or more arguments.
type CallExpr struct {
	Name string
	Args []Expr
	pos  int
}

func (n *CallExpr) Accept(v Visitor) (any, error) { return v.VisitCall(n) }
func (n *CallExpr) Pos() int                       { return n.pos }

// IsTimeDependent reports whether any subtree of e references the reserved
// identifier "t".
func IsTimeDependent(e Expr) bool {
	switch n := e.(type) {
	case *NumberExpr:
		return false
	case *IdentExpr:
		return n.Name == "t"
	case *UnaryExpr:
		return IsTimeDependent(n.Operand)
	case *BinaryExpr:
		return IsTimeDependent(n.Left) || IsTimeDependent(n.Right)
	case *CallExpr:
		for _, a := range n.Args {
			if IsTimeDependent(a) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
