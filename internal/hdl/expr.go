package hdl

// Expr is a combinational expression over signals. The variant set is
// closed: evaluators and emitters match exhaustively over it.
type Expr interface {
	expr()
}

// Ref reads the current value of a signal.
type Ref struct {
	Sig *Signal
}

// Const is an integer literal.
type Const struct {
	Value uint64
}

// BinOp identifies a binary operator.
type BinOp string

const (
	OpEq  BinOp = "=="
	OpNe  BinOp = "!="
	OpAnd BinOp = "&&"
	OpOr  BinOp = "||"
)

// Binary applies a binary operator. Comparison operators yield a 1-bit
// result; boolean operators treat any nonzero operand as true.
type Binary struct {
	Op   BinOp
	X, Y Expr
}

// Not is boolean negation: yields 1 if X evaluates to zero, else 0.
type Not struct {
	X Expr
}

func (Ref) expr()    {}
func (Const) expr()  {}
func (Binary) expr() {}
func (Not) expr()    {}

// Sig wraps a signal read.
func Sig(s *Signal) Expr { return Ref{Sig: s} }

// C wraps an integer literal.
func C(v uint64) Expr { return Const{Value: v} }

// Eq builds x == y.
func Eq(x, y Expr) Expr { return Binary{Op: OpEq, X: x, Y: y} }

// Ne builds x != y.
func Ne(x, y Expr) Expr { return Binary{Op: OpNe, X: x, Y: y} }

// And builds x && y.
func And(x, y Expr) Expr { return Binary{Op: OpAnd, X: x, Y: y} }

// Or builds x || y.
func Or(x, y Expr) Expr { return Binary{Op: OpOr, X: x, Y: y} }

// Neg builds !x.
func Neg(x Expr) Expr { return Not{X: x} }
