package hdl

// RewriteFunc maps a leaf statement to its replacement. Returning the input
// unchanged keeps the leaf as is.
type RewriteFunc func(Statement) Statement

// Rewrite walks a statement list and applies fn to every leaf (Assign and
// Marker), rebuilding compound nodes (If, Switch) around the rewritten
// bodies. Structure is preserved; only leaves can be replaced. The input is
// never mutated: a new tree is returned.
func Rewrite(stmts []Statement, fn RewriteFunc) []Statement {
	if len(stmts) == 0 {
		return nil
	}
	out := make([]Statement, len(stmts))
	for i, s := range stmts {
		out[i] = rewriteOne(s, fn)
	}
	return out
}

func rewriteOne(s Statement, fn RewriteFunc) Statement {
	switch n := s.(type) {
	case Assign, Marker:
		return fn(n)
	case If:
		return If{
			Cond: n.Cond,
			Then: Rewrite(n.Then, fn),
			Else: Rewrite(n.Else, fn),
		}
	case Switch:
		var cases map[uint64][]Statement
		if n.Cases != nil {
			cases = make(map[uint64][]Statement, len(n.Cases))
			for k, body := range n.Cases {
				cases[k] = Rewrite(body, fn)
			}
		}
		return Switch{
			Sel:     n.Sel,
			Cases:   cases,
			Default: Rewrite(n.Default, fn),
		}
	default:
		return s
	}
}
