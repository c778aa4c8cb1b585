/*
 * Copyright 2024 The Mira Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ssa

import (
    `testing`

    `github.com/stretchr/testify/require`

    `github.com/miralang/mira/egraph`
)

func nodecount(bb *BasicBlock, pred func(IrNode) bool) int {
    n := 0
    for _, v := range bb.Ins {
        if pred(v) {
            n++
        }
    }
    return n
}

func isbinary(v IrNode) bool {
    _, ok := v.(*IrBinaryExpr)
    return ok
}

func TestEGraphOpt_StraightLineDedup(t *testing.T) {
    a, b, p := Ri(1), Ri(2), Rp(3)
    t1, t2, t3 := Ri(4), Ri(5), Ri(6)
    bb := &BasicBlock { Id: 0, Params: []Reg { a, b, p } }
    bb.Append(&IrBinaryExpr { R: t1, X: a, Y: b, Op: IrOpAdd })
    bb.Append(&IrStore { R: t1, Mem: p, Size: 8 })
    bb.Append(&IrBinaryExpr { R: t2, X: a, Y: b, Op: IrOpAdd })
    bb.Append(&IrStore { R: t2, Mem: p, Size: 8 })
    bb.Append(&IrBinaryExpr { R: t3, X: b, Y: a, Op: IrOpAdd })
    bb.Append(&IrStore { R: t3, Mem: p, Size: 8 })
    bb.Return()

    fn := NewCFG(bb)
    Optimize(fn, BuildDominatorTree(fn))
    t.Log("\n" + fn.Dump())

    /* one addition, three stores, all of the same value */
    require.Len(t, bb.Ins, 4)
    add := bb.Ins[0].(*IrBinaryExpr)
    for _, v := range bb.Ins[1:] {
        require.Equal(t, add.R, v.(*IrStore).R)
    }
}

func TestEGraphOpt_HoistSharedPure(t *testing.T) {
    a, b, p, cc := Ri(1), Ri(2), Rp(3), Ri(4)
    t1, t2 := Ri(5), Ri(6)
    bb0 := &BasicBlock { Id: 0, Params: []Reg { a, b, p, cc } }
    bb1 := &BasicBlock { Id: 1 }
    bb2 := &BasicBlock { Id: 2 }

    /* both arms compute and store the same sum */
    bb0.Branch(cc, Target(bb1), Target(bb2))
    bb1.Append(&IrBinaryExpr { R: t1, X: a, Y: b, Op: IrOpAdd })
    bb1.Append(&IrStore { R: t1, Mem: p, Size: 8 })
    bb1.Return()
    bb2.Append(&IrBinaryExpr { R: t2, X: a, Y: b, Op: IrOpAdd })
    bb2.Append(&IrStore { R: t2, Mem: p, Size: 8 })
    bb2.Return()

    fn := NewCFG(bb0)
    Optimize(fn, BuildDominatorTree(fn))
    t.Log("\n" + fn.Dump())

    /* the addition floats up to the common dominator */
    require.Equal(t, 1, nodecount(bb0, isbinary))
    require.Equal(t, 0, nodecount(bb1, isbinary))
    require.Equal(t, 0, nodecount(bb2, isbinary))

    /* both stores read the hoisted value */
    require.Len(t, bb1.Ins, 1)
    require.Len(t, bb2.Ins, 1)
    s1 := bb1.Ins[0].(*IrStore)
    s2 := bb2.Ins[0].(*IrStore)
    require.Equal(t, s1.R, s2.R)
    require.Equal(t, s1.Mem, s2.Mem)
    require.Equal(t, bb0.Ins[0].(*IrBinaryExpr).R, s1.R)

    /* the branch selector rebinds to the renamed parameter */
    require.Equal(t, bb0.Params[3], bb0.Term.(*IrSwitch).V)
}

func TestEGraphOpt_ScopedMemoization(t *testing.T) {
    a, b, p := Ri(1), Ri(2), Rp(3)
    t1, t2 := Ri(4), Ri(5)
    bb0 := &BasicBlock { Id: 0, Params: []Reg { a, b, p } }
    bb1 := &BasicBlock { Id: 1 }
    bb2 := &BasicBlock { Id: 2 }

    /* the sum is first demanded in bb1, bb2 only reuses it */
    bb0.Jump(bb1)
    bb1.Append(&IrBinaryExpr { R: t1, X: a, Y: b, Op: IrOpAdd })
    bb1.Append(&IrStore { R: t1, Mem: p, Size: 8 })
    bb1.Jump(bb2)
    bb2.Append(&IrBinaryExpr { R: t2, X: a, Y: b, Op: IrOpAdd })
    bb2.Append(&IrStore { R: t2, Mem: p, Size: 8 })
    bb2.Return()

    fn := NewCFG(bb0)
    Optimize(fn, BuildDominatorTree(fn))
    t.Log("\n" + fn.Dump())

    /* no hoisting above the first demand site */
    require.Equal(t, 0, nodecount(bb0, isbinary))
    require.Equal(t, 1, nodecount(bb1, isbinary))
    require.Equal(t, 0, nodecount(bb2, isbinary))
    require.Equal(t, bb1.Ins[1].(*IrStore).R, bb2.Ins[0].(*IrStore).R)
}

func TestEGraphOpt_BlockParameterFlow(t *testing.T) {
    a, b, p, q := Ri(1), Ri(2), Rp(3), Ri(4)
    u := Ri(5)
    bb0 := &BasicBlock { Id: 0, Params: []Reg { a, b, p } }
    bb1 := &BasicBlock { Id: 1, Params: []Reg { q } }

    /* a flows into bb1 through an edge argument */
    bb0.Jump(bb1, a)
    bb1.Append(&IrBinaryExpr { R: u, X: q, Y: b, Op: IrOpAdd })
    bb1.Append(&IrStore { R: u, Mem: p, Size: 8 })
    bb1.Return()

    fn := NewCFG(bb0)
    Optimize(fn, BuildDominatorTree(fn))
    t.Log("\n" + fn.Dump())

    /* the edge argument rebinds to the renamed parameter of bb0 */
    require.Len(t, bb1.Params, 1)
    sw := bb0.Term.(*IrSwitch)
    require.Equal(t, []Reg { bb0.Params[0] }, sw.Ln.In)

    /* the addition reads the parameter of bb1 and b of bb0 */
    add := bb1.Ins[0].(*IrBinaryExpr)
    require.ElementsMatch(t, []Reg { bb0.Params[1], bb1.Params[0] }, []Reg { add.X, add.Y })
}

func TestEGraphOpt_MultiResultCall(t *testing.T) {
    p := Rp(1)
    r1, r2, r3 := Ri(2), Ri(3), Ri(4)
    bb := &BasicBlock { Id: 0, Params: []Reg { p } }
    bb.Append(&IrCall { Fn: "runtime.makeslice", In: []Reg { p }, Out: []Reg { r1, r2, r3 } })
    bb.Append(&IrStore { R: r1, Mem: p, Size: 8 })
    bb.Append(&IrStore { R: r2, Mem: p, Size: 8 })
    bb.Append(&IrStore { R: r3, Mem: p, Size: 8 })
    bb.Return()

    fn := NewCFG(bb)
    Optimize(fn, BuildDominatorTree(fn))
    t.Log("\n" + fn.Dump())

    /* order preserved, one store per result, in result order */
    require.Len(t, bb.Ins, 4)
    call := bb.Ins[0].(*IrCall)
    for i, v := range bb.Ins[1:] {
        require.Equal(t, call.Out[i], v.(*IrStore).R)
    }
}

func TestEGraphOpt_MultiResultPure(t *testing.T) {
    x, y, p := Ri(1), Ri(2), Rp(3)
    bb := &BasicBlock { Id: 0, Params: []Reg { x, y, p } }
    bb.Append(&IrBitTestSet { T: Ri(4), S: Ri(5), X: x, Y: y })
    bb.Append(&IrStore { R: Ri(4), Mem: p, Size: 8 })
    bb.Append(&IrStore { R: Ri(5), Mem: p, Size: 8 })
    bb.Return()

    fn := NewCFG(bb)
    Optimize(fn, BuildDominatorTree(fn))
    t.Log("\n" + fn.Dump())

    /* materialized once, both projections bound */
    require.Len(t, bb.Ins, 3)
    bts := bb.Ins[0].(*IrBitTestSet)
    require.Equal(t, bts.T, bb.Ins[1].(*IrStore).R)
    require.Equal(t, bts.S, bb.Ins[2].(*IrStore).R)
}

func TestEGraphOpt_EffectOrderPreserved(t *testing.T) {
    a, p := Ri(1), Rp(2)
    x := Ri(3)
    bb := &BasicBlock { Id: 0, Params: []Reg { a, p } }
    bb.Append(&IrCall { Fn: "f1", In: []Reg { a } })
    bb.Append(new(IrBreakpoint))
    bb.Append(&IrLoad { R: x, Mem: p, Size: 8 })
    bb.Append(&IrStore { R: x, Mem: p, Size: 8 })
    bb.Append(&IrLoad { R: Ri(4), Mem: p, Size: 8 })
    bb.Append(&IrCall { Fn: "f2", In: []Reg { a } })
    bb.Append(new(IrBreakpoint))
    bb.Return()

    fn := NewCFG(bb)
    Optimize(fn, BuildDominatorTree(fn))
    t.Log("\n" + fn.Dump())

    /* identical loads do not merge, breakpoints do not merge */
    require.Len(t, bb.Ins, 7)
    require.Equal(t, "f1", bb.Ins[0].(*IrCall).Fn)
    require.IsType(t, new(IrBreakpoint), bb.Ins[1])
    require.IsType(t, new(IrLoad), bb.Ins[2])
    require.IsType(t, new(IrStore), bb.Ins[3])
    require.IsType(t, new(IrLoad), bb.Ins[4])
    require.Equal(t, "f2", bb.Ins[5].(*IrCall).Fn)
    require.IsType(t, new(IrBreakpoint), bb.Ins[6])
    require.Equal(t, bb.Ins[2].(*IrLoad).R, bb.Ins[3].(*IrStore).R)
}

func TestEGraphOpt_RewriteSelectsCheaper(t *testing.T) {
    a, b, p := Ri(1), Ri(2), Rp(3)
    bb := &BasicBlock { Id: 0, Params: []Reg { a, b, p } }
    bb.Append(&IrBinaryExpr { R: Ri(4), X: a, Y: b, Op: IrOpAdd })
    bb.Append(&IrStore { R: Ri(4), Mem: p, Size: 8 })
    bb.Return()

    /* pretend constant folding proved the sum */
    rw := func(g *egraph.Graph, id egraph.Id, n ENode) {
        if v, ok := n.(*EnPure); ok {
            if e, ok := v.Ins.(*IrBinaryExpr); ok && e.Op == IrOpAdd {
                g.Union(id, g.Add(&EnPure { Ins: &IrConstInt { V: 42 } }))
            }
        }
    }

    fn := NewCFG(bb)
    dom := BuildDominatorTree(fn)
    pass := EGraphOpt { Rewrite: rw }
    pass.Apply(fn, dom)
    t.Log("\n" + fn.Dump())

    /* the constant replaces the addition */
    require.Equal(t, 0, nodecount(bb, isbinary))
    require.Len(t, bb.Ins, 2)
    cv := bb.Ins[0].(*IrConstInt)
    require.Equal(t, int64(42), cv.V)
    require.Equal(t, cv.R, bb.Ins[1].(*IrStore).R)
}

func TestEGraphOpt_CyclicRewriteRecovers(t *testing.T) {
    a, b, p := Ri(1), Ri(2), Rp(3)
    bb := &BasicBlock { Id: 0, Params: []Reg { a, b, p } }
    bb.Append(&IrBinaryExpr { R: Ri(4), X: a, Y: b, Op: IrOpAdd })
    bb.Append(&IrStore { R: Ri(4), Mem: p, Size: 8 })
    bb.Return()

    /* x == x * 1, a valid rewrite whose term graph is cyclic */
    rw := func(g *egraph.Graph, id egraph.Id, n ENode) {
        if v, ok := n.(*EnPure); ok {
            if e, ok := v.Ins.(*IrBinaryExpr); ok && e.Op == IrOpAdd {
                one := g.Add(&EnPure { Ins: &IrConstInt { V: 1 } })
                g.Union(id, g.Add(&EnPure {
                    Ins: &IrBinaryExpr { Op: IrOpMul },
                    In : []egraph.Id { id, one },
                }))
            }
        }
    }

    fn := NewCFG(bb)
    dom := BuildDominatorTree(fn)
    pass := EGraphOpt { Rewrite: rw }
    pass.Apply(fn, dom)
    t.Log("\n" + fn.Dump())

    /* the cyclic form is disqualified, the addition survives */
    require.Len(t, bb.Ins, 2)
    add := bb.Ins[0].(*IrBinaryExpr)
    require.Equal(t, IrOpAdd, add.Op)
    require.Equal(t, add.R, bb.Ins[1].(*IrStore).R)
}

type _MulFreeCost struct{}

func (_MulFreeCost) OpCost(v IrNode) int {
    if e, ok := v.(*IrBinaryExpr); ok && e.Op == IrOpMul {
        return 0
    }
    return DefaultCost{}.OpCost(v)
}

func TestEGraphOpt_CustomCostModel(t *testing.T) {
    build := func() (*CFG, *BasicBlock) {
        a, b, p := Ri(1), Ri(2), Rp(3)
        bb := &BasicBlock { Id: 0, Params: []Reg { a, b, p } }
        bb.Append(&IrBinaryExpr { R: Ri(4), X: a, Y: b, Op: IrOpMul })
        bb.Append(&IrStore { R: Ri(4), Mem: p, Size: 8 })
        bb.Return()
        return NewCFG(bb), bb
    }

    /* claim the product equals the sum, so either is selectable */
    rw := func(g *egraph.Graph, id egraph.Id, n ENode) {
        if v, ok := n.(*EnPure); ok {
            if e, ok := v.Ins.(*IrBinaryExpr); ok && e.Op == IrOpMul {
                g.Union(id, g.Add(&EnPure {
                    Ins: &IrBinaryExpr { Op: IrOpAdd },
                    In : v.In,
                }))
            }
        }
    }

    /* the default model prefers the addition */
    fn, bb := build()
    pass := EGraphOpt { Rewrite: rw }
    pass.Apply(fn, BuildDominatorTree(fn))
    require.Equal(t, IrOpAdd, bb.Ins[0].(*IrBinaryExpr).Op)

    /* a model with free multiplies flips the selection */
    fn, bb = build()
    pass = EGraphOpt { Cost: _MulFreeCost{}, Rewrite: rw }
    pass.Apply(fn, BuildDominatorTree(fn))
    require.Equal(t, IrOpMul, bb.Ins[0].(*IrBinaryExpr).Op)
}

func TestEGraphOpt_LoopCarriedValue(t *testing.T) {
    a, b, p, cc := Ri(1), Ri(2), Rp(3), Ri(4)
    i, s := Ri(5), Ri(6)
    bb0 := &BasicBlock { Id: 0, Params: []Reg { a, b, p, cc } }
    bb1 := &BasicBlock { Id: 1, Params: []Reg { i } }
    bb2 := &BasicBlock { Id: 2 }

    /* bb1 loops onto itself, feeding the sum back into its parameter */
    bb0.Jump(bb1, a)
    bb1.Append(&IrBinaryExpr { R: s, X: i, Y: b, Op: IrOpAdd })
    bb1.Append(&IrStore { R: s, Mem: p, Size: 8 })
    bb1.Branch(cc, Target(bb1, s), Target(bb2))
    bb2.Append(&IrStore { R: s, Mem: p, Size: 8 })
    bb2.Return()

    fn := NewCFG(bb0)
    Optimize(fn, BuildDominatorTree(fn))
    t.Log("\n" + fn.Dump())

    /* the sum stays in the loop body, bb2 reuses it */
    require.Equal(t, 0, nodecount(bb0, isbinary))
    require.Equal(t, 1, nodecount(bb1, isbinary))
    require.Equal(t, 0, nodecount(bb2, isbinary))

    /* it reads the loop parameter and the invariant operand */
    add := bb1.Ins[0].(*IrBinaryExpr)
    require.Len(t, bb1.Params, 1)
    require.ElementsMatch(t, []Reg { bb1.Params[0], bb0.Params[1] }, []Reg { add.X, add.Y })
    require.Equal(t, add.R, bb1.Ins[1].(*IrStore).R)
    require.Equal(t, add.R, bb2.Ins[0].(*IrStore).R)

    /* the back edge passes the recomputed sum */
    sw := bb1.Term.(*IrSwitch)
    require.Same(t, bb1, sw.Br[1].To)
    require.Equal(t, []Reg { add.R }, sw.Br[1].In)
    require.Equal(t, []Reg { bb0.Params[0] }, bb0.Term.(*IrSwitch).Ln.In)
}

func TestEGraphOpt_ZeroRegisterFolding(t *testing.T) {
    p := Rp(1)
    z := Ri(2)
    bb := &BasicBlock { Id: 0, Params: []Reg { p } }
    bb.Append(&IrConstInt { R: z, V: 0 })
    bb.Append(&IrStore { R: z, Mem: p, Size: 8 })
    bb.Append(&IrStore { R: Rz, Mem: p, Size: 8 })
    bb.Return()

    fn := NewCFG(bb)
    Optimize(fn, BuildDominatorTree(fn))
    t.Log("\n" + fn.Dump())

    /* a zero constant folds onto the zero register, no materialization */
    require.Len(t, bb.Ins, 2)
    require.Equal(t, Rz, bb.Ins[0].(*IrStore).R)
    require.Equal(t, Rz, bb.Ins[1].(*IrStore).R)
}

func TestEGraphOpt_SourcePositions(t *testing.T) {
    a, b, p := Ri(1), Ri(2), Rp(3)
    bb := &BasicBlock { Id: 0, Params: []Reg { a, b, p } }
    add := &IrBinaryExpr { R: Ri(4), X: a, Y: b, Op: IrOpAdd }
    dead := &IrBinaryExpr { R: Ri(5), X: a, Y: a, Op: IrOpMul }
    st := &IrStore { R: Ri(4), Mem: p, Size: 8 }
    bb.Append(add)
    bb.Append(dead)
    bb.Append(st)
    bb.Return()

    fn := NewCFG(bb)
    fn.MarkSrc(add, SrcPos { Line: 3, Col: 7 })
    fn.MarkSrc(dead, SrcPos { Line: 4, Col: 1 })
    fn.MarkSrc(st, SrcPos { Line: 5, Col: 2 })
    Optimize(fn, BuildDominatorTree(fn))

    /* surviving operations keep their positions */
    pos, ok := fn.PosOf(add)
    require.True(t, ok)
    require.Equal(t, SrcPos { Line: 3, Col: 7 }, pos)
    pos, ok = fn.PosOf(st)
    require.True(t, ok)
    require.Equal(t, SrcPos { Line: 5, Col: 2 }, pos)

    /* entries of dropped instructions do not linger */
    _, ok = fn.PosOf(dead)
    require.False(t, ok)
}

func TestEGraphOpt_DeadPureRemoval(t *testing.T) {
    a, p := Ri(1), Rp(2)
    bb := &BasicBlock { Id: 0, Params: []Reg { a, p } }
    bb.Append(&IrLoadArg { R: Ri(3), Id: 0 })
    bb.Append(&IrBinaryExpr { R: Ri(4), X: a, Y: a, Op: IrOpAdd })
    bb.Append(&IrStore { R: a, Mem: p, Size: 8 })
    bb.Return()

    fn := NewCFG(bb)
    Optimize(fn, BuildDominatorTree(fn))
    t.Log("\n" + fn.Dump())

    /* nothing demands the argument load or the addition */
    require.Len(t, bb.Ins, 1)
    require.IsType(t, new(IrStore), bb.Ins[0])
}

func TestEGraphOpt_Idempotent(t *testing.T) {
    a, b, p, cc := Ri(1), Ri(2), Rp(3), Ri(4)
    bb0 := &BasicBlock { Id: 0, Params: []Reg { a, b, p, cc } }
    bb1 := &BasicBlock { Id: 1 }
    bb2 := &BasicBlock { Id: 2 }

    bb0.Branch(cc, Target(bb1), Target(bb2))
    bb1.Append(&IrBinaryExpr { R: Ri(5), X: a, Y: b, Op: IrOpAdd })
    bb1.Append(&IrStore { R: Ri(5), Mem: p, Size: 8 })
    bb1.Return()
    bb2.Append(&IrStore { R: b, Mem: p, Size: 8 })
    bb2.Return()

    fn := NewCFG(bb0)
    Optimize(fn, BuildDominatorTree(fn))
    first := fn.Dump()

    /* a second run must be a no-op modulo renaming, which is deterministic */
    Optimize(fn, BuildDominatorTree(fn))
    require.Equal(t, first, fn.Dump())
}
