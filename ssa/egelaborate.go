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
    `github.com/miralang/mira/egraph`
)

/* elaborate rewrites the function in place from the selected nodes. Effects
 * stay in their home block in the original order, pure classes are placed at
 * the lowest block that dominates every demand site, and materialized at most
 * once per dominator path */
func (self *_ESession) elaborate() {
    /* placement: pure classes float up to the LCA of their demand sites */
    for _, bb := range self.fn.PostOrder().Reversed() {
        sp := self.spans[bb.Id]
        for _, id := range self.chain[sp.lo:sp.hi] {
            self.placeclass(self.find(id), bb)
        }
    }

    /* emission: walk the dominator tree in preorder */
    self.walk(self.dom.Root)

    /* the rebuilt position table covers exactly the emitted operations,
     * entries of dropped instructions do not linger */
    self.fn.Src = self.srcs
}

func (self *_ESession) placeclass(c egraph.Id, bb *BasicBlock) {
    c = self.find(c)
    s, ok := self.state[c]

    /* every demanded class must have been extracted */
    if !ok {
        panic("ssa: placement of an unextracted class")
    }

    /* parameters never move */
    if _, ok = s.node.(*EnParam); ok {
        return
    }

    /* hoist to the common dominator of all demand sites */
    nb := bb
    if cur := self.place[c]; cur != nil {
        nb = self.dom.LCA(cur, bb)
    }

    /* no movement, the operands are already placed high enough */
    if nb == self.place[c] {
        return
    }

    /* operands must dominate the node */
    self.place[c] = nb
    for _, a := range s.node.Args() {
        self.placeclass(a, nb)
    }
}

func (self *_ESession) walk(bb *BasicBlock) {
    sp := self.spans[bb.Id]
    self.depth = append(self.depth, make(map[egraph.Id]Reg))

    /* the zero registers are predefined in the root scope, a demand of
     * their classes never materializes a constant */
    if bb == self.dom.Root {
        self.bindat(0, self.find(self.vals[Rz]), Rz)
        self.bindat(0, self.find(self.vals[Pn]), Pn)
    }

    /* rebind the block parameters to fresh registers */
    nargs := make([]Reg, len(bb.Params))
    for i, p := range bb.Params {
        r := self.renamed(p)
        nargs[i] = r
        self.bindat(len(self.depth) - 1, self.find(self.parms[bb.Id][i]), r)
    }

    /* demand every effect of this block in order, the demands pull in the
     * pure values placed here as they are first needed */
    for _, id := range self.chain[sp.lo : sp.hi-1] {
        self.demand(id)
    }

    /* the terminator is rewritten but not appended */
    tn, ok := self.state[self.find(self.chain[sp.hi-1])].node.(*EnInst)
    if !ok {
        panic("ssa: terminator class selected a non-instance node")
    }

    /* rebind the terminator operands */
    self.rewrite(tn.Ins, tn.In)
    bb.Term = tn.Ins.(IrTerminator)

    /* carry the terminator position over */
    if tn.Pos != (SrcPos{}) {
        self.srcs[tn.Ins] = tn.Pos
    }

    /* visit the dominated blocks with this scope still open, values
     * placed here stay visible below */
    for _, p := range self.dom.DominatorOf[bb.Id] {
        self.walk(p)
    }

    /* seal the block and close the scope */
    bb.Params = nargs
    bb.Ins = self.bufs[bb.Id]
    self.depth = self.depth[:len(self.depth) - 1]
}

func (self *_ESession) lookup(c egraph.Id) (Reg, bool) {
    for i := len(self.depth) - 1; i >= 0; i-- {
        if r, ok := self.depth[i][c]; ok {
            return r, true
        }
    }
    return 0, false
}

func (self *_ESession) bindat(i int, c egraph.Id, r Reg) {
    self.depth[i][c] = r
}

/* renamed allocates the next normalized register of the same pointerness */
func (self *_ESession) renamed(r Reg) Reg {
    self.nregs++
    return r.Normalize(self.nregs)
}

/* demand materializes the value of a class in the current scope, reusing a
 * binding from any enclosing scope if one exists */
func (self *_ESession) demand(id egraph.Id) Reg {
    c := self.find(id)

    /* already materialized on this dominator path */
    if r, ok := self.lookup(c); ok {
        return r
    }

    /* must have been selected by the extractor */
    s, ok := self.state[c]
    if !ok {
        panic("ssa: demand of an unextracted class")
    }

    /* materialize the selected node */
    switch n := s.node.(type) {
        case *EnParam  : panic("ssa: demand of an out-of-scope parameter")
        case *EnResult : return self.project(c, n)
        case *EnPure   : return self.emit(c, n.Ins, n.In, self.srcof(n.Ins))
        case *EnInst   : return self.emit(c, n.Ins, n.In, n.Pos)
        default        : panic("ssa: invalid node selection")
    }
}

/* project binds one result of a multi-definition instruction, emitting the
 * instruction itself on first demand */
func (self *_ESession) project(c egraph.Id, n *EnResult) Reg {
    self.demand(n.Of)

    /* emitting the producer may have bound every projection already */
    if r, ok := self.lookup(c); ok {
        return r
    }

    /* read the result register off the emitted instruction */
    po := self.find(n.Of)
    defs := instrof(self.state[po].node).(IrDefinitions).Definitions()

    /* the projection index is fixed at construction time */
    if n.Index >= len(defs) {
        panic("ssa: projection index out of range")
    }

    /* the projection is visible wherever the producer is */
    r := *defs[n.Index]
    self.bindat(self.dom.Depth[self.place[po].Id], c, r)
    return r
}

func instrof(n ENode) IrNode {
    switch p := n.(type) {
        case *EnPure : return p.Ins
        case *EnInst : return p.Ins
        default      : panic("ssa: node has no instruction")
    }
}

/* emit rewrites the instruction operands, renames its definitions, and
 * appends it to the buffer of its placement block */
func (self *_ESession) emit(c egraph.Id, v IrNode, in []egraph.Id, pos SrcPos) Reg {
    self.rewrite(v, in)

    /* pure nodes were placed by the placement pass, effects
     * are placed at their home block which demands them first */
    pb := self.place[c]
    if pb == nil {
        panic("ssa: emission without a placement")
    }

    /* rename the definitions */
    di := self.dom.Depth[pb.Id]
    ret := Rz

    /* fresh registers keep the output in strict SSA form */
    if d, ok := v.(IrDefinitions); ok {
        for k, r := range d.Definitions() {
            nr := self.renamed(*r)
            *r = nr
            if k == 0 {
                ret = nr
            }
        }
    }

    /* bind at the scope of the placement block, the value is
     * visible to every block it dominates */
    self.bindat(di, c, ret)
    self.bufs[pb.Id] = append(self.bufs[pb.Id], v)

    /* positions are keyed by the emitted instruction, the zero
     * position means no source information was ever recorded */
    if pos != (SrcPos{}) {
        self.srcs[v] = pos
    }
    return ret
}

/* rewrite substitutes the instruction operands with the registers holding
 * the values of their classes, demanding them as needed */
func (self *_ESession) rewrite(v IrNode, in []egraph.Id) {
    args := make([]Reg, len(in))
    for i, a := range in {
        args[i] = self.demand(a)
    }

    /* operand order of Usages() matches the order the builder saw */
    if u, ok := v.(IrUsages); ok {
        uses := u.Usages()
        if len(uses) != len(args) {
            panic("ssa: operand arity mismatch")
        }
        for i, r := range uses {
            *r = args[i]
        }
    }
}
