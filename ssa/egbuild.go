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

// Rewriter is invoked once for every pure node added to the equality graph.
// Implementations may add equivalent nodes and union them with id to expose
// cheaper forms to the extractor.
type Rewriter func(g *egraph.Graph, id egraph.Id, n ENode)

type _ESpan struct {
    lo int
    hi int
}

type _ESelection struct {
    node ENode
    cost int
}

type _ESession struct {
    fn    *CFG
    dom   *DominatorTree
    graph *egraph.Graph
    costs CostModel
    rules Rewriter
    vals  map[Reg]egraph.Id
    parms map[int][]egraph.Id
    chain []egraph.Id
    spans map[int]_ESpan
    cands map[egraph.Id][]ENode
    users map[egraph.Id][]egraph.Id
    onway map[egraph.Id]bool
    state map[egraph.Id]_ESelection
    waste map[egraph.Id]bool
    nregs int
    depth []map[egraph.Id]Reg
    bufs  map[int][]IrNode
    place map[egraph.Id]*BasicBlock
    srcs  map[IrNode]SrcPos
}

func newESession(fn *CFG, dom *DominatorTree, costs CostModel, rules Rewriter) *_ESession {
    if costs == nil {
        costs = DefaultCost{}
    }
    return &_ESession {
        fn    : fn,
        dom   : dom,
        graph : egraph.NewGraph(),
        costs : costs,
        rules : rules,
        vals  : make(map[Reg]egraph.Id),
        parms : make(map[int][]egraph.Id),
        spans : make(map[int]_ESpan),
        cands : make(map[egraph.Id][]ENode),
        users : make(map[egraph.Id][]egraph.Id),
        onway : make(map[egraph.Id]bool),
        state : make(map[egraph.Id]_ESelection),
        waste : make(map[egraph.Id]bool),
        bufs  : make(map[int][]IrNode),
        place : make(map[egraph.Id]*BasicBlock),
        srcs  : make(map[IrNode]SrcPos),
    }
}

func (self *_ESession) find(id egraph.Id) egraph.Id {
    return self.graph.Find(id)
}

func (self *_ESession) classof(r Reg) egraph.Id {
    r = self.fn.Resolve(r)

    /* all zero registers of a kind share one class */
    if r.Kind() == K_zero {
        r = r.Zero()
    }

    /* the value must have been mapped already */
    if id, ok := self.vals[r]; ok {
        return id
    } else {
        panic("ssa: use of an undefined value: " + r.String())
    }
}

func (self *_ESession) srcof(v IrNode) SrcPos {
    p, _ := self.fn.PosOf(v)
    return p
}

func (self *_ESession) argsof(v IrNode) []egraph.Id {
    var in []egraph.Id
    if u, ok := v.(IrUsages); ok {
        for _, r := range u.Usages() {
            in = append(in, self.find(self.classof(*r)))
        }
    }
    return in
}

/* build translates the entire function into the equality graph, keeping the
 * original order of side-effecting instructions in a single global chain */
func (self *_ESession) build() {
    self.vals[Rz] = self.graph.Add(&EnPure { Ins: &IrConstInt { R: Rz, V: 0 } })
    self.vals[Pn] = self.graph.Add(&EnPure { Ins: &IrConstPtr { R: Pn, P: nil } })
    self.fn.ReversePostOrder(func(bb *BasicBlock) { self.buildblock(bb) })
}

func (self *_ESession) buildblock(bb *BasicBlock) {
    lo := len(self.chain)

    /* block parameters are opaque leaves */
    for i, p := range bb.Params {
        id := self.graph.Add(&EnParam { Block: bb.Id, Index: i })
        self.vals[p] = id
        self.parms[bb.Id] = append(self.parms[bb.Id], id)
    }

    /* translate the instructions in order */
    for _, v := range bb.Ins {
        self.buildinstr(v)
    }

    /* the terminator joins the chain as the last effect of the block */
    id := self.graph.Add(&EnInst {
        Seq: len(self.chain),
        Ins: bb.Term,
        In : self.argsof(bb.Term),
        Pos: self.srcof(bb.Term),
    })

    /* record the effect span of this block */
    self.chain = append(self.chain, id)
    self.spans[bb.Id] = _ESpan { lo: lo, hi: len(self.chain) }
}

func (self *_ESession) buildinstr(v IrNode) {
    var id egraph.Id
    var defs []*Reg

    /* collect the operand classes */
    in := self.argsof(v)

    /* side-effecting instructions are unique instances on the global
     * chain, pure instructions are hash-consed by value identity */
    if isSideEffect(v) {
        id = self.graph.Add(&EnInst { Seq: len(self.chain), Ins: v, In: in, Pos: self.srcof(v) })
        self.chain = append(self.chain, id)
    } else {
        if p, ok := v.(*IrBinaryExpr); ok && p.Op.IsCommutative() && len(in) == 2 && in[0] > in[1] {
            in[0], in[1] = in[1], in[0]
        }
        if _, ok := v.(_VID); !ok {
            panic("ssa: instruction has no value identity: " + v.String())
        }
        node := &EnPure { Ins: v, In: in }
        id = self.graph.Add(node)
        if self.rules != nil {
            self.rules(self.graph, id, node)
        }
    }

    /* bind the definitions, results of multi-definition
     * instructions are projected through EnResult nodes */
    if d, ok := v.(IrDefinitions); ok {
        defs = d.Definitions()
    }

    /* no definitions to bind */
    if len(defs) == 0 {
        return
    }

    /* single definitions bind to the class directly */
    if len(defs) == 1 {
        self.vals[*defs[0]] = id
        return
    }

    /* project every result out of the class */
    for k, r := range defs {
        self.vals[*r] = self.graph.Add(&EnResult { Of: id, Index: k })
    }
}

func isSideEffect(v IrNode) bool {
    switch v.(type) {
        case *IrLoad  : return true
        case *IrStore : return true
    }
    _, ok := v.(IrImpure)
    return ok
}
