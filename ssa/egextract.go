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
    `github.com/oleiade/lane`

    `github.com/miralang/mira/egraph`
)

/* extract selects one representative node per class, such that the selected
 * nodes form an acyclic term graph of minimal total cost */
func (self *_ESession) extract() {
    self.initcands()

    /* every effect on the chain must be realizable */
    for _, id := range self.chain {
        c := self.find(id)
        self.visit(c)

        /* a side-effecting class with no acyclic form cannot be dropped */
        if self.waste[c] {
            panic("ssa: no acyclic form for a side-effecting class:\n" + _DumpConfig.Sdump(self.graph.NodesOf(c)))
        }
    }
}

/* initcands snapshots the candidate nodes of every class, and indexes the
 * classes by the classes that use them */
func (self *_ESession) initcands() {
    for _, c := range self.graph.Classes() {
        nodes := self.graph.NodesOf(c)
        cands := make([]ENode, 0, len(nodes))

        /* every node must have been added by the builder or a rewrite rule */
        for _, n := range nodes {
            if en, ok := n.(ENode); ok {
                cands = append(cands, en)
            } else {
                panic("ssa: foreign node in the equality graph: " + n.Head())
            }
        }

        /* index the usage edges */
        self.cands[c] = cands
        for _, n := range cands {
            for _, a := range n.Args() {
                self.users[self.find(a)] = append(self.users[self.find(a)], c)
            }
        }
    }
}

func (self *_ESession) visit(c egraph.Id) {
    c = self.find(c)

    /* already settled one way or the other */
    if self.waste[c] {
        return
    }
    if _, ok := self.state[c]; ok {
        return
    }

    /* the traversal never re-enters a class, cyclic
     * candidates are cut by realizable() instead */
    if self.onway[c] {
        panic("ssa: re-entered a class on the active path")
    }

    /* mark the class as on the active path, nodes that reach back into it
     * would form a cycle and are disqualified */
    self.onway[c] = true
    keep := make([]ENode, 0, len(self.cands[c]))

    /* keep the nodes whose operands all have an acyclic form */
    for _, n := range self.cands[c] {
        if self.realizable(n) {
            keep = append(keep, n)
        }
    }

    /* leave the active path */
    delete(self.onway, c)
    next := keep[:0]

    /* visiting an operand may have cascaded a deletion into one of the kept
     * nodes, filter once more against the final waste set */
    for _, n := range keep {
        ok := true
        for _, a := range n.Args() {
            if self.waste[self.find(a)] {
                ok = false
                break
            }
        }
        if ok {
            next = append(next, n)
        }
    }

    /* no candidate survived */
    if self.cands[c] = next; len(next) == 0 {
        self.discard(c)
        return
    }

    /* select the cheapest representative */
    best := _ESelection { node: next[0], cost: self.nodecost(next[0]) }
    for _, n := range next[1:] {
        if cost := self.nodecost(n); cost < best.cost {
            best = _ESelection { node: n, cost: cost }
        }
    }
    self.state[c] = best
}

func (self *_ESession) realizable(n ENode) bool {
    for _, a := range n.Args() {
        ca := self.find(a)

        /* an operand on the active path closes a cycle */
        if self.onway[ca] || self.waste[ca] {
            return false
        }

        /* settle the operand first */
        self.visit(ca)
        if self.waste[ca] {
            return false
        }
    }
    return true
}

func (self *_ESession) nodecost(n ENode) int {
    var base int

    /* intrinsic cost of the node itself */
    switch p := n.(type) {
        case *EnParam  : base = 0
        case *EnResult : base = 0
        case *EnPure   : base = self.costs.OpCost(p.Ins)
        case *EnInst   : base = self.costs.OpCost(p.Ins)
    }

    /* plus the cost of the selected operands */
    for _, a := range n.Args() {
        base += self.state[self.find(a)].cost
    }
    return base
}

/* discard marks a class as having no acyclic form, and cascades the deletion
 * into every class that can only be realized through it */
func (self *_ESession) discard(c egraph.Id) {
    q := lane.NewQueue()
    q.Enqueue(c)

    /* worklist of classes losing their last candidate */
    for !q.Empty() {
        x := self.find(q.Dequeue().(egraph.Id))

        /* already discarded via another path */
        if self.waste[x] {
            continue
        }

        /* a completed selection never becomes unrealizable, only classes
         * visited afterwards can be discarded */
        if _, ok := self.state[x]; ok {
            panic("ssa: a selected class was discarded")
        }

        /* drop every user node that depends on this class */
        self.waste[x] = true
        for _, u := range self.users[x] {
            u = self.find(u)
            keep := make([]ENode, 0, len(self.cands[u]))

            /* rebuild the candidate list without the dead nodes */
            for _, n := range self.cands[u] {
                ok := true
                for _, a := range n.Args() {
                    if self.waste[self.find(a)] {
                        ok = false
                        break
                    }
                }
                if ok {
                    keep = append(keep, n)
                }
            }

            /* the user lost its last candidate, cascade */
            if self.cands[u] = keep; len(keep) == 0 {
                q.Enqueue(u)
            }
        }
    }
}
