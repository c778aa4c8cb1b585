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

/** This is an implementation of the Lengauer-Tarjan algorithm described in
 *  https://doi.org/10.1145%2F357062.357071
 */

package ssa

import (
    `github.com/oleiade/lane`
)

type _LtNode struct {
    semi     int
    node     *BasicBlock
    dom      *_LtNode
    label    *_LtNode
    parent   *_LtNode
    ancestor *_LtNode
    pred     []*_LtNode
    bucket   map[*_LtNode]struct{}
}

type _LtEdge struct {
    from *_LtNode
    to   *BasicBlock
}

type _LengauerTarjan struct {
    nodes []*_LtNode
    index map[int]int
}

func newLengauerTarjan() *_LengauerTarjan {
    return &_LengauerTarjan {
        index: make(map[int]int),
    }
}

/* Step 1: Carry out a depth-first search of the problem graph. Number the
 * vertices from 1 to n as they are reached during the search. */
func (self *_LengauerTarjan) dfs(root *BasicBlock) {
    st := lane.NewStack()
    st.Push(_LtEdge { from: nil, to: root })

    /* traverse the entire graph */
    for !st.Empty() {
        e := st.Pop().(_LtEdge)

        /* already discovered, only record the incoming edge */
        if i, ok := self.index[e.to.Id]; ok {
            self.nodes[i].pred = append(self.nodes[i].pred, e.from)
            continue
        }

        /* create a new node, its parent is the discovering edge */
        p := &_LtNode {
            semi   : len(self.nodes),
            node   : e.to,
            parent : e.from,
            bucket : make(map[*_LtNode]struct{}),
        }

        /* add to the node list */
        p.label = p
        self.index[e.to.Id] = len(self.nodes)
        self.nodes = append(self.nodes, p)

        /* the discovering edge is also a predecessor edge */
        if e.from != nil {
            p.pred = append(p.pred, e.from)
        }

        /* queue all the successors */
        for it := e.to.Term.Successors(); it.Next(); {
            st.Push(_LtEdge { from: p, to: it.Block() })
        }
    }
}

func (self *_LengauerTarjan) eval(p *_LtNode) *_LtNode {
    if p.ancestor == nil {
        return p
    } else {
        self.compress(p)
        return p.label
    }
}

func (self *_LengauerTarjan) link(p *_LtNode, q *_LtNode) {
    q.ancestor = p
}

func (self *_LengauerTarjan) compress(p *_LtNode) {
    if p.ancestor.ancestor != nil {
        self.compress(p.ancestor)
        if p.label.semi > p.ancestor.label.semi { p.label = p.ancestor.label }
        p.ancestor = p.ancestor.ancestor
    }
}

// DominatorTree records, for every reachable block, its immediate dominator,
// the blocks it immediately dominates, and its depth below the root.
type DominatorTree struct {
    Root        *BasicBlock
    Depth       map[int]int
    DominatedBy map[int]*BasicBlock
    DominatorOf map[int][]*BasicBlock
}

func BuildDominatorTree(fn *CFG) *DominatorTree {
    lt := newLengauerTarjan()
    lt.dfs(fn.Root)

    /* perform Step 2 and Step 3 simultaneously */
    for i := len(lt.nodes) - 1; i > 0; i-- {
        p := lt.nodes[i]
        q := (*_LtNode)(nil)

        /* Step 2: Compute the semidominators of all vertices by applying
         * Theorem 4, vertex by vertex in decreasing order by number. */
        for _, v := range p.pred {
            q = lt.eval(v)
            p.semi = minint(p.semi, q.semi)
        }

        /* link the ancestor */
        lt.link(p.parent, p)
        lt.nodes[p.semi].bucket[p] = struct{}{}

        /* Step 3: Implicitly define the immediate dominator of each vertex
         * by applying Corollary 1. */
        for v := range p.parent.bucket {
            if q = lt.eval(v); q.semi < v.semi {
                v.dom = q
            } else {
                v.dom = p.parent
            }
        }

        /* clear the bucket */
        for v := range p.parent.bucket {
            delete(p.parent.bucket, v)
        }
    }

    /* Step 4: Explicitly define the immediate dominator of each vertex,
     * vertex by vertex in increasing order by number. */
    for _, p := range lt.nodes[1:] {
        if p.dom.node.Id != lt.nodes[p.semi].node.Id {
            p.dom = p.dom.dom
        }
    }

    /* construct the dominator tree */
    dt := &DominatorTree {
        Root        : fn.Root,
        Depth       : make(map[int]int),
        DominatedBy : make(map[int]*BasicBlock),
        DominatorOf : make(map[int][]*BasicBlock),
    }

    /* map the dominator relations */
    for _, p := range lt.nodes[1:] {
        dt.DominatedBy[p.node.Id] = p.dom.node
        dt.DominatorOf[p.dom.node.Id] = append(dt.DominatorOf[p.dom.node.Id], p.node)
    }

    /* assign the depth of every node, top down */
    q := lane.NewQueue()
    dt.Depth[fn.Root.Id] = 0

    /* traverse the tree with BFS */
    for q.Enqueue(fn.Root); !q.Empty(); {
        p := q.Dequeue().(*BasicBlock)
        for _, b := range dt.DominatorOf[p.Id] {
            dt.Depth[b.Id] = dt.Depth[p.Id] + 1
            q.Enqueue(b)
        }
    }

    /* all done */
    return dt
}

// LCA locates the lowest common ancestor of a and b in the dominator tree,
// that is the innermost block that dominates both.
func (self *DominatorTree) LCA(a *BasicBlock, b *BasicBlock) *BasicBlock {
    for a != b {
        if self.Depth[a.Id] < self.Depth[b.Id] {
            a, b = b, a
        }
        a = self.DominatedBy[a.Id]
    }
    return a
}
