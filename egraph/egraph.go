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

// Package egraph implements a hash-consed equivalence-class graph.
//
// Nodes added to the graph are deduplicated by structural identity, and
// classes proven equal by an external rewrite engine can be merged with
// Union. Merging maintains congruence: whenever two classes collapse into
// one, any pair of nodes that becomes structurally identical as a result
// is collapsed as well.
package egraph

import (
    `sort`
    `strconv`
    `strings`
)

// Id is an opaque handle of one equivalence class.
type Id uint32

// Node is one concrete computation that can occupy a class. Head identifies
// the operation (immediates included), Args lists the argument classes.
type Node interface {
    Head() string
    Args() []Id
}

// Graph is a set of equivalence classes over hash-consed nodes.
type Graph struct {
    link  []Id
    size  []int
    index map[string]Id
    nodes map[Id][]Node
}

func NewGraph() *Graph {
    return &Graph {
        index: make(map[string]Id),
        nodes: make(map[Id][]Node),
    }
}

// Find resolves i to the canonical identifier of its class.
func (self *Graph) Find(i Id) Id {
    for self.link[i] != i {
        self.link[i] = self.link[self.link[i]]
        i = self.link[i]
    }
    return i
}

func (self *Graph) keyof(n Node) string {
    args := n.Args()

    /* nullary nodes are identified by their head alone */
    if len(args) == 0 {
        return n.Head()
    }

    /* canonicalize every argument class */
    buf := make([]string, 0, len(args))
    for _, a := range args {
        buf = append(buf, strconv.FormatUint(uint64(self.Find(a)), 10))
    }

    /* compose the full structural key */
    return n.Head() + "(" + strings.Join(buf, ",") + ")"
}

// Add inserts n into the graph, returning the class that contains it. A node
// structurally identical to an already present one does not create a new
// class.
func (self *Graph) Add(n Node) Id {
    key := self.keyof(n)

    /* hash-consing: identical nodes share one class */
    if c, ok := self.index[key]; ok {
        return self.Find(c)
    }

    /* allocate a singleton class */
    c := Id(len(self.link))
    self.link = append(self.link, c)
    self.size = append(self.size, 1)
    self.nodes[c] = []Node { n }
    self.index[key] = c
    return c
}

// Union merges the classes of a and b and restores congruence, returning the
// canonical identifier of the merged class.
func (self *Graph) Union(a Id, b Id) Id {
    c := self.merge(a, b)
    self.rebuild()
    return c
}

func (self *Graph) merge(a Id, b Id) Id {
    a = self.Find(a)
    b = self.Find(b)

    /* already the same class */
    if a == b {
        return a
    }

    /* union by size */
    if self.size[a] < self.size[b] {
        a, b = b, a
    }

    /* link the smaller class under the larger one */
    self.link[b] = a
    self.size[a] += self.size[b]
    self.nodes[a] = append(self.nodes[a], self.nodes[b]...)
    delete(self.nodes, b)
    return a
}

/* a merge may render other nodes structurally identical, so re-key every
 * node until no more classes collapse */
func (self *Graph) rebuild() {
    for {
        dup := [][2]Id(nil)
        idx := make(map[string]Id, len(self.index))

        /* re-key all nodes against the canonical identifiers */
        for c, ns := range self.nodes {
            for _, n := range ns {
                k := self.keyof(n)
                if o, ok := idx[k]; !ok {
                    idx[k] = c
                } else if self.Find(o) != self.Find(c) {
                    dup = append(dup, [2]Id { o, c })
                }
            }
        }

        /* reached the fixed point, install the fresh index */
        if len(dup) == 0 {
            self.index = idx
            return
        }

        /* collapse the newly congruent classes */
        for _, p := range dup {
            self.merge(p[0], p[1])
        }
    }
}

// NodesOf returns every node in the class of i.
func (self *Graph) NodesOf(i Id) []Node {
    return self.nodes[self.Find(i)]
}

// Classes lists the canonical identifier of every class, in ascending order.
func (self *Graph) Classes() []Id {
    ret := make([]Id, 0, len(self.nodes))
    for c := range self.nodes {
        ret = append(ret, c)
    }
    sort.Slice(ret, func(i int, j int) bool {
        return ret[i] < ret[j]
    })
    return ret
}

// Len returns the number of distinct classes.
func (self *Graph) Len() int {
    return len(self.nodes)
}
