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

// Pass is a transformation over a function in SSA form.
type Pass interface {
    Apply(fn *CFG, dom *DominatorTree)
}

type _PassDescriptor struct {
    pass Pass
    desc string
}

var _passes = [...]_PassDescriptor {
    { desc: "Equality Saturation & Re-linearization", pass: new(EGraphOpt) },
}

// EGraphOpt deduplicates and simplifies the pure computations of a function
// through an equality graph, then rebuilds the function from the cheapest
// acyclic selection.
//
// Cost defaults to DefaultCost when nil. Rewrite, when non-nil, is invoked
// for every pure node and may union in equivalent forms.
type EGraphOpt struct {
    Cost    CostModel
    Rewrite Rewriter
}

func (self *EGraphOpt) Apply(fn *CFG, dom *DominatorTree) {
    es := newESession(fn, dom, self.Cost, self.Rewrite)
    es.build()
    es.extract()
    es.elaborate()
}

// Optimize runs every optimization pass over fn in order.
func Optimize(fn *CFG, dom *DominatorTree) {
    for _, p := range _passes {
        p.pass.Apply(fn, dom)
    }
}
