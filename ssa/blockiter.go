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
)

// BasicBlockIter yields the blocks of a CFG in post-order.
type BasicBlockIter struct {
    b *BasicBlock
    s *lane.Stack
    v map[int]struct{}
}

func newBasicBlockIter(cfg *CFG) *BasicBlockIter {
    st := lane.NewStack()
    st.Push(cfg.Root)
    return &BasicBlockIter {
        s: st,
        v: map[int]struct{} { cfg.Root.Id: {} },
    }
}

func (self *BasicBlockIter) Block() *BasicBlock {
    return self.b
}

func (self *BasicBlockIter) Next() bool {
    var i int
    var b *BasicBlock

    /* scan until the stack is empty */
    for !self.s.Empty() {
        t := false
        v := self.s.Head().(*BasicBlock)

        /* find the first unvisited successor */
        for it := v.Term.Successors(); it.Next(); {
            if b, i = it.Block(), it.Block().Id; b != nil {
                if _, ok := self.v[i]; !ok {
                    t = true
                    break
                }
            }
        }

        /* descend into the unvisited successor if any,
         * otherwise the node itself is yielded */
        if !t {
            self.b = self.s.Pop().(*BasicBlock)
            return true
        }

        /* push the successor, and mark as visited */
        self.s.Push(b)
        self.v[i] = struct{}{}
    }

    /* clear the current block pointer */
    self.b = nil
    return false
}

func (self *BasicBlockIter) ForEach(action func(bb *BasicBlock)) {
    for self.Next() {
        action(self.b)
    }
}

func (self *BasicBlockIter) Reversed() []*BasicBlock {
    var rt []*BasicBlock
    for self.Next() { rt = append(rt, self.b) }
    blockreverse(rt)
    return rt
}
