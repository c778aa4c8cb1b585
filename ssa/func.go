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
    `fmt`
)

// SrcPos is the source location an instruction originates from, kept for
// debugging-information propagation.
type SrcPos struct {
    Line int
    Col  int
}

func (self SrcPos) String() string {
    return fmt.Sprintf("%d:%d", self.Line, self.Col)
}

// CFG is one function body: an entry block, the value alias table maintained
// by earlier rewrites, and the source positions of its instructions.
type CFG struct {
    Root  *BasicBlock
    Alias map[Reg]Reg
    Src   map[IrNode]SrcPos
}

func NewCFG(root *BasicBlock) *CFG {
    return &CFG {
        Root  : root,
        Alias : make(map[Reg]Reg),
        Src   : make(map[IrNode]SrcPos),
    }
}

// MarkAlias records that every use of from actually refers to to.
func (self *CFG) MarkAlias(from Reg, to Reg) {
    self.Alias[from] = to
}

// Resolve follows the alias chain of r down to the authoritative value.
func (self *CFG) Resolve(r Reg) Reg {
    for {
        if a, ok := self.Alias[r]; ok {
            r = a
        } else {
            return r
        }
    }
}

// MarkSrc attaches a source position to the instruction v.
func (self *CFG) MarkSrc(v IrNode, p SrcPos) {
    self.Src[v] = p
}

// PosOf retrieves the source position of v, if one was recorded.
func (self *CFG) PosOf(v IrNode) (SrcPos, bool) {
    p, ok := self.Src[v]
    return p, ok
}

// PostOrder iterates over every reachable block in post-order of the
// control-flow graph.
func (self *CFG) PostOrder() *BasicBlockIter {
    return newBasicBlockIter(self)
}

// ReversePostOrder visits every reachable block after all of its forward
// predecessors, which guarantees definitions are seen before their uses.
func (self *CFG) ReversePostOrder(action func(bb *BasicBlock)) {
    for _, bb := range self.PostOrder().Reversed() {
        action(bb)
    }
}
