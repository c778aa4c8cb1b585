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
    `strings`
)

// BasicBlock is a straight-line sequence of instructions with a single entry
// and a single terminator. Values flowing in from the predecessors arrive
// through the ordered block parameters.
type BasicBlock struct {
    Id     int
    Params []Reg
    Ins    []IrNode
    Term   IrTerminator
}

func (self *BasicBlock) String() string {
    nb := len(self.Ins)
    buf := make([]string, 0, nb + 2)

    /* dump the parameter list */
    ps := make([]string, 0, len(self.Params))
    for _, p := range self.Params {
        ps = append(ps, p.String())
    }

    /* block header */
    buf = append(buf, fmt.Sprintf("bb_%d(%s):", self.Id, strings.Join(ps, ", ")))

    /* dump every instruction */
    for _, v := range self.Ins {
        buf = append(buf, "    " + strings.ReplaceAll(v.String(), "\n", "\n    "))
    }

    /* dump the terminator */
    buf = append(buf, "    " + strings.ReplaceAll(self.Term.String(), "\n", "\n    "))
    return strings.Join(buf, "\n")
}

// AddParam appends one parameter to the block.
func (self *BasicBlock) AddParam(r Reg) {
    self.Params = append(self.Params, r)
}

// Append adds one instruction at the end of the block body.
func (self *BasicBlock) Append(v IrNode) {
    self.Ins = append(self.Ins, v)
}

// Target constructs an edge to bb, passing in as its parameters.
func Target(bb *BasicBlock, in ...Reg) *IrBranch {
    return &IrBranch {
        To: bb,
        In: in,
    }
}

// Jump terminates the block with an unconditional branch.
func (self *BasicBlock) Jump(to *BasicBlock, in ...Reg) {
    self.Term = &IrSwitch {
        Ln: Target(to, in...),
    }
}

// Branch terminates the block with a two-way conditional branch: t is taken
// when v is non-zero, f otherwise.
func (self *BasicBlock) Branch(v Reg, t *IrBranch, f *IrBranch) {
    self.Term = &IrSwitch {
        V  : v,
        Ln : f,
        Br : map[int64]*IrBranch { 1: t },
    }
}

// Return terminates the block, yielding rr to the caller.
func (self *BasicBlock) Return(rr ...Reg) {
    self.Term = &IrReturn {
        R: rr,
    }
}
