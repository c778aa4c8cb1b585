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

    `github.com/miralang/mira/egraph`
)

// _VID assigns a value identity to every instruction that is safe to
// deduplicate, instructions with identical identities and identical
// operands always compute identical values.
type _VID interface {
    IrNode
    vid() string
}

func (self *IrConstInt)   vid() string { return fmt.Sprintf("$%d", self.V) }
func (self *IrConstPtr)   vid() string { return fmt.Sprintf("$%p", self.P) }
func (self *IrLoadArg)    vid() string { return fmt.Sprintf("#%d", self.Id) }
func (self *IrLEA)        vid() string { return "(&)" }
func (self *IrUnaryExpr)  vid() string { return "(" + self.Op.String() + ")" }
func (self *IrBinaryExpr) vid() string { return "(" + self.Op.String() + ")" }
func (self *IrBitTestSet) vid() string { return "(bts)" }

// ENode is the representation of instructions inside the equality graph.
type ENode interface {
    egraph.Node
    enode()
}

func (*EnParam)  enode() {}
func (*EnPure)   enode() {}
func (*EnInst)   enode() {}
func (*EnResult) enode() {}

// EnParam represents a single basic block parameter. Parameters are opaque,
// two parameters are equal iff they are the same parameter.
type EnParam struct {
    Block int
    Index int
}

func (self *EnParam) Args() []egraph.Id { return nil }
func (self *EnParam) Head() string      { return fmt.Sprintf("param(bb_%d.%d)", self.Block, self.Index) }

// EnPure represents a side-effect free instruction. Pure nodes with the same
// head and congruent operands share an equivalence class.
type EnPure struct {
    Ins IrNode
    In  []egraph.Id
}

func (self *EnPure) Args() []egraph.Id { return self.In }
func (self *EnPure) Head() string      { return self.Ins.(_VID).vid() }

// EnInst represents a side-effecting instruction or a terminator. Every
// instance is distinct, the head carries the position on the effect chain so
// two instances never hash-cons together.
type EnInst struct {
    Seq int
    Ins IrNode
    In  []egraph.Id
    Pos SrcPos
}

func (self *EnInst) Args() []egraph.Id { return self.In }
func (self *EnInst) Head() string      { return fmt.Sprintf("!%d", self.Seq) }

// EnResult projects one definition out of a multi-definition class.
type EnResult struct {
    Of    egraph.Id
    Index int
}

func (self *EnResult) Args() []egraph.Id { return []egraph.Id { self.Of } }
func (self *EnResult) Head() string      { return fmt.Sprintf("res.%d", self.Index) }
