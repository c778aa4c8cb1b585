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
    `sort`
    `strings`
    `unsafe`
)

type Reg uint64

const (
    _B_ptr  = 63
    _B_kind = 59
)

const (
    _M_ptr  = 1
    _M_kind = 0x0f
)

const (
    _R_ptr   = _M_ptr << _B_ptr
    _R_kind  = _M_kind << _B_kind
    _R_index = (1 << _B_kind) - 1
)

const (
    K_virt = 0
    K_norm = 1
    K_zero = 2
)

const (
    Rz Reg = (0 << _B_ptr) | (K_zero << _B_kind)
    Pn Reg = (1 << _B_ptr) | (K_zero << _B_kind)
)

func mkreg(ptr uint64, kind uint64, index int) Reg {
    return Reg(((ptr & _M_ptr) << _B_ptr) | ((kind & _M_kind) << _B_kind) | (uint64(index) & _R_index))
}

// Ri constructs the i-th virtual integer register.
func Ri(i int) Reg {
    return mkreg(0, K_virt, i)
}

// Rp constructs the i-th virtual pointer register.
func Rp(i int) Reg {
    return mkreg(1, K_virt, i)
}

func (self Reg) Ptr() bool {
    return self & _R_ptr != 0
}

func (self Reg) Kind() uint8 {
    return uint8((self & _R_kind) >> _B_kind)
}

func (self Reg) Index() int {
    return int(self & _R_index)
}

func (self Reg) Zero() Reg {
    if self.Ptr() {
        return Pn
    } else {
        return Rz
    }
}

func (self Reg) Normalize(i int) Reg {
    return (self & _R_ptr) | (K_norm << _B_kind) | Reg(i & _R_index)
}

func (self Reg) String() string {
    switch self.Kind() {
        default: {
            panic("invalid register kind")
        }

        /* zero registers */
        case K_zero: {
            if self.Ptr() {
                return "nil"
            } else {
                return "$0"
            }
        }

        /* virtual registers, as named by the frontend */
        case K_virt: {
            if self.Ptr() {
                return fmt.Sprintf("%%tp%d", self.Index())
            } else {
                return fmt.Sprintf("%%tr%d", self.Index())
            }
        }

        /* normalized registers, as renumbered by the optimizer */
        case K_norm: {
            if self.Ptr() {
                return fmt.Sprintf("%%p%d", self.Index())
            } else {
                return fmt.Sprintf("%%r%d", self.Index())
            }
        }
    }
}

type IrNode interface {
    fmt.Stringer
    irnode()
}

func (*IrLoad)       irnode() {}
func (*IrStore)      irnode() {}
func (*IrLoadArg)    irnode() {}
func (*IrConstInt)   irnode() {}
func (*IrConstPtr)   irnode() {}
func (*IrLEA)        irnode() {}
func (*IrUnaryExpr)  irnode() {}
func (*IrBinaryExpr) irnode() {}
func (*IrBitTestSet) irnode() {}
func (*IrCall)       irnode() {}
func (*IrBreakpoint) irnode() {}
func (*IrSwitch)     irnode() {}
func (*IrReturn)     irnode() {}

type IrUsages interface {
    IrNode
    Usages() []*Reg
}

type IrDefinitions interface {
    IrNode
    Definitions() []*Reg
}

// IrImpure marks instructions that carry a side effect beyond their results
// and therefore must be preserved and kept in their original relative order.
type IrImpure interface {
    IrNode
    irimpure()
}

func (*IrCall)       irimpure() {}
func (*IrBreakpoint) irimpure() {}

type IrSuccessors interface {
    Next() bool
    Block() *BasicBlock
    Value() (int64, bool)
}

type IrTerminator interface {
    IrNode
    Successors() IrSuccessors
    irterminator()
}

func (*IrSwitch) irterminator() {}
func (*IrReturn) irterminator() {}

type IrLoad struct {
    R    Reg
    Mem  Reg
    Size uint8
}

func (self *IrLoad) String() string {
    return fmt.Sprintf("%s = load.u%d %s", self.R, self.Size * 8, self.Mem)
}

func (self *IrLoad) Usages() []*Reg {
    return []*Reg { &self.Mem }
}

func (self *IrLoad) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrStore struct {
    R    Reg
    Mem  Reg
    Size uint8
}

func (self *IrStore) String() string {
    return fmt.Sprintf("store.u%d(%s -> *%s)", self.Size * 8, self.R, self.Mem)
}

func (self *IrStore) Usages() []*Reg {
    return []*Reg { &self.R, &self.Mem }
}

type IrLoadArg struct {
    R  Reg
    Id uint64
}

func (self *IrLoadArg) String() string {
    return fmt.Sprintf("%s = load.arg(#%d)", self.R, self.Id)
}

func (self *IrLoadArg) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrConstInt struct {
    R Reg
    V int64
}

func (self *IrConstInt) String() string {
    return fmt.Sprintf("%s = const.i64 %d", self.R, self.V)
}

func (self *IrConstInt) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrConstPtr struct {
    R Reg
    P unsafe.Pointer
}

func (self *IrConstPtr) String() string {
    return fmt.Sprintf("%s = const.ptr %p", self.R, self.P)
}

func (self *IrConstPtr) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrLEA struct {
    R   Reg
    Mem Reg
    Off Reg
}

func (self *IrLEA) String() string {
    return fmt.Sprintf("%s = &(%s)[%s]", self.R, self.Mem, self.Off)
}

func (self *IrLEA) Usages() []*Reg {
    return []*Reg { &self.Mem, &self.Off }
}

func (self *IrLEA) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type (
    IrUnaryOp  uint8
    IrBinaryOp uint8
)

const (
    IrOpNegate IrUnaryOp = iota
    IrOpSwap16
    IrOpSwap32
    IrOpSwap64
    IrOpSx32to64
)

const (
    IrOpAdd IrBinaryOp = iota
    IrOpSub
    IrOpMul
    IrOpAnd
    IrOpOr
    IrOpXor
    IrOpShr
    IrOpBitSet
    IrCmpEq
    IrCmpNe
    IrCmpLt
    IrCmpLtu
    IrCmpGeu
)

func (self IrUnaryOp) String() string {
    switch self {
        case IrOpNegate   : return "negate"
        case IrOpSwap16   : return "bswap16"
        case IrOpSwap32   : return "bswap32"
        case IrOpSwap64   : return "bswap64"
        case IrOpSx32to64 : return "sign_extend_32_to_64"
        default           : panic("unreachable")
    }
}

func (self IrBinaryOp) String() string {
    switch self {
        case IrOpAdd    : return "+"
        case IrOpSub    : return "-"
        case IrOpMul    : return "*"
        case IrOpAnd    : return "&"
        case IrOpOr     : return "|"
        case IrOpXor    : return "^"
        case IrOpShr    : return ">>"
        case IrOpBitSet : return "bitset"
        case IrCmpEq    : return "=="
        case IrCmpNe    : return "!="
        case IrCmpLt    : return "<"
        case IrCmpLtu   : return "<#"
        case IrCmpGeu   : return ">=#"
        default         : panic("unreachable")
    }
}

// IsCommutative checks whether the operands of the operation may be swapped
// without changing the result.
func (self IrBinaryOp) IsCommutative() bool {
    switch self {
        case IrOpAdd : fallthrough
        case IrOpMul : fallthrough
        case IrOpAnd : fallthrough
        case IrOpOr  : fallthrough
        case IrOpXor : fallthrough
        case IrCmpEq : fallthrough
        case IrCmpNe : return true
        default      : return false
    }
}

type IrUnaryExpr struct {
    R  Reg
    V  Reg
    Op IrUnaryOp
}

func (self *IrUnaryExpr) String() string {
    return fmt.Sprintf("%s = %s %s", self.R, self.Op, self.V)
}

func (self *IrUnaryExpr) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrUnaryExpr) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrBinaryExpr struct {
    R  Reg
    X  Reg
    Y  Reg
    Op IrBinaryOp
}

func (self *IrBinaryExpr) String() string {
    return fmt.Sprintf("%s = %s %s %s", self.R, self.X, self.Op, self.Y)
}

func (self *IrBinaryExpr) Usages() []*Reg {
    return []*Reg { &self.X, &self.Y }
}

func (self *IrBinaryExpr) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrBitTestSet struct {
    T Reg
    S Reg
    X Reg
    Y Reg
}

func (self *IrBitTestSet) String() string {
    return fmt.Sprintf("t.%s, s.%s = bts %s, %s", self.T, self.S, self.X, self.Y)
}

func (self *IrBitTestSet) Usages() []*Reg {
    return []*Reg { &self.X, &self.Y }
}

func (self *IrBitTestSet) Definitions() []*Reg {
    return []*Reg { &self.T, &self.S }
}

type IrCall struct {
    Fn  string
    In  []Reg
    Out []Reg
}

func (self *IrCall) String() string {
    in := make([]string, 0, len(self.In))
    out := make([]string, 0, len(self.Out))

    /* dump args and rets */
    for _, r := range self.In  { in = append(in, r.String()) }
    for _, r := range self.Out { out = append(out, r.String()) }

    /* join them together */
    return fmt.Sprintf(
        "%s = call %s, {%s}",
        strings.Join(out, ", "),
        self.Fn,
        strings.Join(in, ", "),
    )
}

func (self *IrCall) Usages() []*Reg {
    return regsliceref(self.In)
}

func (self *IrCall) Definitions() []*Reg {
    return regsliceref(self.Out)
}

type (
    IrBreakpoint struct{}
)

func (IrBreakpoint) String() string {
    return "breakpoint"
}

// IrBranch is one outgoing edge of a terminator, together with the values
// passed to the parameters of the target block.
type IrBranch struct {
    To *BasicBlock
    In []Reg
}

func (self *IrBranch) String() string {
    if len(self.In) == 0 {
        return fmt.Sprintf("bb_%d", self.To.Id)
    }

    /* dump the edge arguments */
    in := make([]string, 0, len(self.In))
    for _, r := range self.In {
        in = append(in, r.String())
    }

    /* join them together */
    return fmt.Sprintf(
        "bb_%d(%s)",
        self.To.Id,
        strings.Join(in, ", "),
    )
}

type IrSwitch struct {
    V  Reg
    Ln *IrBranch
    Br map[int64]*IrBranch
}

func (self *IrSwitch) sortedcases() []int64 {
    ks := make([]int64, 0, len(self.Br))
    for v := range self.Br {
        ks = append(ks, v)
    }
    sort.Slice(ks, func(i int, j int) bool {
        return ks[i] < ks[j]
    })
    return ks
}

func (self *IrSwitch) String() string {
    nb := len(self.Br)

    /* no branches */
    if nb == 0 {
        return "goto " + self.Ln.String()
    }

    /* add each case */
    ret := make([]string, 0, nb + 1)
    for _, v := range self.sortedcases() {
        ret = append(ret, fmt.Sprintf("  %d => %s,", v, self.Br[v]))
    }

    /* default branch */
    ret = append(ret, fmt.Sprintf(
        "  _ => %s,",
        self.Ln,
    ))

    /* join them together */
    return fmt.Sprintf(
        "switch %s {\n%s\n}",
        self.V,
        strings.Join(ret, "\n"),
    )
}

/* the traversal order must be deterministic, values collected here are
 * rebound positionally later */
func (self *IrSwitch) Usages() []*Reg {
    var buf []*Reg

    /* unconditional jumps do not use the selector */
    if len(self.Br) != 0 {
        buf = append(buf, &self.V)
    }

    /* edge arguments in deterministic order */
    for _, v := range self.sortedcases() {
        buf = append(buf, regsliceref(self.Br[v].In)...)
    }
    return append(buf, regsliceref(self.Ln.In)...)
}

type _SwitchSuccessors struct {
    i int
    k []int64
    s *IrSwitch
}

func (self *_SwitchSuccessors) Next() bool {
    self.i++
    return self.i <= len(self.k)
}

func (self *_SwitchSuccessors) Block() *BasicBlock {
    if self.i < len(self.k) {
        return self.s.Br[self.k[self.i]].To
    } else {
        return self.s.Ln.To
    }
}

func (self *_SwitchSuccessors) Value() (int64, bool) {
    if self.i < len(self.k) {
        return self.k[self.i], true
    } else {
        return 0, false
    }
}

func (self *IrSwitch) Successors() IrSuccessors {
    return &_SwitchSuccessors {
        i: -1,
        k: self.sortedcases(),
        s: self,
    }
}

type _EmptySuccessor struct{}
func (_EmptySuccessor) Next()  bool          { return false }
func (_EmptySuccessor) Block() *BasicBlock   { return nil }
func (_EmptySuccessor) Value() (int64, bool) { return 0, false }

type IrReturn struct {
    R []Reg
}

func (self *IrReturn) String() string {
    nb := len(self.R)
    ret := make([]string, 0, nb)

    /* dump registers */
    for _, r := range self.R {
        ret = append(ret, r.String())
    }

    /* join them together */
    return fmt.Sprintf(
        "ret {%s}",
        strings.Join(ret, ", "),
    )
}

func (self *IrReturn) Usages() []*Reg {
    return regsliceref(self.R)
}

func (self *IrReturn) Successors() IrSuccessors {
    return _EmptySuccessor{}
}
