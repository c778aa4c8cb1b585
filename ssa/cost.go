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

// CostModel assigns a non-negative intrinsic cost to every instruction. The
// cost of a term is the cost of its root plus the cost of its operands, so
// any model yields a monotonic total cost.
type CostModel interface {
    OpCost(v IrNode) int
}

// DefaultCost is a rough latency model with no target-specific knowledge.
type DefaultCost struct{}

func (DefaultCost) OpCost(v IrNode) int {
    switch p := v.(type) {
        case *IrConstInt   : return 0
        case *IrConstPtr   : return 0
        case *IrLoadArg    : return 1
        case *IrLEA        : return 1
        case *IrUnaryExpr  : return 1
        case *IrBinaryExpr : if p.Op == IrOpMul { return 3 } else { return 1 }
        case *IrBitTestSet : return 2
        case *IrLoad       : return 4
        case *IrStore      : return 4
        case *IrCall       : return 16
        default            : return 1
    }
}
