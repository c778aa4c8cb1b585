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
    `strings`

    `github.com/davecgh/go-spew/spew`
)

var _DumpConfig = spew.ConfigState {
    Indent                  : "    ",
    SortKeys                : true,
    DisableMethods          : true,
    DisableCapacities       : true,
    DisablePointerAddresses : true,
}

// Dump renders the entire function in reverse post-order, for debugging.
func (self *CFG) Dump() string {
    var buf []string
    for _, bb := range self.PostOrder().Reversed() {
        buf = append(buf, bb.String())
    }
    return strings.Join(buf, "\n\n")
}
