/*
 * Copyright 2024 Sable Authors
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

func (self *FuncInfo) Signature() string {
    args := make([]string, 0, len(self.Args))
    for _, a := range self.Args {
        d := make([]string, 0, len(a.Dims))
        for _, v := range a.Dims {
            d = append(d, fmt.Sprintf("[%d]", v))
        }
        args = append(args, fmt.Sprintf("%s %sint", a.Name, strings.Join(d, "")))
    }
    ret := "int"
    if self.RetVoid {
        ret = "void"
    }
    return fmt.Sprintf("func %s(%s) -> %s", self.Name, strings.Join(args, ", "), ret)
}

// blockLines renders one block: phi nodes first, then instructions, then
// the terminator.
func blockLines(bb *BasicBlock) []string {
    ret := make([]string, 0, len(bb.Phi)+len(bb.Ins)+1)
    for _, p := range bb.Phi {
        ret = append(ret, p.String())
    }
    for _, p := range bb.Ins {
        ret = append(ret, p.String())
    }
    ret = append(ret, bb.Term.String())
    return ret
}

// FormatIR renders the function as textual IR, blocks in reverse
// post-order.
func (self *CFG) FormatIR() string {
    var sb strings.Builder
    sb.WriteString(self.Func.Signature())
    sb.WriteByte('\n')
    self.ReversePostOrder(func(bb *BasicBlock) {
        fmt.Fprintf(&sb, "b%d:\n", bb.Id)
        for _, ln := range blockLines(bb) {
            sb.WriteString("    ")
            sb.WriteString(strings.ReplaceAll(ln, "\n", "\n    "))
            sb.WriteByte('\n')
        }
    })
    return sb.String()
}

func (self *CFG) String() string {
    return self.FormatIR()
}
