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
    `github.com/oleiade/lane`
)

// DCE removes definitions without a live effect. Terminators, stores and
// calls are the roots; everything their operands transitively reach
// through use-def edges stays, the rest is deleted. SSA guarantees no
// surviving instruction references a removed definition.
type DCE struct{}

func (DCE) Apply(cfg *CFG) {
    q := lane.NewQueue()
    defs := make(map[Reg]IrNode)
    live := make(map[IrNode]bool)

    /* index the definitions */
    cfg.PostOrder().ForEach(func(bb *BasicBlock) {
        forEachNode(bb, func(v IrNode) {
            for _, d := range definitions(v) {
                defs[*d] = v
            }
        })
    })

    /* seed the roots: control flow and side effects are always live */
    cfg.PostOrder().ForEach(func(bb *BasicBlock) {
        forEachNode(bb, func(v IrNode) {
            _, impure := v.(IrImpure)
            _, term := v.(IrTerminator)
            if impure || term {
                live[v] = true
                for _, u := range usages(v) {
                    q.Enqueue(*u)
                }
            }
        })
    })

    /* backward mark through use-def edges */
    for !q.Empty() {
        r := q.Dequeue().(Reg)
        if r.Kind() == _K_zero {
            continue
        }
        v := defs[r]
        if v == nil || live[v] {
            continue
        }
        live[v] = true
        for _, u := range usages(v) {
            q.Enqueue(*u)
        }
    }

    /* sweep: unmarked phi nodes and instructions vanish */
    cfg.PostOrder().ForEach(func(bb *BasicBlock) {
        phi := bb.Phi[:0]
        for _, p := range bb.Phi {
            if live[p] {
                phi = append(phi, p)
            }
        }
        bb.Phi = phi

        ins := bb.Ins[:0]
        for _, v := range bb.Ins {
            if live[v] {
                ins = append(ins, v)
            }
        }
        bb.Ins = ins
    })
}
