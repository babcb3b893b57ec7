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
    `sort`

    `github.com/oleiade/lane`
)

type _PhiDesc struct {
    r Reg
    b []*BasicBlock
}

// _Liveness is the per-block live-in sets of the pre-SSA registers,
// computed by the usual backwards iteration. Phi insertion prunes on it:
// a register that is dead at a join point needs no phi there, which also
// keeps out-of-scope variables from leaking past their block.
type _Liveness struct {
    in  map[int]map[Reg]bool
    out map[int]map[Reg]bool
}

func computeLiveness(cfg *CFG) *_Liveness {
    lv := &_Liveness {
        in  : make(map[int]map[Reg]bool),
        out : make(map[int]map[Reg]bool),
    }

    /* per-block uses (upward-exposed) and defs */
    use := make(map[int]map[Reg]bool)
    def := make(map[int]map[Reg]bool)
    blocks := cfg.Blocks()
    for _, bb := range blocks {
        u := make(map[Reg]bool)
        d := make(map[Reg]bool)
        forEachNode(bb, func(v IrNode) {
            for _, r := range usages(v) {
                if r.Kind() != _K_zero && !d[*r] {
                    u[*r] = true
                }
            }
            for _, r := range definitions(v) {
                if r.Kind() != _K_zero {
                    d[*r] = true
                }
            }
        })
        use[bb.Id] = u
        def[bb.Id] = d
        lv.in[bb.Id] = make(map[Reg]bool)
        lv.out[bb.Id] = make(map[Reg]bool)
    }

    /* iterate to fixpoint */
    for changed := true; changed; {
        changed = false
        for i := len(blocks) - 1; i >= 0; i-- {
            bb := blocks[i]
            out := make(map[Reg]bool)
            it := bb.Term.Successors()
            for it.Next() {
                for r := range lv.in[it.Block().Id] {
                    out[r] = true
                }
            }
            in := make(map[Reg]bool, len(use[bb.Id]))
            for r := range use[bb.Id] {
                in[r] = true
            }
            for r := range out {
                if !def[bb.Id][r] {
                    in[r] = true
                }
            }
            if len(in) != len(lv.in[bb.Id]) || len(out) != len(lv.out[bb.Id]) {
                lv.in[bb.Id], lv.out[bb.Id] = in, out
                changed = true
            }
        }
    }
    return lv
}

// insertPhiNodes places phi nodes on the iterated dominance frontier of
// every register's definition sites, pruned by liveness. Array handles
// are single definitions and never reach a frontier with a second one,
// so they keep their single-definition discipline.
func insertPhiNodes(cfg *CFG) {
    q := lane.NewQueue()
    phi := make(map[Reg]map[int]bool)
    orig := make(map[int]map[Reg]bool)
    defs := make(map[Reg]map[int]*BasicBlock)
    live := computeLiveness(cfg)

    /* find out all the register definition sites */
    for q.Enqueue(cfg.Root); !q.Empty(); {
        p := q.Dequeue().(*BasicBlock)
        for _, d := range cfg.DominatorOf[p.Id] {
            q.Enqueue(d)
        }

        /* mark all the definition sites */
        forEachNode(p, func(v IrNode) {
            for _, d := range definitions(v) {
                if d.Kind() != _K_zero {
                    if orig[p.Id] == nil {
                        orig[p.Id] = make(map[Reg]bool)
                    }
                    orig[p.Id][*d] = true
                    if defs[*d] == nil {
                        defs[*d] = make(map[int]*BasicBlock)
                    }
                    defs[*d][p.Id] = p
                }
            }
        })
    }

    /* dump the descriptors, sorted by register, blocks sorted by ID */
    pd := make([]_PhiDesc, 0, len(defs))
    for r, v := range defs {
        b := make([]*BasicBlock, 0, len(v))
        for _, p := range v {
            b = append(b, p)
        }
        sort.Slice(b, func(i int, j int) bool {
            return b[i].Id < b[j].Id
        })
        pd = append(pd, _PhiDesc { r: r, b: b })
    }
    sort.Slice(pd, func(i int, j int) bool {
        return pd[i].r < pd[j].r
    })

    /* insert phi nodes for every register */
    for _, p := range pd {
        for len(p.b) != 0 {
            n := p.b[0]
            p.b = p.b[1:]

            /* scan the dominance frontier of the defining block */
            for _, y := range cfg.DominanceFrontier[n.Id] {
                if rem := phi[p.r]; !rem[y.Id] {
                    /* dead at the join point, no phi needed */
                    if !live.in[y.Id][p.r] {
                        continue
                    }

                    /* mark as processed */
                    if rem != nil {
                        rem[y.Id] = true
                    } else {
                        phi[p.r] = map[int]bool { y.Id: true }
                    }

                    /* build the phi node args */
                    src := make(map[*BasicBlock]*Reg)
                    for _, pred := range y.Pred {
                        src[pred] = regnewref(p.r)
                    }

                    /* insert the new phi node */
                    y.Phi = append(y.Phi, &IrPhi { R: p.r, V: src })

                    /* a block may contain both an ordinary definition and
                     * a phi node for the same register */
                    if !orig[y.Id][p.r] {
                        p.b = append(p.b, y)
                    }
                }
            }
        }
    }
}
