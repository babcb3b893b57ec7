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
)

// LICM hoists loop-invariant pure computations into the loop preheader.
// Loops are recognized from back-edges (a successor that dominates the
// block); every loop gets a dedicated preheader if its header does not
// already have one. Hoisting runs innermost loops first and iterates
// until nothing moves.
type LICM struct{}

type _LoopInfo struct {
    header *BasicBlock
    blocks map[int]*BasicBlock
}

func (self *_LoopInfo) contains(bb *BasicBlock) bool {
    _, ok := self.blocks[bb.Id]
    return ok
}

// exiting lists the in-loop blocks with an edge out of the loop.
func (self *_LoopInfo) exiting() []*BasicBlock {
    var ret []*BasicBlock
    for _, bb := range self.blocks {
        it := bb.Term.Successors()
        for it.Next() {
            if !self.contains(it.Block()) {
                ret = append(ret, bb)
                break
            }
        }
    }
    sort.Slice(ret, func(i int, j int) bool {
        return ret[i].Id < ret[j].Id
    })
    return ret
}

func findLoops(cfg *CFG) []*_LoopInfo {
    byhdr := make(map[int]*_LoopInfo)

    /* a back-edge is an edge to a dominating block; the loop body is
     * everything that reaches the back-edge source without leaving the
     * header behind */
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        it := bb.Term.Successors()
        for it.Next() {
            hdr := it.Block()
            if !cfg.Dominates(hdr, bb) {
                continue
            }
            loop := byhdr[hdr.Id]
            if loop == nil {
                loop = &_LoopInfo { header: hdr, blocks: make(map[int]*BasicBlock) }
                byhdr[hdr.Id] = loop
            }
            loop.blocks[hdr.Id] = hdr

            /* walk predecessors back from the tail */
            stack := []*BasicBlock { bb }
            for len(stack) != 0 {
                n := stack[len(stack)-1]
                stack = stack[:len(stack)-1]
                if _, ok := loop.blocks[n.Id]; ok {
                    continue
                }
                loop.blocks[n.Id] = n
                stack = append(stack, n.Pred...)
            }
        }
    })

    /* inner loops have fewer blocks, hoist them first */
    ret := make([]*_LoopInfo, 0, len(byhdr))
    for _, loop := range byhdr {
        ret = append(ret, loop)
    }
    sort.Slice(ret, func(i int, j int) bool {
        if len(ret[i].blocks) != len(ret[j].blocks) {
            return len(ret[i].blocks) < len(ret[j].blocks)
        }
        return ret[i].header.Id < ret[j].header.Id
    })
    return ret
}

// outsidePreds lists the header predecessors that are not loop blocks.
func (self *_LoopInfo) outsidePreds() []*BasicBlock {
    var ret []*BasicBlock
    for _, p := range self.header.Pred {
        if !self.contains(p) {
            ret = append(ret, p)
        }
    }
    return ret
}

// preheader returns the existing preheader, or nil if one must be made:
// the unique out-of-loop predecessor that flows into the header only.
func (self *_LoopInfo) preheader() *BasicBlock {
    pp := self.outsidePreds()
    if len(pp) != 1 {
        return nil
    }
    if t, ok := pp[0].Term.(*IrJump); ok && t.To == self.header {
        return pp[0]
    }
    return nil
}

// makePreheader inserts a preheader block on the incoming edges of the
// header that come from outside the loop, rerouting header phis so the
// outside values flow through the new block.
func makePreheader(cfg *CFG, loop *_LoopInfo) {
    hdr := loop.header
    out := loop.outsidePreds()
    ph := cfg.newBlock()
    ph.termJump(hdr)

    /* retarget the outside edges */
    for _, p := range out {
        retarget(p.Term, hdr, ph)
    }

    /* reroute the phi operands coming from outside */
    for _, phi := range hdr.Phi {
        if len(out) == 1 {
            if a := phi.V[out[0]]; a != nil {
                delete(phi.V, out[0])
                phi.V[ph] = a
            }
            continue
        }

        /* several outside predecessors: merge them in the preheader
         * with a phi of their own */
        r := cfg.newReg()
        src := make(map[*BasicBlock]*Reg)
        for _, p := range out {
            if a := phi.V[p]; a != nil {
                delete(phi.V, p)
                src[p] = a
            }
        }
        ph.Phi = append(ph.Phi, &IrPhi { R: r, V: src })
        phi.V[ph] = regnewref(r)
    }
}

func (LICM) Apply(cfg *CFG) {
    /* give every loop a preheader; creating one changes the graph shape,
     * so re-run the analysis until the shape settles */
    for {
        cfg.Rebuild()
        made := false
        for _, loop := range findLoops(cfg) {
            if loop.preheader() == nil {
                makePreheader(cfg, loop)
                made = true
            }
        }
        if !made {
            break
        }
    }

    /* index the defining block of every register */
    defs := make(map[Reg]*BasicBlock)
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        forEachNode(bb, func(v IrNode) {
            for _, d := range definitions(v) {
                defs[*d] = bb
            }
        })
    })

    /* hoisting moves instructions but never edges: the dominator tree
     * stays valid throughout */
    loops := findLoops(cfg)
    for moved := true; moved; {
        moved = false
        for _, loop := range loops {
            if hoistLoop(cfg, loop, defs) {
                moved = true
            }
        }
    }
}

func hoistLoop(cfg *CFG, loop *_LoopInfo, defs map[Reg]*BasicBlock) bool {
    ph := loop.preheader()
    if ph == nil {
        panic(&IRError { Block: loop.header.Id, Reason: "licm: loop header without a preheader" })
    }

    /* an instruction is invariant when all its operands are defined
     * outside the loop (or already hoisted) */
    invariant := func(v IrNode) bool {
        for _, u := range usages(v) {
            if u.Kind() == _K_zero {
                continue
            }
            if d := defs[*u]; d == nil || loop.contains(d) {
                return false
            }
        }
        return true
    }

    exits := loop.exiting()
    hoisted := false

    /* scan in reverse post-order so dependent candidates are seen after
     * the definitions they consume */
    for moved := true; moved; {
        moved = false
        cfg.ReversePostOrder(func(bb *BasicBlock) {
            if !loop.contains(bb) {
                return
            }

            /* a candidate that does not run on every iteration may only
             * move if executing it early cannot trap: division and
             * modulus stay put unless their block dominates every exit */
            domAll := true
            for _, e := range exits {
                if !cfg.Dominates(bb, e) {
                    domAll = false
                    break
                }
            }

            ins := bb.Ins[:0]
            for _, v := range bb.Ins {
                if IsPure(v) && invariant(v) && (domAll || trapFree(v)) {
                    ph.Ins = append(ph.Ins, v)
                    for _, d := range definitions(v) {
                        defs[*d] = ph
                    }
                    moved, hoisted = true, true
                } else {
                    ins = append(ins, v)
                }
            }
            bb.Ins = ins
        })
    }
    return hoisted
}

// trapFree reports whether evaluating the node can never fault, making
// it safe to execute speculatively.
func trapFree(v IrNode) bool {
    if p, ok := v.(*IrBinaryExpr); ok {
        return p.Op != IrOpDiv && p.Op != IrOpMod
    }
    return true
}
