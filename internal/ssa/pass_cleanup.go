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

// BlockCleanup simplifies the graph shape without changing semantics:
// straight-line block pairs merge, unreachable blocks disappear, and phi
// nodes with a single distinct incoming value collapse into that value.
// The three rewrites reinforce each other, so they iterate to fixpoint.
type BlockCleanup struct{}

func (BlockCleanup) Apply(cfg *CFG) {
    for {
        merged := mergeBlocks(cfg)
        cfg.Rebuild()
        folded := collapseTrivialPhis(cfg)
        if folded {
            cfg.Rebuild()
        }
        if !merged && !folded {
            break
        }
    }
}

// mergeBlocks folds S into B wherever B jumps to S, S has no other
// predecessor, and S starts with no phi nodes.
func mergeBlocks(cfg *CFG) bool {
    ret := false
    dead := make(map[int]bool)
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        for !dead[bb.Id] {
            t, ok := bb.Term.(*IrJump)
            if !ok || t.To == bb || dead[t.To.Id] || len(t.To.Pred) != 1 || len(t.To.Phi) != 0 {
                return
            }

            /* absorb the successor */
            next := t.To
            bb.Ins = append(bb.Ins, next.Ins...)
            bb.Term = next.Term
            next.Ins = nil
            dead[next.Id] = true
            ret = true

            /* successor phi operands are keyed by block: re-key them */
            it := bb.Term.Successors()
            for it.Next() {
                for _, phi := range it.Block().Phi {
                    if a, ok := phi.V[next]; ok {
                        delete(phi.V, next)
                        phi.V[bb] = a
                    }
                }
            }
        }
    })
    return ret
}

// collapseTrivialPhis replaces every phi with a single distinct incoming
// value (ignoring self-references) by that value. Collapsing one phi can
// trivialize another, so this loops internally. Callers rebuild the
// dominator tree first, which the post-order iterator walks.
func collapseTrivialPhis(cfg *CFG) bool {
    ret := false
    for {
        done := true
        cfg.PostOrder().ForEach(func(bb *BasicBlock) {
            phi := bb.Phi[:0]
            for _, p := range bb.Phi {
                if v, trivial := trivialPhi(p); trivial {
                    replaceAllUses(cfg, p.R, v)
                    ret, done = true, false
                } else {
                    phi = append(phi, p)
                }
            }
            bb.Phi = phi
        })
        if done {
            return ret
        }
    }
}

func trivialPhi(p *IrPhi) (Reg, bool) {
    v, ok := Rz, false
    for _, a := range p.V {
        if *a == p.R {
            continue
        }
        if ok && v != *a {
            return Rz, false
        }
        v, ok = *a, true
    }
    return v, ok
}
