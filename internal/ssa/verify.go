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
)

// Verify checks the structural SSA invariants of the graph: every
// register has exactly one definition, every use is dominated by its
// definition, phi arity matches the predecessor set, terminators appear
// only as terminators, and the entry block has no immediate dominator.
// It returns the first violation found, or nil.
func (self *CFG) Verify() error {
    defblk := make(map[Reg]*BasicBlock)
    defidx := make(map[Reg]int)

    errf := func(bb *BasicBlock, ins string, format string, args ...interface{}) *IRError {
        return &IRError {
            Block  : bb.Id,
            Ins    : ins,
            Reason : fmt.Sprintf(format, args...),
        }
    }

    if self.DominatedBy[self.Root.Id] != nil {
        return errf(self.Root, "", "entry block has an immediate dominator")
    }

    /* single-definition check, and definition positions */
    var fail error
    self.ReversePostOrder(func(bb *BasicBlock) {
        record := func(v IrNode, i int) {
            for _, d := range definitions(v) {
                if d.Kind() == _K_zero {
                    continue
                }
                if p, ok := defblk[*d]; ok && fail == nil {
                    fail = errf(bb, v.String(), "register %s redefined (first in b%d)", *d, p.Id)
                }
                defblk[*d] = bb
                defidx[*d] = i
            }
        }
        for _, p := range bb.Phi {
            record(p, -1)
        }
        for i, v := range bb.Ins {
            if _, ok := v.(IrTerminator); ok && fail == nil {
                fail = errf(bb, v.String(), "terminator in instruction position")
            }
            record(v, i)
        }
        if bb.Term == nil && fail == nil {
            fail = errf(bb, "", "block without a terminator")
        }
    })
    if fail != nil {
        return fail
    }

    /* dominance of uses, and phi arity */
    self.ReversePostOrder(func(bb *BasicBlock) {
        checkUse := func(v IrNode, i int) {
            for _, u := range usages(v) {
                if u.Kind() == _K_zero {
                    continue
                }
                d, ok := defblk[*u]
                if !ok {
                    if fail == nil {
                        fail = errf(bb, v.String(), "use of undefined register %s", *u)
                    }
                    continue
                }
                if d == bb {
                    if defidx[*u] >= i && fail == nil {
                        fail = errf(bb, v.String(), "register %s used before its definition", *u)
                    }
                } else if !self.Dominates(d, bb) && fail == nil {
                    fail = errf(bb, v.String(), "use of %s not dominated by its definition in b%d", *u, d.Id)
                }
            }
        }

        for _, p := range bb.Phi {
            if len(p.V) != len(bb.Pred) && fail == nil {
                fail = errf(bb, p.String(), "phi arity %d does not match %d predecessors", len(p.V), len(bb.Pred))
            }
            for src, a := range p.V {
                if !blockin(bb.Pred, src) {
                    if fail == nil {
                        fail = errf(bb, p.String(), "phi operand from non-predecessor b%d", src.Id)
                    }
                    continue
                }
                if a.Kind() == _K_zero {
                    continue
                }
                if d, ok := defblk[*a]; !ok {
                    if fail == nil {
                        fail = errf(bb, p.String(), "use of undefined register %s", *a)
                    }
                } else if !self.Dominates(d, src) && fail == nil {
                    fail = errf(bb, p.String(), "phi operand %s not available at the end of b%d", *a, src.Id)
                }
            }
        }
        for i, v := range bb.Ins {
            checkUse(v, i)
        }
        checkUse(bb.Term, len(bb.Ins))
    })
    return fail
}
