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

func regnewref(v Reg) (r *Reg) {
    r = new(Reg)
    *r = v
    return
}

func regsliceref(v []Reg) (r []*Reg) {
    r = make([]*Reg, len(v))
    for i := range v {
        r[i] = &v[i]
    }
    return
}

func blockreverse(s []*BasicBlock) {
    for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
        s[i], s[j] = s[j], s[i]
    }
}

func blockin(s []*BasicBlock, bb *BasicBlock) bool {
    for _, p := range s {
        if p == bb {
            return true
        }
    }
    return false
}

func setclone(s map[int]bool) map[int]bool {
    r := make(map[int]bool, len(s))
    for k := range s {
        r[k] = true
    }
    return r
}

func setintersect(s map[int]bool, t map[int]bool) {
    for k := range s {
        if !t[k] {
            delete(s, k)
        }
    }
}

func seteq(s map[int]bool, t map[int]bool) bool {
    if len(s) != len(t) {
        return false
    }
    for k := range s {
        if !t[k] {
            return false
        }
    }
    return true
}

// usages returns the operand refs of any node, or nil.
func usages(v IrNode) []*Reg {
    if u, ok := v.(IrUsages); ok {
        return u.Usages()
    }
    return nil
}

// definitions returns the defined-register refs of any node, or nil.
func definitions(v IrNode) []*Reg {
    if d, ok := v.(IrDefinitions); ok {
        return d.Definitions()
    }
    return nil
}

// forEachNode visits every phi, instruction and terminator of a block.
func forEachNode(bb *BasicBlock, action func(v IrNode)) {
    for _, p := range bb.Phi {
        action(p)
    }
    for _, p := range bb.Ins {
        action(p)
    }
    action(bb.Term)
}

// replaceAllUses rewrites every use of register r in the whole graph with
// register v. Definitions are left untouched.
func replaceAllUses(cfg *CFG, r Reg, v Reg) {
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        forEachNode(bb, func(n IrNode) {
            for _, u := range usages(n) {
                if *u == r {
                    *u = v
                }
            }
        })
    })
}

// retarget replaces the successor edge from → to of a terminator.
func retarget(t IrTerminator, from *BasicBlock, to *BasicBlock) {
    switch p := t.(type) {
        case *IrJump: {
            if p.To == from {
                p.To = to
            }
        }
        case *IrBranch: {
            if p.Then == from {
                p.Then = to
            }
            if p.Else == from {
                p.Else = to
            }
        }
        case *IrReturn: {
            /* no successors */
        }
        default: {
            panic("retarget: not a terminator")
        }
    }
}
