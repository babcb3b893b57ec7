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

    `github.com/oleiade/lane`
)

// _Renamer walks the dominator tree in pre-order, maintaining one explicit
// version stack per register: definitions push a fresh version, uses read
// the top of the stack, and leaving a block pops what it pushed.
type _Renamer struct {
    count map[Reg]int
    stack map[Reg][]int
}

func newRenamer() _Renamer {
    return _Renamer {
        count: make(map[Reg]int),
        stack: make(map[Reg][]int),
    }
}

func (self _Renamer) popr(r Reg) {
    if n := len(self.stack[r]); n != 0 {
        self.stack[r] = self.stack[r][:n-1]
    }
}

func (self _Renamer) topr(bb *BasicBlock, r Reg) int {
    if n := len(self.stack[r]); n == 0 {
        panic(&IRError {
            Block  : bb.Id,
            Reason : fmt.Sprintf("read of undefined register %s", r),
        })
    } else {
        return self.stack[r][n-1]
    }
}

func (self _Renamer) pushr(r Reg) (i int) {
    i = self.count[r] + 1
    self.count[r] = i
    self.stack[r] = append(self.stack[r], i)
    return
}

func (self _Renamer) renameuses(bb *BasicBlock, ins IrNode) {
    for _, a := range usages(ins) {
        if a.Kind() != _K_zero {
            *a = a.Derive(self.topr(bb, *a))
        }
    }
}

func (self _Renamer) renamedefs(ins IrNode, buf *[]Reg) {
    for _, def := range definitions(ins) {
        if def.Kind() != _K_zero {
            *buf = append(*buf, *def)
            *def = def.Derive(self.pushr(*def))
        }
    }
}

func (self _Renamer) renameblock(cfg *CFG, bb *BasicBlock) {
    var d []Reg
    var n IrNode

    /* rename phi nodes: they only define here, their operands are filled
     * in from the predecessors */
    for _, p := range bb.Phi {
        self.renamedefs(p, &d)
    }

    /* rename the body */
    for _, n = range bb.Ins {
        self.renameuses(bb, n)
        self.renamedefs(n, &d)
    }

    /* rename the terminator */
    self.renameuses(bb, bb.Term)

    /* fill in the phi operands of the successors */
    it := bb.Term.Successors()
    for it.Next() {
        for _, phi := range it.Block().Phi {
            if a := phi.V[bb]; a != nil {
                base := a.Derive(0)
                *a = base.Derive(self.topr(bb, base))
            }
        }
    }

    /* rename all the dominated blocks */
    for _, p := range cfg.DominatorOf[bb.Id] {
        self.renameblock(cfg, p)
    }

    /* pop the definitions */
    for _, s := range d {
        self.popr(s)
    }
}

// renameRegisters rewrites the graph into SSA form: every register is
// defined exactly once afterwards, and the versioned registers are then
// compacted into dense normalized names.
func renameRegisters(cfg *CFG) {
    rr := newRenamer()
    rr.renameblock(cfg, cfg.Root)
    normalizeRegisters(cfg)
}

func assignRegisters(rr []*Reg, rm map[Reg]Reg) {
    for _, r := range rr {
        if r.Kind() != _K_zero {
            if _, ok := rm[*r]; ok {
                panic(&IRError { Reason: "register redefined: " + r.String() })
            } else {
                v := r.Normalize(len(rm))
                *r, rm[*r] = v, v
            }
        }
    }
}

func replaceRegisters(rr []*Reg, rm map[Reg]Reg) {
    for _, r := range rr {
        if r.Kind() != _K_zero && r.Kind() != _K_norm {
            if v, ok := rm[*r]; ok {
                *r = v
            } else {
                panic(&IRError { Reason: "use of undefined register: " + r.String() })
            }
        }
    }
}

func normalizeRegisters(cfg *CFG) {
    q := lane.NewQueue()
    rm := make(map[Reg]Reg)

    /* assign dense names to all the register definitions */
    for q.Enqueue(cfg.Root); !q.Empty(); {
        p := q.Dequeue().(*BasicBlock)
        for _, d := range cfg.DominatorOf[p.Id] {
            q.Enqueue(d)
        }

        /* assign phi nodes, then instructions */
        for _, n := range p.Phi {
            assignRegisters(n.Definitions(), rm)
        }
        for _, n := range p.Ins {
            assignRegisters(definitions(n), rm)
        }
    }

    /* replace every use with its normalized name */
    for q.Enqueue(cfg.Root); !q.Empty(); {
        p := q.Dequeue().(*BasicBlock)
        for _, d := range cfg.DominatorOf[p.Id] {
            q.Enqueue(d)
        }

        /* phi nodes, instructions, then the terminator */
        for _, n := range p.Phi {
            replaceRegisters(n.Usages(), rm)
        }
        for _, n := range p.Ins {
            replaceRegisters(usages(n), rm)
        }
        replaceRegisters(usages(p.Term), rm)
    }

    /* remember how many registers were assigned, so fresh ones can be
     * minted by later passes */
    cfg.Func.nreg = len(rm)
}
