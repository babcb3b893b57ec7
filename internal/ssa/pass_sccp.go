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

type _LatticeTag uint8

const (
    _V_undef _LatticeTag = iota
    _V_const
    _V_nac
)

// _Lattice is one element of the SCCP value lattice: undefined (no
// evidence yet), a known constant, or not-a-constant.
type _Lattice struct {
    t _LatticeTag
    v int64
}

func latticeConst(v int64) _Lattice {
    return _Lattice { t: _V_const, v: v }
}

func latticeMeet(a _Lattice, b _Lattice) _Lattice {
    switch {
        case a.t == _V_undef : return b
        case b.t == _V_undef : return a
        case a.t == _V_nac   : return a
        case b.t == _V_nac   : return b
        case a.v == b.v      : return a
        default              : return _Lattice { t: _V_nac }
    }
}

// SCCP is sparse conditional constant propagation: it runs constant
// folding and edge reachability as one joint fixpoint, then folds the
// proven constants and deletes the blocks no reachable edge enters.
type SCCP struct{}

type _SCCPSolver struct {
    cfg   *CFG
    val   map[Reg]_Lattice
    feas  map[[2]int]bool
    exec  map[int]bool
    blkq  *lane.Queue
    varq  *lane.Queue
    defs  map[Reg]IrNode
    uses  map[Reg][]IrNode
    owner map[IrNode]*BasicBlock
}

func newSCCPSolver(cfg *CFG) *_SCCPSolver {
    s := &_SCCPSolver {
        cfg   : cfg,
        val   : make(map[Reg]_Lattice),
        feas  : make(map[[2]int]bool),
        exec  : make(map[int]bool),
        blkq  : lane.NewQueue(),
        varq  : lane.NewQueue(),
        defs  : make(map[Reg]IrNode),
        uses  : make(map[Reg][]IrNode),
        owner : make(map[IrNode]*BasicBlock),
    }

    /* use-def metadata; use lists are rebuilt here, on demand */
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        forEachNode(bb, func(v IrNode) {
            s.owner[v] = bb
            for _, d := range definitions(v) {
                s.defs[*d] = v
            }
            for _, u := range usages(v) {
                s.uses[*u] = append(s.uses[*u], v)
            }
        })
    })
    return s
}

func (self *_SCCPSolver) get(r Reg) _Lattice {
    return self.val[r]
}

func (self *_SCCPSolver) set(r Reg, v _Lattice) {
    old := self.val[r]
    ret := latticeMeet(old, v)
    if ret != old {
        self.val[r] = ret
        self.varq.Enqueue(r)
    }
}

func (self *_SCCPSolver) markBlock(bb *BasicBlock) {
    if !self.exec[bb.Id] {
        self.exec[bb.Id] = true
        self.blkq.Enqueue(bb)
    }
}

func (self *_SCCPSolver) markEdge(from *BasicBlock, to *BasicBlock) {
    e := [2]int { from.Id, to.Id }
    if self.feas[e] {
        return
    }
    self.feas[e] = true

    /* the first feasible edge makes the target executable; later edges
     * only feed new phi operands in */
    if !self.exec[to.Id] {
        self.markBlock(to)
    } else {
        for _, phi := range to.Phi {
            self.evalPhi(phi)
        }
    }
}

func (self *_SCCPSolver) evalPhi(phi *IrPhi) {
    bb := self.owner[phi]
    ret := _Lattice{}
    for _, pred := range bb.Pred {
        if !self.feas[[2]int { pred.Id, bb.Id }] {
            continue
        }
        if a := phi.V[pred]; a != nil {
            ret = latticeMeet(ret, self.get(*a))
        }
    }
    self.set(phi.R, ret)
}

func (self *_SCCPSolver) evalNode(v IrNode) {
    switch p := v.(type) {
        case *IrConstInt: {
            self.set(p.R, latticeConst(p.V))
        }

        case *IrCopy: {
            self.set(p.R, self.get(p.V))
        }

        case *IrUnaryExpr: {
            self.set(p.R, self.unary(self.get(p.V), p.Op))
        }

        case *IrBinaryExpr: {
            self.set(p.R, self.binary(self.get(p.X), self.get(p.Y), p.Op))
        }

        /* memory, addresses and arguments are never constants */
        case *IrAlloca   : self.set(p.R, _Lattice { t: _V_nac })
        case *IrLEA      : self.set(p.R, _Lattice { t: _V_nac })
        case *IrLoad     : self.set(p.R, _Lattice { t: _V_nac })
        case *IrLoadArg  : self.set(p.R, _Lattice { t: _V_nac })

        case *IrCall: {
            if !p.Void {
                self.set(p.R, _Lattice { t: _V_nac })
            }
        }

        case *IrStore: {
            /* no value defined */
        }

        case *IrPhi: {
            self.evalPhi(p)
        }

        case *IrJump: {
            self.markEdge(self.owner[v], p.To)
        }

        case *IrBranch: {
            switch c := self.get(p.V); c.t {
                case _V_undef: /* no evidence either way yet */
                case _V_nac: {
                    self.markEdge(self.owner[v], p.Then)
                    self.markEdge(self.owner[v], p.Else)
                }
                default: {
                    if c.v != 0 {
                        self.markEdge(self.owner[v], p.Then)
                    } else {
                        self.markEdge(self.owner[v], p.Else)
                    }
                }
            }
        }

        case *IrReturn: {
            /* no successors */
        }

        default: {
            panic(&IRError { Reason: "sccp: unexpected node: " + v.String() })
        }
    }
}

func (self *_SCCPSolver) unary(v _Lattice, op IrUnaryOp) _Lattice {
    if v.t != _V_const {
        return v
    }
    switch op {
        case IrOpNegate : return latticeConst(-v.v)
        case IrOpNot    : if v.v == 0 { return latticeConst(1) } else { return latticeConst(0) }
        default         : panic("unreachable")
    }
}

func (self *_SCCPSolver) binary(x _Lattice, y _Lattice, op IrBinaryOp) _Lattice {
    if x.t == _V_nac || y.t == _V_nac {
        return _Lattice { t: _V_nac }
    }
    if x.t != _V_const || y.t != _V_const {
        return _Lattice { t: _V_undef }
    }

    /* division by a constant zero is a runtime error, not a constant:
     * the instruction must stay */
    if (op == IrOpDiv || op == IrOpMod) && y.v == 0 {
        return _Lattice { t: _V_nac }
    }

    /* 64-bit two's-complement wrapping arithmetic */
    b2i := func(b bool) _Lattice {
        if b {
            return latticeConst(1)
        }
        return latticeConst(0)
    }
    switch op {
        case IrOpAdd : return latticeConst(x.v + y.v)
        case IrOpSub : return latticeConst(x.v - y.v)
        case IrOpMul : return latticeConst(x.v * y.v)
        case IrOpDiv : return latticeConst(x.v / y.v)
        case IrOpMod : return latticeConst(x.v % y.v)
        case IrCmpEq : return b2i(x.v == y.v)
        case IrCmpNe : return b2i(x.v != y.v)
        case IrCmpLt : return b2i(x.v < y.v)
        case IrCmpLe : return b2i(x.v <= y.v)
        case IrCmpGt : return b2i(x.v > y.v)
        case IrCmpGe : return b2i(x.v >= y.v)
        default      : panic("unreachable")
    }
}

func (self *_SCCPSolver) run() {
    self.markBlock(self.cfg.Root)
    for !self.blkq.Empty() || !self.varq.Empty() {
        for !self.blkq.Empty() {
            bb := self.blkq.Dequeue().(*BasicBlock)
            forEachNode(bb, func(v IrNode) {
                self.evalNode(v)
            })
        }
        for !self.varq.Empty() {
            r := self.varq.Dequeue().(Reg)
            for _, user := range self.uses[r] {
                if bb := self.owner[user]; self.exec[bb.Id] {
                    self.evalNode(user)
                }
            }
        }
    }
}

func (self *_SCCPSolver) rewrite() {
    self.cfg.ReversePostOrder(func(bb *BasicBlock) {
        phi := bb.Phi[:0]
        ins := make([]IrNode, 0, len(bb.Ins))

        /* constant phi nodes become constant definitions */
        for _, p := range bb.Phi {
            if cc := self.get(p.R); cc.t == _V_const {
                ins = append(ins, &IrConstInt { R: p.R, V: cc.v })
            } else {
                phi = append(phi, p)
            }
        }

        /* fold proven-constant pure instructions */
        for _, v := range bb.Ins {
            d := definitions(v)
            if IsPure(v) && len(d) == 1 {
                if cc := self.get(*d[0]); cc.t == _V_const {
                    ins = append(ins, &IrConstInt { R: *d[0], V: cc.v })
                    continue
                }
            }

            /* keep everything else, but warn about divisions that could
             * not be folded because the divisor is a constant zero */
            if p, ok := v.(*IrBinaryExpr); ok && (p.Op == IrOpDiv || p.Op == IrOpMod) {
                if y := self.get(p.Y); y.t == _V_const && y.v == 0 {
                    warnf("sccp: not folding %q by constant zero in b%d", p.Op, bb.Id)
                }
            }
            ins = append(ins, v)
        }
        bb.Phi = phi
        bb.Ins = ins

        /* constant branches degrade to jumps; the untaken edge is gone */
        if p, ok := bb.Term.(*IrBranch); ok {
            if cc := self.get(p.V); cc.t == _V_const {
                if cc.v != 0 {
                    bb.termJump(p.Then)
                } else {
                    bb.termJump(p.Else)
                }
            }
        }
    })

    /* drop the now-unreachable blocks and refresh the analyses, then
     * collapse phi nodes that lost all but one operand */
    self.cfg.Rebuild()
    collapseTrivialPhis(self.cfg)
    self.cfg.Rebuild()
}

func (SCCP) Apply(cfg *CFG) {
    s := newSCCPSolver(cfg)
    s.run()
    s.rewrite()
}
