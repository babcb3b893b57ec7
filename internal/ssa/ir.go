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
    `sort`
    `strings`
)

// Reg is a virtual register. The value packs a kind, a slot and an SSA
// version into a single integer:
//
//     bit  62-63 : kind
//     bits 31-61 : slot (variable or temporary number)
//     bits  0-30 : SSA version (0 before renaming)
//
// Named variables are _K_var registers, one slot per declaration site;
// expression temporaries are _K_tmp. After SSA renaming every live
// register is rewritten into a dense _K_norm register whose index is the
// printed "%N".
type Reg uint64

const (
    _B_kind = 62
    _B_slot = 31
)

const (
    _M_slot = (1 << 31) - 1
    _M_ver  = (1 << 31) - 1
)

const (
    _K_var  = 0
    _K_tmp  = 1
    _K_norm = 2
    _K_zero = 3
)

// Rz is the pseudo-register of instructions that define nothing.
const Rz Reg = _K_zero << _B_kind

func mkvar(slot int) Reg {
    return (_K_var << _B_kind) | (Reg(slot) << _B_slot)
}

func mktmp(slot int) Reg {
    return (_K_tmp << _B_kind) | (Reg(slot) << _B_slot)
}

func (self Reg) Kind() uint8 {
    return uint8(self >> _B_kind)
}

func (self Reg) Slot() int {
    return int((self >> _B_slot) & _M_slot)
}

func (self Reg) Version() int {
    return int(self & _M_ver)
}

// Derive returns the same register at SSA version i.
func (self Reg) Derive(i int) Reg {
    return (self &^ Reg(_M_ver)) | Reg(i&_M_ver)
}

// Normalize returns the i-th normalized register.
func (self Reg) Normalize(i int) Reg {
    return (_K_norm << _B_kind) | Reg(i&_M_ver)
}

func (self Reg) String() string {
    switch self.Kind() {
        case _K_zero : return "$_"
        case _K_norm : return fmt.Sprintf("%%%d", self.Version())
        case _K_tmp  : {
            if v := self.Version(); v == 0 {
                return fmt.Sprintf("%%t%d", self.Slot())
            } else {
                return fmt.Sprintf("%%t%d.%d", self.Slot(), v)
            }
        }
        default: {
            if v := self.Version(); v == 0 {
                return fmt.Sprintf("%%v%d", self.Slot())
            } else {
                return fmt.Sprintf("%%v%d.%d", self.Slot(), v)
            }
        }
    }
}

type IrNode interface {
    fmt.Stringer
    irnode()
}

func (*IrConstInt)   irnode() {}
func (*IrCopy)       irnode() {}
func (*IrBinaryExpr) irnode() {}
func (*IrUnaryExpr)  irnode() {}
func (*IrAlloca)     irnode() {}
func (*IrLEA)        irnode() {}
func (*IrLoad)       irnode() {}
func (*IrStore)      irnode() {}
func (*IrLoadArg)    irnode() {}
func (*IrCall)       irnode() {}
func (*IrPhi)        irnode() {}
func (*IrJump)       irnode() {}
func (*IrBranch)     irnode() {}
func (*IrReturn)     irnode() {}

// IrUsages is implemented by nodes that read registers; the returned
// pointers allow passes to rewrite operands in place.
type IrUsages interface {
    IrNode
    Usages() []*Reg
}

// IrDefinitions is implemented by nodes that define registers.
type IrDefinitions interface {
    IrNode
    Definitions() []*Reg
}

// IrImpure marks nodes with observable side effects that DCE must keep.
type IrImpure interface {
    IrNode
    irimpure()
}

func (*IrStore) irimpure() {}
func (*IrCall)  irimpure() {}

type IrConstInt struct {
    R Reg
    V int64
}

func (self *IrConstInt) String() string {
    return fmt.Sprintf("%s = const %d", self.R, self.V)
}

func (self *IrConstInt) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrCopy moves one register into another; it only appears for direct
// variable-to-variable assignments. No pass propagates copies: a copy is
// only removed when SCCP folds it to a constant or DCE finds it unused.
type IrCopy struct {
    R Reg
    V Reg
}

func (self *IrCopy) String() string {
    return fmt.Sprintf("%s = %s", self.R, self.V)
}

func (self *IrCopy) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrCopy) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type (
    IrUnaryOp  uint8
    IrBinaryOp uint8
)

const (
    IrOpNegate IrUnaryOp = iota
    IrOpNot
)

const (
    IrOpAdd IrBinaryOp = iota
    IrOpSub
    IrOpMul
    IrOpDiv
    IrOpMod
    IrCmpEq
    IrCmpNe
    IrCmpLt
    IrCmpLe
    IrCmpGt
    IrCmpGe
)

func (self IrUnaryOp) String() string {
    switch self {
        case IrOpNegate : return "-"
        case IrOpNot    : return "!"
        default         : panic("unreachable")
    }
}

func (self IrBinaryOp) String() string {
    switch self {
        case IrOpAdd : return "+"
        case IrOpSub : return "-"
        case IrOpMul : return "*"
        case IrOpDiv : return "/"
        case IrOpMod : return "%"
        case IrCmpEq : return "=="
        case IrCmpNe : return "!="
        case IrCmpLt : return "<"
        case IrCmpLe : return "<="
        case IrCmpGt : return ">"
        case IrCmpGe : return ">="
        default      : panic("unreachable")
    }
}

type IrBinaryExpr struct {
    R  Reg
    X  Reg
    Y  Reg
    Op IrBinaryOp
}

func (self *IrBinaryExpr) String() string {
    return fmt.Sprintf("%s = %s %s %s", self.R, self.X, self.Op, self.Y)
}

func (self *IrBinaryExpr) Usages() []*Reg {
    return []*Reg { &self.X, &self.Y }
}

func (self *IrBinaryExpr) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrUnaryExpr struct {
    R  Reg
    V  Reg
    Op IrUnaryOp
}

func (self *IrUnaryExpr) String() string {
    return fmt.Sprintf("%s = %s%s", self.R, self.Op, self.V)
}

func (self *IrUnaryExpr) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrUnaryExpr) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrAlloca reserves storage for a fixed-shape integer array and defines
// the array handle. Handles are never merged through phi nodes: the
// handle is the single definition of the array for its whole lifetime.
type IrAlloca struct {
    R    Reg
    Dims []int64
}

func (self *IrAlloca) String() string {
    d := make([]string, 0, len(self.Dims))
    for _, v := range self.Dims {
        d = append(d, fmt.Sprintf("[%d]", v))
    }
    return fmt.Sprintf("%s = alloca %sint", self.R, strings.Join(d, ""))
}

func (self *IrAlloca) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrLEA computes the address of element Off (in flattened cells) of the
// array handle Mem.
type IrLEA struct {
    R   Reg
    Mem Reg
    Off Reg
}

func (self *IrLEA) String() string {
    return fmt.Sprintf("%s = &(%s)[%s]", self.R, self.Mem, self.Off)
}

func (self *IrLEA) Usages() []*Reg {
    return []*Reg { &self.Mem, &self.Off }
}

func (self *IrLEA) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrLoad struct {
    R   Reg
    Mem Reg
}

func (self *IrLoad) String() string {
    return fmt.Sprintf("%s = load %s", self.R, self.Mem)
}

func (self *IrLoad) Usages() []*Reg {
    return []*Reg { &self.Mem }
}

func (self *IrLoad) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrStore struct {
    R   Reg
    Mem Reg
}

func (self *IrStore) String() string {
    return fmt.Sprintf("store(%s -> *%s)", self.R, self.Mem)
}

func (self *IrStore) Usages() []*Reg {
    return []*Reg { &self.R, &self.Mem }
}

type IrLoadArg struct {
    R  Reg
    Id int
}

func (self *IrLoadArg) String() string {
    return fmt.Sprintf("%s = load.arg(#%d)", self.R, self.Id)
}

func (self *IrLoadArg) Definitions() []*Reg {
    return []*Reg { &self.R }
}

type IrCall struct {
    R    Reg
    Fn   string
    In   []Reg
    Void bool
}

func (self *IrCall) String() string {
    in := make([]string, 0, len(self.In))
    for _, r := range self.In {
        in = append(in, r.String())
    }
    if self.Void {
        return fmt.Sprintf("call %s(%s)", self.Fn, strings.Join(in, ", "))
    }
    return fmt.Sprintf("%s = call %s(%s)", self.R, self.Fn, strings.Join(in, ", "))
}

func (self *IrCall) Usages() []*Reg {
    return regsliceref(self.In)
}

func (self *IrCall) Definitions() []*Reg {
    if self.Void {
        return nil
    }
    return []*Reg { &self.R }
}

type IrPhi struct {
    R Reg
    V map[*BasicBlock]*Reg
}

func (self *IrPhi) String() string {
    nb := len(self.V)
    ret := make([]string, 0, nb)
    phi := make([]struct{b int; r Reg}, 0, nb)

    /* collect each incoming path */
    for bb, reg := range self.V {
        phi = append(phi, struct{b int; r Reg}{b: bb.Id, r: *reg})
    }

    /* stable order, keyed by predecessor ID */
    sort.Slice(phi, func(i int, j int) bool {
        return phi[i].b < phi[j].b
    })

    /* dump as string */
    for _, p := range phi {
        ret = append(ret, fmt.Sprintf("b%d: %s", p.b, p.r))
    }

    /* join them together */
    return fmt.Sprintf(
        "%s = φ(%s)",
        self.R,
        strings.Join(ret, ", "),
    )
}

func (self *IrPhi) Usages() (r []*Reg) {
    ids := make([]int, 0, len(self.V))
    tab := make(map[int]*BasicBlock, len(self.V))

    /* deterministic order for renaming and printing */
    for bb := range self.V {
        ids = append(ids, bb.Id)
        tab[bb.Id] = bb
    }
    sort.Ints(ids)

    /* collect the operand refs */
    r = make([]*Reg, 0, len(ids))
    for _, id := range ids {
        r = append(r, self.V[tab[id]])
    }
    return
}

func (self *IrPhi) Definitions() []*Reg {
    return []*Reg { &self.R }
}

// IrSuccessors enumerates the outgoing edges of a terminator. Value
// reports the branch condition value selecting the edge, if any (1 for
// the taken edge of a branch, 0 for the fallthrough).
type IrSuccessors interface {
    Next() bool
    Block() *BasicBlock
    Value() (int64, bool)
}

type IrTerminator interface {
    IrNode
    Successors() IrSuccessors
    irterminator()
}

func (*IrJump)   irterminator() {}
func (*IrBranch) irterminator() {}
func (*IrReturn) irterminator() {}

type _EdgeList struct {
    i int
    b []*BasicBlock
    v []int64
    t []bool
}

func (self *_EdgeList) Next() bool {
    self.i++
    return self.i <= len(self.b)
}

func (self *_EdgeList) Block() *BasicBlock {
    return self.b[self.i-1]
}

func (self *_EdgeList) Value() (int64, bool) {
    return self.v[self.i-1], self.t[self.i-1]
}

type IrJump struct {
    To *BasicBlock
}

func (self *IrJump) String() string {
    return fmt.Sprintf("jump b%d", self.To.Id)
}

func (self *IrJump) Successors() IrSuccessors {
    return &_EdgeList {
        b: []*BasicBlock { self.To },
        v: []int64       { 0 },
        t: []bool        { false },
    }
}

type IrBranch struct {
    V    Reg
    Then *BasicBlock
    Else *BasicBlock
}

func (self *IrBranch) String() string {
    return fmt.Sprintf("branch %s, b%d, b%d", self.V, self.Then.Id, self.Else.Id)
}

func (self *IrBranch) Usages() []*Reg {
    return []*Reg { &self.V }
}

func (self *IrBranch) Successors() IrSuccessors {
    return &_EdgeList {
        b: []*BasicBlock { self.Then, self.Else },
        v: []int64       { 1, 0 },
        t: []bool        { true, true },
    }
}

type IrReturn struct {
    R []Reg
}

func (self *IrReturn) String() string {
    if len(self.R) == 0 {
        return "return"
    }
    ret := make([]string, 0, len(self.R))
    for _, r := range self.R {
        ret = append(ret, r.String())
    }
    return "return " + strings.Join(ret, ", ")
}

func (self *IrReturn) Usages() []*Reg {
    return regsliceref(self.R)
}

func (self *IrReturn) Successors() IrSuccessors {
    return new(_EdgeList)
}

// IsPure reports whether a node may be deleted or moved freely: it has no
// side effects, does not touch memory, and does not transfer control.
func IsPure(v IrNode) bool {
    switch v.(type) {
        case *IrConstInt   : return true
        case *IrCopy       : return true
        case *IrBinaryExpr : return true
        case *IrUnaryExpr  : return true
        default            : return false
    }
}
