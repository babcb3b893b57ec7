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

    `github.com/sable-lang/sable/internal/ast`
    `github.com/sable-lang/sable/internal/sema`
)

// _GraphBuilder lowers one type-checked function body into a CFG. It
// keeps a mutable "current block" cursor plus explicit stacks of break
// and continue targets; statements append to the cursor, control-flow
// statements terminate it and move it.
type _GraphBuilder struct {
    cfg  *CFG
    cur  *BasicBlock
    brk  []*BasicBlock
    cont []*BasicBlock
    info *sema.Info
    vars map[*sema.VarSym]Reg
}

// BuildCFG lowers a function. The AST must have passed semantic analysis
// with the given resolution info.
func BuildCFG(fn *ast.FuncDecl, info *sema.Info) *CFG {
    fi := &FuncInfo {
        Name     : fn.Name,
        RetVoid  : fn.Ret.Base == "void",
        VarNames : make(map[int]string),
    }
    for _, p := range fn.Params {
        fi.Args = append(fi.Args, FuncArg { Name: p.Name, Dims: p.Type.Dims })
    }

    cfg := newCFG(fi)
    cfg.Root = cfg.newBlock()

    b := &_GraphBuilder {
        cfg  : cfg,
        cur  : cfg.Root,
        info : info,
        vars : make(map[*sema.VarSym]Reg),
    }

    /* materialize the parameters */
    for i, p := range fn.Params {
        sym := info.Params[p]
        reg := cfg.newVar(p.Name)
        b.vars[sym] = reg
        b.cur.addInstr(&IrLoadArg { R: reg, Id: i })
    }

    /* lower the body; a fall-through tail returns void implicitly */
    b.block(fn.Body)
    if b.cur.Term == nil {
        b.cur.termReturn(nil)
    }

    cfg.Rebuild()
    return cfg
}

func (self *_GraphBuilder) block(b *ast.Block) {
    for _, s := range b.Stmts {
        self.stmt(s)
    }
}

func (self *_GraphBuilder) stmt(s ast.Stmt) {
    switch st := s.(type) {
        case *ast.LetStmt      : self.let(st)
        case *ast.AssignStmt   : self.assign(st)
        case *ast.IfStmt       : self.cond(st)
        case *ast.ForStmt      : self.forLoop(st)
        case *ast.LoopStmt     : self.loop(st)
        case *ast.CallStmt     : self.call(st.Call, Rz, true)
        case *ast.ReturnStmt   : self.ret(st)
        case *ast.BreakStmt    : self.jumpOut(self.brk[len(self.brk)-1])
        case *ast.ContinueStmt : self.jumpOut(self.cont[len(self.cont)-1])
        default                : panic(fmt.Sprintf("cfg: unknown statement type %T", s))
    }
}

func (self *_GraphBuilder) let(st *ast.LetStmt) {
    sym := self.info.Lets[st]
    reg := self.cfg.newVar(st.Name)
    self.vars[sym] = reg

    /* "{}" declares array storage; scalars evaluate straight into the
     * variable register */
    if _, ok := st.Value.(*ast.ArrayLit); ok {
        self.cur.addInstr(&IrAlloca { R: reg, Dims: sym.Type.Dims })
    } else {
        self.exprInto(reg, st.Value)
    }
}

func (self *_GraphBuilder) assign(st *ast.AssignStmt) {
    sym := self.info.Assigns[st]

    /* scalar reassignment */
    if len(st.Indices) == 0 {
        self.exprInto(self.vars[sym], st.Value)
        return
    }

    /* array element store */
    addr := self.addr(sym, st.Indices)
    v := self.expr(st.Value)
    self.cur.addInstr(&IrStore { R: v, Mem: addr })
}

func (self *_GraphBuilder) cond(st *ast.IfStmt) {
    v := self.expr(st.Cond)
    then := self.cfg.newBlock()
    join := self.cfg.newBlock()

    /* wire the condition */
    if st.Else == nil {
        self.cur.termBranch(v, then, join)
    } else {
        els := self.cfg.newBlock()
        self.cur.termBranch(v, then, els)
        self.cur = els
        self.block(st.Else)
        if self.cur.Term == nil {
            self.cur.termJump(join)
        }
    }

    /* then arm */
    self.cur = then
    self.block(st.Then)
    if self.cur.Term == nil {
        self.cur.termJump(join)
    }
    self.cur = join
}

func (self *_GraphBuilder) loop(st *ast.LoopStmt) {
    header := self.cfg.newBlock()
    exit := self.cfg.newBlock()

    /* enter the loop; the body starts at the header, continue re-enters
     * the header, break leaves through the exit */
    self.cur.termJump(header)
    self.cur = header
    self.brk = append(self.brk, exit)
    self.cont = append(self.cont, header)
    self.block(st.Body)
    self.brk = self.brk[:len(self.brk)-1]
    self.cont = self.cont[:len(self.cont)-1]

    /* loop back-edge */
    if self.cur.Term == nil {
        self.cur.termJump(header)
    }
    self.cur = exit
}

func (self *_GraphBuilder) forLoop(st *ast.ForStmt) {
    for _, let := range st.Init {
        self.let(let)
    }

    header := self.cfg.newBlock()
    body := self.cfg.newBlock()
    step := self.cfg.newBlock()
    exit := self.cfg.newBlock()

    /* the header re-evaluates the condition on every iteration */
    self.cur.termJump(header)
    self.cur = header
    v := self.expr(st.Cond)
    self.cur.termBranch(v, body, exit)

    /* loop body, with break/continue wired to exit/step */
    self.cur = body
    self.brk = append(self.brk, exit)
    self.cont = append(self.cont, step)
    self.block(st.Body)
    self.brk = self.brk[:len(self.brk)-1]
    self.cont = self.cont[:len(self.cont)-1]
    if self.cur.Term == nil {
        self.cur.termJump(step)
    }

    /* step block runs the update assignments, then loops */
    self.cur = step
    for _, asn := range st.Post {
        self.assign(asn)
    }
    self.cur.termJump(header)
    self.cur = exit
}

func (self *_GraphBuilder) ret(st *ast.ReturnStmt) {
    if st.Value == nil {
        self.cur.termReturn(nil)
    } else {
        v := self.expr(st.Value)
        self.cur.termReturn([]Reg { v })
    }

    /* anything after a return is unreachable, but still lowered into an
     * orphan block that cleanup drops */
    self.cur = self.cfg.newBlock()
}

func (self *_GraphBuilder) jumpOut(to *BasicBlock) {
    self.cur.termJump(to)
    self.cur = self.cfg.newBlock()
}

/** Expressions **/

// expr evaluates e and returns the register holding its value. Bare
// variable reads resolve to the variable register without a copy.
func (self *_GraphBuilder) expr(e ast.Expr) Reg {
    if id, ok := e.(*ast.Ident); ok {
        return self.vars[self.info.Uses[id]]
    }
    dst := self.cfg.newTemp()
    self.exprInto(dst, e)
    return dst
}

// exprInto evaluates e into the destination register. The destination is
// written by the final operation itself, so variable assignments define
// the variable register directly.
func (self *_GraphBuilder) exprInto(dst Reg, e ast.Expr) {
    switch ex := e.(type) {
        case *ast.IntLit: {
            self.cur.addInstr(&IrConstInt { R: dst, V: ex.Value })
        }

        case *ast.Ident: {
            self.cur.addInstr(&IrCopy { R: dst, V: self.vars[self.info.Uses[ex]] })
        }

        case *ast.IndexExpr: {
            addr := self.addr(self.info.Uses[ex], ex.Indices)
            self.cur.addInstr(&IrLoad { R: dst, Mem: addr })
        }

        case *ast.UnaryExpr: {
            v := self.expr(ex.X)
            op := IrOpNegate
            if ex.Op == "!" {
                op = IrOpNot
            }
            self.cur.addInstr(&IrUnaryExpr { R: dst, V: v, Op: op })
        }

        case *ast.BinaryExpr: {
            self.binary(dst, ex)
        }

        case *ast.CallExpr: {
            self.call(ex, dst, false)
        }

        default: {
            panic(fmt.Sprintf("cfg: unknown expression type %T", e))
        }
    }
}

var _binops = map[string]IrBinaryOp {
    "+"  : IrOpAdd,
    "-"  : IrOpSub,
    "*"  : IrOpMul,
    "/"  : IrOpDiv,
    "%"  : IrOpMod,
    "==" : IrCmpEq,
    "!=" : IrCmpNe,
    "<"  : IrCmpLt,
    "<=" : IrCmpLe,
    ">"  : IrCmpGt,
    ">=" : IrCmpGe,
}

func (self *_GraphBuilder) binary(dst Reg, ex *ast.BinaryExpr) {
    if ex.Op == "&&" || ex.Op == "||" {
        self.shortCircuit(dst, ex)
        return
    }
    op, ok := _binops[ex.Op]
    if !ok {
        panic("cfg: invalid binary operator: " + ex.Op)
    }
    x := self.expr(ex.X)
    y := self.expr(ex.Y)
    self.cur.addInstr(&IrBinaryExpr { R: dst, X: x, Y: y, Op: op })
}

// shortCircuit lowers "&&" and "||" into a diamond that evaluates the
// right operand only when needed and always produces 0 or 1; the two
// definitions of dst meet in a phi once SSA construction runs.
func (self *_GraphBuilder) shortCircuit(dst Reg, ex *ast.BinaryExpr) {
    x := self.expr(ex.X)
    rhs := self.cfg.newBlock()
    cut := self.cfg.newBlock()
    join := self.cfg.newBlock()

    /* "&&" falls into the right operand when the left is non-zero,
     * "||" when it is zero */
    if ex.Op == "&&" {
        self.cur.termBranch(x, rhs, cut)
    } else {
        self.cur.termBranch(x, cut, rhs)
    }

    /* right operand decides the value: normalize it to 0/1 */
    self.cur = rhs
    y := self.expr(ex.Y)
    z := self.cfg.newTemp()
    self.cur.addInstr(&IrConstInt { R: z, V: 0 })
    self.cur.addInstr(&IrBinaryExpr { R: dst, X: y, Y: z, Op: IrCmpNe })
    self.cur.termJump(join)

    /* short-circuit value: 0 for "&&", 1 for "||" */
    self.cur = cut
    if ex.Op == "&&" {
        self.cur.addInstr(&IrConstInt { R: dst, V: 0 })
    } else {
        self.cur.addInstr(&IrConstInt { R: dst, V: 1 })
    }
    self.cur.termJump(join)
    self.cur = join
}

func (self *_GraphBuilder) call(ex *ast.CallExpr, dst Reg, stmt bool) {
    in := make([]Reg, 0, len(ex.Args))
    for _, a := range ex.Args {
        in = append(in, self.expr(a))
    }

    /* a call in statement position discards its result */
    sig := self.info.Funcs[ex.Name]
    void := sig != nil && sig.Ret.Base == "void"
    if stmt && !void {
        dst = self.cfg.newTemp()
    }
    self.cur.addInstr(&IrCall { R: dst, Fn: ex.Name, In: in, Void: void })
}

// addr lowers a (possibly multi-dimensional) element address to a chain
// of stride multiplications and additions feeding a single lea: the
// offset of a[i][j] in a [d1][d2]int is i*d2 + j*1 flattened cells.
func (self *_GraphBuilder) addr(sym *sema.VarSym, indices []ast.Expr) Reg {
    base := self.vars[sym]
    dims := sym.Type.Dims

    /* stride of dimension i is the product of the dimensions after it */
    strides := make([]int64, len(dims))
    for i := range dims {
        strides[i] = 1
        for _, d := range dims[i+1:] {
            strides[i] *= d
        }
    }

    /* accumulate the flattened offset */
    off := Rz
    for i, ix := range indices {
        idx := self.expr(ix)
        sc := self.cfg.newTemp()
        self.cur.addInstr(&IrConstInt { R: sc, V: strides[i] })
        mul := self.cfg.newTemp()
        self.cur.addInstr(&IrBinaryExpr { R: mul, X: idx, Y: sc, Op: IrOpMul })
        if off == Rz {
            off = mul
        } else {
            sum := self.cfg.newTemp()
            self.cur.addInstr(&IrBinaryExpr { R: sum, X: off, Y: mul, Op: IrOpAdd })
            off = sum
        }
    }

    addr := self.cfg.newTemp()
    self.cur.addInstr(&IrLEA { R: addr, Mem: base, Off: off })
    return addr
}
