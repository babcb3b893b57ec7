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

// Package sema type-checks a parsed program and resolves every name to a
// symbol. The CFG builder relies on the resolution maps in Info and on the
// guarantees established here: all names bound, all types consistent, no
// shadowing, every scalar initialized at its declaration, break/continue
// only inside loops, and non-void functions returning on every path.
package sema

import (
	"fmt"

	"github.com/sable-lang/sable/internal/ast"
)

// SemanticError is a single diagnosed problem; analysis collects all of
// them instead of stopping at the first.
type SemanticError struct {
	Pos    ast.Pos
	Reason string
}

func (self *SemanticError) Error() string {
	return fmt.Sprintf("semantic error at %s: %s", self.Pos, self.Reason)
}

// VarSym is a declared variable. Every declaration gets a distinct symbol,
// so the CFG builder can key its register map by *VarSym identity.
type VarSym struct {
	Name string
	Type ast.Type
}

type FuncSig struct {
	Name   string
	Params []ast.Type
	Ret    ast.Type
	Decl   *ast.FuncDecl
}

// Info carries the resolution results of a successful analysis.
type Info struct {
	Funcs   map[string]*FuncSig
	Lets    map[*ast.LetStmt]*VarSym
	Params  map[*ast.Param]*VarSym
	Assigns map[*ast.AssignStmt]*VarSym
	Uses    map[ast.Expr]*VarSym // *ast.Ident and *ast.IndexExpr
}

type _Scope struct {
	vars   map[string]*VarSym
	parent *_Scope
}

func (self *_Scope) lookup(name string) *VarSym {
	for s := self; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v
		}
	}
	return nil
}

type _Checker struct {
	info  *Info
	errs  []*SemanticError
	scope *_Scope
	fn    *FuncSig
	loops int
}

// Check analyzes the whole program. The returned Info is valid only when
// the error slice is empty.
func Check(prog *ast.Program) (*Info, []*SemanticError) {
	ck := &_Checker{
		info: &Info{
			Funcs:   make(map[string]*FuncSig),
			Lets:    make(map[*ast.LetStmt]*VarSym),
			Params:  make(map[*ast.Param]*VarSym),
			Assigns: make(map[*ast.AssignStmt]*VarSym),
			Uses:    make(map[ast.Expr]*VarSym),
		},
	}

	/* collect signatures first so calls can be forward references */
	for _, fn := range prog.Funcs {
		if _, ok := ck.info.Funcs[fn.Name]; ok {
			ck.errorf(fn.Pos, "function %q redeclared", fn.Name)
			continue
		}
		sig := &FuncSig{Name: fn.Name, Ret: fn.Ret, Decl: fn}
		for _, p := range fn.Params {
			sig.Params = append(sig.Params, p.Type)
		}
		ck.info.Funcs[fn.Name] = sig
	}

	for _, fn := range prog.Funcs {
		ck.checkFunction(fn)
	}
	return ck.info, ck.errs
}

func (self *_Checker) errorf(pos ast.Pos, format string, args ...interface{}) {
	self.errs = append(self.errs, &SemanticError{
		Pos:    pos,
		Reason: fmt.Sprintf(format, args...),
	})
}

func (self *_Checker) push() {
	self.scope = &_Scope{vars: make(map[string]*VarSym), parent: self.scope}
}

func (self *_Checker) pop() {
	self.scope = self.scope.parent
}

func (self *_Checker) declare(name string, typ ast.Type, pos ast.Pos) *VarSym {
	if self.scope.lookup(name) != nil {
		self.errorf(pos, "redeclaration of %q (shadowing is not allowed)", name)
	}
	v := &VarSym{Name: name, Type: typ}
	self.scope.vars[name] = v
	return v
}

func (self *_Checker) checkFunction(fn *ast.FuncDecl) {
	sig := self.info.Funcs[fn.Name]
	if sig == nil || sig.Decl != fn {
		return // duplicate declaration, already reported
	}

	self.fn = sig
	self.loops = 0
	self.push()

	for _, p := range fn.Params {
		if p.Type.Base == "void" {
			self.errorf(p.Pos, "parameter %q has type void", p.Name)
			continue
		}
		self.info.Params[p] = self.declare(p.Name, p.Type, p.Pos)
	}

	self.checkBlock(fn.Body)
	self.pop()

	if fn.Ret.Base == "int" && !fn.Ret.IsArray() && !blockReturns(fn.Body) {
		self.errorf(fn.Pos, "function %q: missing return on some path", fn.Name)
	}
}

func (self *_Checker) checkBlock(b *ast.Block) {
	self.push()
	for _, s := range b.Stmts {
		self.checkStmt(s)
	}
	self.pop()
}

func (self *_Checker) checkStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LetStmt:
		self.checkLet(st)
	case *ast.AssignStmt:
		self.checkAssign(st)
	case *ast.IfStmt:
		self.checkCond(st.Cond)
		self.checkBlock(st.Then)
		if st.Else != nil {
			self.checkBlock(st.Else)
		}
	case *ast.ForStmt:
		self.push()
		for _, let := range st.Init {
			self.checkLet(let)
		}
		self.checkCond(st.Cond)
		for _, asn := range st.Post {
			self.checkAssign(asn)
		}
		self.loops++
		self.checkBlock(st.Body)
		self.loops--
		self.pop()
	case *ast.LoopStmt:
		self.loops++
		self.checkBlock(st.Body)
		self.loops--
	case *ast.CallStmt:
		self.checkCall(st.Call)
	case *ast.ReturnStmt:
		self.checkReturn(st)
	case *ast.BreakStmt:
		if self.loops == 0 {
			self.errorf(st.Pos, "break outside of loop")
		}
	case *ast.ContinueStmt:
		if self.loops == 0 {
			self.errorf(st.Pos, "continue outside of loop")
		}
	default:
		panic(fmt.Sprintf("sema: unknown statement type %T", s))
	}
}

func (self *_Checker) checkLet(st *ast.LetStmt) {
	if st.Type.Base == "void" {
		self.errorf(st.Pos, "variable %q has type void", st.Name)
		return
	}

	if _, ok := st.Value.(*ast.ArrayLit); ok {
		if !st.Type.IsArray() {
			self.errorf(st.Pos, "%q: array initializer for scalar variable", st.Name)
		}
	} else if st.Type.IsArray() {
		self.errorf(st.Pos, "%q: array variables require the {} initializer", st.Name)
	} else {
		self.checkIntExpr(st.Value)
	}

	self.info.Lets[st] = self.declare(st.Name, st.Type, st.Pos)
}

func (self *_Checker) checkAssign(st *ast.AssignStmt) {
	sym := self.scope.lookup(st.Name)
	if sym == nil {
		self.errorf(st.Pos, "assignment to undeclared variable %q", st.Name)
		self.checkIntExpr(st.Value)
		return
	}
	self.info.Assigns[st] = sym

	if len(st.Indices) == 0 {
		if sym.Type.IsArray() {
			self.errorf(st.Pos, "cannot reassign array %q as a whole", st.Name)
		}
	} else {
		if !sym.Type.IsArray() {
			self.errorf(st.Pos, "indexing non-array variable %q", st.Name)
		} else if len(st.Indices) != len(sym.Type.Dims) {
			self.errorf(st.Pos, "%q expects %d indices, got %d",
				st.Name, len(sym.Type.Dims), len(st.Indices))
		}
		for _, ix := range st.Indices {
			self.checkIntExpr(ix)
		}
	}
	self.checkIntExpr(st.Value)
}

func (self *_Checker) checkCond(e ast.Expr) {
	self.checkIntExpr(e)
}

func (self *_Checker) checkReturn(st *ast.ReturnStmt) {
	switch {
	case self.fn.Ret.Base == "void":
		if st.Value != nil {
			self.errorf(st.Pos, "void function %q returns a value", self.fn.Name)
		}
	case st.Value == nil:
		self.errorf(st.Pos, "function %q must return a value", self.fn.Name)
	default:
		self.checkIntExpr(st.Value)
	}
}

func (self *_Checker) checkCall(call *ast.CallExpr) ast.Type {
	sig, ok := self.info.Funcs[call.Name]
	if !ok {
		self.errorf(call.Pos, "call to undefined function %q", call.Name)
		for _, a := range call.Args {
			self.checkIntExpr(a)
		}
		return ast.Type{Base: "int"}
	}
	if len(call.Args) != len(sig.Params) {
		self.errorf(call.Pos, "%q expects %d arguments, got %d",
			call.Name, len(sig.Params), len(call.Args))
	}
	for i, a := range call.Args {
		at := self.exprType(a)
		if i < len(sig.Params) && at.String() != sig.Params[i].String() {
			self.errorf(a.Position(), "argument %d of %q: have %s, want %s",
				i+1, call.Name, at, sig.Params[i])
		}
	}
	return sig.Ret
}

// checkIntExpr requires e to be a scalar int expression.
func (self *_Checker) checkIntExpr(e ast.Expr) {
	if t := self.exprType(e); t.Base != "int" || t.IsArray() {
		self.errorf(e.Position(), "expected an int expression, have %s", t)
	}
}

func (self *_Checker) exprType(e ast.Expr) ast.Type {
	intt := ast.Type{Base: "int"}

	switch ex := e.(type) {
	case *ast.IntLit:
		return intt

	case *ast.Ident:
		sym := self.scope.lookup(ex.Name)
		if sym == nil {
			self.errorf(ex.Pos, "undefined variable %q", ex.Name)
			return intt
		}
		self.info.Uses[ex] = sym
		return sym.Type

	case *ast.IndexExpr:
		sym := self.scope.lookup(ex.Name)
		if sym == nil {
			self.errorf(ex.Pos, "undefined variable %q", ex.Name)
			return intt
		}
		self.info.Uses[ex] = sym
		if !sym.Type.IsArray() {
			self.errorf(ex.Pos, "indexing non-array variable %q", ex.Name)
		} else if len(ex.Indices) != len(sym.Type.Dims) {
			self.errorf(ex.Pos, "%q expects %d indices, got %d",
				ex.Name, len(sym.Type.Dims), len(ex.Indices))
		}
		for _, ix := range ex.Indices {
			self.checkIntExpr(ix)
		}
		return intt

	case *ast.BinaryExpr:
		self.checkIntExpr(ex.X)
		self.checkIntExpr(ex.Y)
		return intt

	case *ast.UnaryExpr:
		self.checkIntExpr(ex.X)
		return intt

	case *ast.CallExpr:
		t := self.checkCall(ex)
		if t.Base == "void" {
			self.errorf(ex.Pos, "void function %q used as a value", ex.Name)
			return intt
		}
		return t

	case *ast.ArrayLit:
		self.errorf(ex.Pos, "{} is only valid as an array initializer")
		return intt

	default:
		panic(fmt.Sprintf("sema: unknown expression type %T", e))
	}
}

// blockReturns reports whether every path through b ends in a return.
// Loops are treated conservatively as possibly not executing.
func blockReturns(b *ast.Block) bool {
	for _, s := range b.Stmts {
		switch st := s.(type) {
		case *ast.ReturnStmt:
			return true
		case *ast.IfStmt:
			if st.Else != nil && blockReturns(st.Then) && blockReturns(st.Else) {
				return true
			}
		}
	}
	return false
}
