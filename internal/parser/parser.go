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

// Package parser implements a recursive-descent parser for the Sable
// grammar:
//
//	PROGRAM    ::= FUNCTION*
//	FUNCTION   ::= "func" IDENT "(" ARGS? ")" "->" TYPE BLOCK
//	TYPE       ::= "int" | "void" | ("[" INTEGER "]")+ "int"
//	BLOCK      ::= "{" STATEMENT* "}"
//	STATEMENT  ::= "let" IDENT TYPE "=" (EXPR | "{" "}") ";"
//	             | LVALUE "=" EXPR ";"
//	             | "if" "(" EXPR ")" BLOCK ("else" BLOCK)?
//	             | "for" BLOCK
//	             | "for" "(" LET ("," LET)* ";" EXPR ";" ASSIGN ("," ASSIGN)* ")" BLOCK
//	             | IDENT "(" EXPRS? ")" ";"
//	             | "return" EXPR? ";" | "break" ";" | "continue" ";"
//
// Binary operators in increasing precedence: "||", "&&", comparisons,
// additive, multiplicative, unary "-"/"!".
package parser

import (
	"fmt"
	"strconv"

	"github.com/sable-lang/sable/internal/ast"
	"github.com/sable-lang/sable/internal/lexer"
)

// SyntaxError reports a parse failure with its source position.
type SyntaxError struct {
	Pos    ast.Pos
	Reason string
}

func (self *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %s: %s", self.Pos, self.Reason)
}

type Parser struct {
	toks []lexer.Token
	pos  int
}

func New(lx *lexer.Lexer) *Parser {
	return &Parser{toks: lx.Tokens()}
}

func (self *Parser) cur() lexer.Token {
	return self.toks[self.pos]
}

func (self *Parser) at(t lexer.TokenType) bool {
	return self.cur().Type == t
}

func (self *Parser) peek(n int) lexer.Token {
	if self.pos+n >= len(self.toks) {
		return self.toks[len(self.toks)-1]
	}
	return self.toks[self.pos+n]
}

func (self *Parser) advance() lexer.Token {
	t := self.cur()
	if self.pos < len(self.toks)-1 {
		self.pos++
	}
	return t
}

func (self *Parser) expect(t lexer.TokenType) (lexer.Token, error) {
	if !self.at(t) {
		return self.cur(), self.errorf("expected %s, found %s", t, self.cur().Type)
	}
	return self.advance(), nil
}

func (self *Parser) errorf(format string, args ...interface{}) error {
	tok := self.cur()
	return &SyntaxError{
		Pos:    ast.Pos{Line: tok.Line, Col: tok.Col},
		Reason: fmt.Sprintf(format, args...),
	}
}

func tokpos(t lexer.Token) ast.Pos {
	return ast.Pos{Line: t.Line, Col: t.Col}
}

// Parse consumes the whole token stream and returns the program.
func (self *Parser) Parse() (*ast.Program, error) {
	p := new(ast.Program)
	for !self.at(lexer.EOF) {
		if self.at(lexer.ILLEGAL) {
			return nil, self.errorf("unexpected character %q", self.cur().Lex)
		}
		fn, err := self.parseFunction()
		if err != nil {
			return nil, err
		}
		p.Funcs = append(p.Funcs, fn)
	}
	return p, nil
}

func (self *Parser) parseFunction() (*ast.FuncDecl, error) {
	kw, err := self.expect(lexer.KW_FUNC)
	if err != nil {
		return nil, err
	}
	name, err := self.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err = self.expect(lexer.LPAREN); err != nil {
		return nil, err
	}

	var params []*ast.Param
	for !self.at(lexer.RPAREN) {
		if len(params) != 0 {
			if _, err = self.expect(lexer.COMMA); err != nil {
				return nil, err
			}
		}
		pn, err := self.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		pt, err := self.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, &ast.Param{Name: pn.Lex, Type: pt, Pos: tokpos(pn)})
	}
	self.advance()

	if _, err = self.expect(lexer.ARROW); err != nil {
		return nil, err
	}
	ret, err := self.parseType()
	if err != nil {
		return nil, err
	}
	body, err := self.parseBlock()
	if err != nil {
		return nil, err
	}

	return &ast.FuncDecl{
		Name:   name.Lex,
		Params: params,
		Ret:    ret,
		Body:   body,
		Pos:    tokpos(kw),
	}, nil
}

func (self *Parser) parseType() (ast.Type, error) {
	var t ast.Type

	/* array dimensions, if any */
	for self.at(lexer.LBRACK) {
		self.advance()
		n, err := self.expect(lexer.INT)
		if err != nil {
			return t, err
		}
		d, err := strconv.ParseInt(n.Lex, 10, 64)
		if err != nil || d <= 0 {
			return t, self.errorf("invalid array dimension %q", n.Lex)
		}
		if _, err := self.expect(lexer.RBRACK); err != nil {
			return t, err
		}
		t.Dims = append(t.Dims, d)
	}

	switch {
	case self.at(lexer.KW_INT):
		self.advance()
		t.Base = "int"
	case self.at(lexer.KW_VOID) && len(t.Dims) == 0:
		self.advance()
		t.Base = "void"
	default:
		return t, self.errorf("expected type, found %s", self.cur().Type)
	}
	return t, nil
}

func (self *Parser) parseBlock() (*ast.Block, error) {
	if _, err := self.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	b := new(ast.Block)
	for !self.at(lexer.RBRACE) {
		if self.at(lexer.EOF) {
			return nil, self.errorf("unexpected end of file in block")
		}
		s, err := self.parseStatement()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	self.advance()
	return b, nil
}

func (self *Parser) parseStatement() (ast.Stmt, error) {
	switch {
	case self.at(lexer.KW_IF):
		return self.parseIf()
	case self.at(lexer.KW_FOR):
		return self.parseFor()
	case self.at(lexer.KW_RETURN):
		return self.parseReturn()
	case self.at(lexer.KW_BREAK):
		tok := self.advance()
		if _, err := self.expect(lexer.SEMI); err != nil {
			return nil, err
		}
		return &ast.BreakStmt{Pos: tokpos(tok)}, nil
	case self.at(lexer.KW_CONTINUE):
		tok := self.advance()
		if _, err := self.expect(lexer.SEMI); err != nil {
			return nil, err
		}
		return &ast.ContinueStmt{Pos: tokpos(tok)}, nil
	case self.at(lexer.KW_LET):
		let, err := self.parseLet()
		if err != nil {
			return nil, err
		}
		if _, err := self.expect(lexer.SEMI); err != nil {
			return nil, err
		}
		return let, nil
	case self.at(lexer.IDENT):
		if self.peek(1).Type == lexer.LPAREN {
			call, err := self.parseCall()
			if err != nil {
				return nil, err
			}
			if _, err := self.expect(lexer.SEMI); err != nil {
				return nil, err
			}
			return &ast.CallStmt{Call: call}, nil
		}
		asn, err := self.parseAssign()
		if err != nil {
			return nil, err
		}
		if _, err := self.expect(lexer.SEMI); err != nil {
			return nil, err
		}
		return asn, nil
	default:
		return nil, self.errorf("unexpected token %s", self.cur().Type)
	}
}

func (self *Parser) parseLet() (*ast.LetStmt, error) {
	kw := self.advance()
	name, err := self.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	typ, err := self.parseType()
	if err != nil {
		return nil, err
	}
	if _, err = self.expect(lexer.ASSIGN); err != nil {
		return nil, err
	}

	/* "{}" initializes an array */
	if self.at(lexer.LBRACE) {
		lb := self.advance()
		if _, err = self.expect(lexer.RBRACE); err != nil {
			return nil, err
		}
		return &ast.LetStmt{
			Name:  name.Lex,
			Type:  typ,
			Value: &ast.ArrayLit{Pos: tokpos(lb)},
			Pos:   tokpos(kw),
		}, nil
	}

	val, err := self.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.LetStmt{Name: name.Lex, Type: typ, Value: val, Pos: tokpos(kw)}, nil
}

func (self *Parser) parseAssign() (*ast.AssignStmt, error) {
	name, err := self.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}

	var idx []ast.Expr
	for self.at(lexer.LBRACK) {
		self.advance()
		e, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err = self.expect(lexer.RBRACK); err != nil {
			return nil, err
		}
		idx = append(idx, e)
	}

	if _, err = self.expect(lexer.ASSIGN); err != nil {
		return nil, err
	}
	val, err := self.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.AssignStmt{Name: name.Lex, Indices: idx, Value: val, Pos: tokpos(name)}, nil
}

func (self *Parser) parseIf() (*ast.IfStmt, error) {
	kw := self.advance()
	if _, err := self.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	cond, err := self.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err = self.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	then, err := self.parseBlock()
	if err != nil {
		return nil, err
	}

	var els *ast.Block
	if self.at(lexer.KW_ELSE) {
		self.advance()
		if els, err = self.parseBlock(); err != nil {
			return nil, err
		}
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: els, Pos: tokpos(kw)}, nil
}

func (self *Parser) parseFor() (ast.Stmt, error) {
	kw := self.advance()

	/* "for { ... }" is the unconditional loop */
	if self.at(lexer.LBRACE) {
		body, err := self.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.LoopStmt{Body: body, Pos: tokpos(kw)}, nil
	}

	if _, err := self.expect(lexer.LPAREN); err != nil {
		return nil, err
	}

	var init []*ast.LetStmt
	for {
		let, err := self.parseLet()
		if err != nil {
			return nil, err
		}
		init = append(init, let)
		if !self.at(lexer.COMMA) {
			break
		}
		self.advance()
	}
	if _, err := self.expect(lexer.SEMI); err != nil {
		return nil, err
	}

	cond, err := self.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err = self.expect(lexer.SEMI); err != nil {
		return nil, err
	}

	var post []*ast.AssignStmt
	for {
		asn, err := self.parseAssign()
		if err != nil {
			return nil, err
		}
		post = append(post, asn)
		if !self.at(lexer.COMMA) {
			break
		}
		self.advance()
	}
	if _, err = self.expect(lexer.RPAREN); err != nil {
		return nil, err
	}

	body, err := self.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ForStmt{Init: init, Cond: cond, Post: post, Body: body, Pos: tokpos(kw)}, nil
}

func (self *Parser) parseReturn() (*ast.ReturnStmt, error) {
	kw := self.advance()
	if self.at(lexer.SEMI) {
		self.advance()
		return &ast.ReturnStmt{Pos: tokpos(kw)}, nil
	}
	val, err := self.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err = self.expect(lexer.SEMI); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Value: val, Pos: tokpos(kw)}, nil
}

func (self *Parser) parseCall() (*ast.CallExpr, error) {
	name, err := self.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	self.advance() // (

	var args []ast.Expr
	for !self.at(lexer.RPAREN) {
		if len(args) != 0 {
			if _, err = self.expect(lexer.COMMA); err != nil {
				return nil, err
			}
		}
		a, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	self.advance()
	return &ast.CallExpr{Name: name.Lex, Args: args, Pos: tokpos(name)}, nil
}

func (self *Parser) parseExpr() (ast.Expr, error) {
	return self.parseOr()
}

func (self *Parser) binaryChain(ops []lexer.TokenType, next func() (ast.Expr, error)) (ast.Expr, error) {
	lhs, err := next()
	if err != nil {
		return nil, err
	}
	for {
		matched := false
		for _, op := range ops {
			if self.at(op) {
				tok := self.advance()
				rhs, err := next()
				if err != nil {
					return nil, err
				}
				lhs = &ast.BinaryExpr{Op: tok.Lex, X: lhs, Y: rhs, Pos: tokpos(tok)}
				matched = true
				break
			}
		}
		if !matched {
			return lhs, nil
		}
	}
}

func (self *Parser) parseOr() (ast.Expr, error) {
	return self.binaryChain([]lexer.TokenType{lexer.OROR}, self.parseAnd)
}

func (self *Parser) parseAnd() (ast.Expr, error) {
	return self.binaryChain([]lexer.TokenType{lexer.ANDAND}, self.parseCmp)
}

func (self *Parser) parseCmp() (ast.Expr, error) {
	cmps := []lexer.TokenType{lexer.EQEQ, lexer.NEQ, lexer.LT, lexer.LE, lexer.GT, lexer.GE}
	return self.binaryChain(cmps, self.parseAdd)
}

func (self *Parser) parseAdd() (ast.Expr, error) {
	return self.binaryChain([]lexer.TokenType{lexer.PLUS, lexer.MINUS}, self.parseMul)
}

func (self *Parser) parseMul() (ast.Expr, error) {
	muls := []lexer.TokenType{lexer.STAR, lexer.SLASH, lexer.PERCENT}
	return self.binaryChain(muls, self.parseUnary)
}

func (self *Parser) parseUnary() (ast.Expr, error) {
	if self.at(lexer.MINUS) || self.at(lexer.BANG) {
		tok := self.advance()
		x, err := self.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: tok.Lex, X: x, Pos: tokpos(tok)}, nil
	}
	return self.parseAtom()
}

func (self *Parser) parseAtom() (ast.Expr, error) {
	switch {
	case self.at(lexer.INT):
		tok := self.advance()
		v, err := strconv.ParseInt(tok.Lex, 10, 64)
		if err != nil {
			return nil, self.errorf("integer literal out of range: %s", tok.Lex)
		}
		return &ast.IntLit{Value: v, Pos: tokpos(tok)}, nil

	case self.at(lexer.IDENT):
		if self.peek(1).Type == lexer.LPAREN {
			return self.parseCall()
		}
		tok := self.advance()
		var idx []ast.Expr
		for self.at(lexer.LBRACK) {
			self.advance()
			e, err := self.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err = self.expect(lexer.RBRACK); err != nil {
				return nil, err
			}
			idx = append(idx, e)
		}
		if len(idx) != 0 {
			return &ast.IndexExpr{Name: tok.Lex, Indices: idx, Pos: tokpos(tok)}, nil
		}
		return &ast.Ident{Name: tok.Lex, Pos: tokpos(tok)}, nil

	case self.at(lexer.LPAREN):
		self.advance()
		e, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err = self.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return e, nil

	default:
		return nil, self.errorf("expected expression, found %s", self.cur().Type)
	}
}
