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

package sema

import (
	"strings"
	"testing"

	"github.com/sable-lang/sable/internal/lexer"
	"github.com/sable-lang/sable/internal/parser"
	"github.com/stretchr/testify/require"
)

func check(t *testing.T, src string) []*SemanticError {
	prog, err := parser.New(lexer.New(src)).Parse()
	require.NoError(t, err)
	_, errs := Check(prog)
	return errs
}

func TestCheck_Valid(t *testing.T) {
	for _, src := range []string{
		`func f() -> int { return 1; }`,
		`func f(a int, b int) -> int { return a + b; }`,
		`func f() -> void { let a [4]int = {}; a[0] = 1; }`,
		`func f(n int) -> int {
		     let s int = 0;
		     for (let i int = 0; i < n; i = i + 1) { s = s + i; }
		     return s;
		 }`,
		`func g() -> int { return f(); } func f() -> int { return 0; }`,
		`func f() -> void { for { break; } }`,
		`func f(c int) -> int { if (c && c < 10) { return 1; } return 0; }`,
		`func f(a [2][3]int) -> int { return a[1][2]; }`,
	} {
		require.Empty(t, check(t, src), "source: %s", src)
	}
}

func TestCheck_Invalid(t *testing.T) {
	for _, tc := range []struct {
		src string
		msg string
	}{
		{`func f() -> int { return x; }`, "undefined variable"},
		{`func f() -> int { x = 1; return 0; }`, "undeclared variable"},
		{`func f() -> int { let x int = 1; let x int = 2; return x; }`, "redeclaration"},
		{`func f(a int) -> int { if (a) { let a int = 1; } return a; }`, "redeclaration"},
		{`func f() -> int { break; }`, "break outside"},
		{`func f() -> int { continue; }`, "continue outside"},
		{`func f() -> void { return 1; }`, "void function"},
		{`func f() -> int { return; }`, "must return a value"},
		{`func f(c int) -> int { if (c) { return 1; } }`, "missing return"},
		{`func f() -> int { let a [4]int = {}; return a; }`, "expected an int"},
		{`func f() -> int { let a [4]int = {}; return a[0][1]; }`, "indices"},
		{`func f() -> int { let a [4][4]int = {}; return a[0]; }`, "indices"},
		{`func f() -> int { let x int = {}; return x; }`, "array initializer"},
		{`func f() -> int { let a [4]int = {}; a = 1; return 0; }`, "as a whole"},
		{`func f() -> int { return g(); }`, "undefined function"},
		{`func g(a int) -> int { return a; } func f() -> int { return g(); }`, "arguments"},
		{`func g() -> void {} func f() -> int { return g(); }`, "used as a value"},
		{`func f() -> int { return 0; } func f() -> int { return 1; }`, "redeclared"},
		{`func f() -> int { let x int = 1; return x(); }`, "undefined function"},
	} {
		errs := check(t, tc.src)
		require.NotEmpty(t, errs, "source: %s", tc.src)
		found := false
		for _, e := range errs {
			if e != nil && strings.Contains(e.Error(), tc.msg) {
				found = true
				break
			}
		}
		require.True(t, found, "want %q in %v", tc.msg, errs)
	}
}

func TestCheck_ErrorsCarryPositions(t *testing.T) {
	errs := check(t, "func f() -> int {\n    return x;\n}")
	require.Len(t, errs, 1)
	require.Equal(t, 2, errs[0].Pos.Line)
}
