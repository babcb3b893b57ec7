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
    `testing`

    `github.com/stretchr/testify/require`
)

var dceOnly = Options {
    NoSCCP    : true,
    NoLICM    : true,
    NoCleanup : true,
}

func TestDCE_RemovesDeadArithmetic(t *testing.T) {
    cfg := compileOne(t, `
func f(a int) -> int {
    let unused int = a * 31;
    let x int = a + 1;
    return x;
}`, dceOnly)
    require.NoError(t, cfg.Verify())

    /* the multiplication feeds nothing */
    require.Zero(t, countIns(cfg, func(v IrNode) bool {
        p, ok := v.(*IrBinaryExpr)
        return ok && p.Op == IrOpMul
    }))
    require.Equal(t, 1, countIns(cfg, func(v IrNode) bool {
        p, ok := v.(*IrBinaryExpr)
        return ok && p.Op == IrOpAdd
    }))
}

func TestDCE_KeepsStores(t *testing.T) {
    cfg := compileOne(t, `
func f() -> int {
    let a [4]int = {};
    a[0] = 42;
    return 7;
}`, dceOnly)
    require.NoError(t, cfg.Verify())

    /* the store is observable even though nothing reads it back */
    require.Equal(t, 1, countIns(cfg, func(v IrNode) bool {
        _, ok := v.(*IrStore)
        return ok
    }))
    require.Equal(t, 1, countIns(cfg, func(v IrNode) bool {
        _, ok := v.(*IrAlloca)
        return ok
    }))
}

func TestDCE_KeepsCalls(t *testing.T) {
    cfg := compileAll(t, `
func g() -> int { return 1; }
func f() -> int {
    g();
    let x int = g();
    return 0;
}`, dceOnly)[1]
    require.NoError(t, cfg.Verify())

    /* both calls stay: an unused result does not make a call dead */
    require.Equal(t, 2, countIns(cfg, func(v IrNode) bool {
        _, ok := v.(*IrCall)
        return ok
    }))
}

func TestDCE_RemovesOrphanedPhis(t *testing.T) {
    cfg := compileOne(t, `
func f(c int) -> int {
    let x int = 0;
    if (c) { x = 1; } else { x = 2; }
    return 5;
}`, dceOnly)
    require.NoError(t, cfg.Verify())

    /* x is never read, so neither the phi nor its feeding consts stay */
    require.Zero(t, countPhis(cfg))
    require.Zero(t, countIns(cfg, func(v IrNode) bool {
        p, ok := v.(*IrConstInt)
        return ok && (p.V == 1 || p.V == 2)
    }))
}

func TestDCE_Idempotent(t *testing.T) {
    srcs := []string {
        _LoopAccum,
        `func f(a int) -> int { let unused int = a * 31; return a; }`,
        `func f() -> int { let a [4]int = {}; a[0] = 42; return a[0]; }`,
    }
    for _, src := range srcs {
        cfg := compileOne(t, src, dceOnly)
        before := cfg.FormatIR()
        new(DCE).Apply(cfg)
        require.Equal(t, before, cfg.FormatIR(), "src: %s", src)
    }
}
