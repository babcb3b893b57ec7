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
    `strings`
    `testing`

    `github.com/stretchr/testify/require`
)

func TestCompile_ConstantFunction(t *testing.T) {
    cfg := compileOne(t, `func f() -> int { let x int = 2 + 3; return x; }`, Options{})
    require.NoError(t, cfg.Verify())

    /* one block: the constant and its return */
    blocks := cfg.Blocks()
    require.Len(t, blocks, 1)
    require.Len(t, blocks[0].Ins, 1)

    c, ok := blocks[0].Ins[0].(*IrConstInt)
    require.True(t, ok)
    require.Equal(t, int64(5), c.V)

    r, ok := blocks[0].Term.(*IrReturn)
    require.True(t, ok)
    require.Equal(t, c.R, r.R[0])
}

func TestCompile_DeadBranchFoldsToSecondReturn(t *testing.T) {
    cfg := compileOne(t, `func f(c int) -> int { if (0) { return 1; } else { return 2; } }`, Options{})
    require.NoError(t, cfg.Verify())

    blocks := cfg.Blocks()
    require.Len(t, blocks, 1)

    c, ok := blocks[0].Ins[len(blocks[0].Ins)-1].(*IrConstInt)
    require.True(t, ok)
    require.Equal(t, int64(2), c.V)

    r, ok := blocks[0].Term.(*IrReturn)
    require.True(t, ok)
    require.Equal(t, c.R, r.R[0])
}

func TestCompile_ArrayRoundTrip(t *testing.T) {
    cfg := compileOne(t, `
func f() -> int {
    let arr [4]int = {};
    arr[0] = 42;
    return arr[0];
}`, Options{})
    require.NoError(t, cfg.Verify())

    /* the store is essential: alloca, store, load and return survive */
    ir := cfg.FormatIR()
    require.Contains(t, ir, "alloca [4]int")
    require.Contains(t, ir, "store(")
    require.Contains(t, ir, "load ")
    require.Contains(t, ir, "return %")
}

func TestCompile_LoopKeepsAccumulator(t *testing.T) {
    cfg := compileOne(t, _LoopAccum, Options{})
    require.NoError(t, cfg.Verify())

    /* the loop is alive, x + a still inside it */
    hdrs := loopHeaders(cfg)
    require.NotEmpty(t, hdrs)
    inloop := loopBlockSet(cfg)
    found := false
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        for _, v := range bb.Ins {
            if p, ok := v.(*IrBinaryExpr); ok && p.Op == IrOpAdd && inloop[bb.Id] {
                found = true
            }
        }
    })
    require.True(t, found)
}

func TestCompile_InvariantProductLeavesLoop(t *testing.T) {
    cfg := compileOne(t, `
func f(a int, b int) -> int {
    let k int = 7;
    let s int = 0;
    for (let i int = 0; i < b; i = i + 1) {
        s = s + a * k;
    }
    return s;
}`, Options{})
    require.NoError(t, cfg.Verify())

    /* a is unknown, so the product stays a multiplication, but outside
     * the loop */
    inloop := loopBlockSet(cfg)
    muls := 0
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        for _, v := range bb.Ins {
            if p, ok := v.(*IrBinaryExpr); ok && p.Op == IrOpMul {
                muls++
                require.False(t, inloop[bb.Id])
            }
        }
    })
    require.Equal(t, 1, muls)
}

func TestCompile_BreakPhiSurvivesPipeline(t *testing.T) {
    cfg := compileOne(t, `
func f(n int) -> int {
    let s int = 0;
    for (let i int = 0; i < n; i = i + 1) {
        if (i == 5) { s = 100; break; }
        s = s + 1;
    }
    return s;
}`, Options{})
    require.NoError(t, cfg.Verify())

    /* the break edge carries a different value of s than the normal
     * loop exit, so the merge phi must survive every pass */
    ret := returnBlock(t, cfg)
    require.Len(t, ret.Pred, 2)
    require.NotEmpty(t, ret.Phi)

    /* and it is exactly what the return reads */
    r := ret.Term.(*IrReturn)
    found := false
    for _, p := range ret.Phi {
        if p.R == r.R[0] {
            found = true
        }
    }
    require.True(t, found)
}

func TestCompile_EquivalentShapeWithoutOptimizations(t *testing.T) {
    srcs := []string {
        _LoopAccum,
        `func f() -> int { let x int = 2 + 3; return x; }`,
        `func f() -> int { let a [4]int = {}; a[0] = 42; return a[0]; }`,
        `func f(a int, b int) -> int { if (a && b) { return 1; } return 0; }`,
    }
    for _, src := range srcs {
        full := compileOne(t, src, Options{})
        bare := compileOne(t, src, ssaOnly)
        require.NoError(t, full.Verify(), "src: %s", src)
        require.NoError(t, bare.Verify(), "src: %s", src)

        /* optimization may only shrink the program */
        countAll := func(cfg *CFG) int {
            n := countPhis(cfg)
            cfg.ReversePostOrder(func(bb *BasicBlock) {
                n += len(bb.Ins) + 1
            })
            return n
        }
        require.LessOrEqual(t, countAll(full), countAll(bare), "src: %s", src)

        /* stores and calls are behavior: their counts must agree */
        impure := func(cfg *CFG) int {
            return countIns(cfg, func(v IrNode) bool {
                _, ok := v.(IrImpure)
                return ok
            })
        }
        require.Equal(t, impure(bare), impure(full), "src: %s", src)
    }
}

func TestFormatIR_Layout(t *testing.T) {
    cfg := compileOne(t, `func f(a int, b [4]int) -> int { return a; }`, Options{})
    ir := cfg.FormatIR()
    require.True(t, strings.HasPrefix(ir, "func f(a int, b [4]int) -> int\n"))
    require.Contains(t, ir, "b0:\n")
    require.Contains(t, ir, "load.arg(#0)")
    require.Regexp(t, `%\d+ = `, ir)
}

func TestFormatIR_PhisPrintFirst(t *testing.T) {
    cfg := compileOne(t, _LoopAccum, ssaOnly)
    ir := cfg.FormatIR()
    require.Contains(t, ir, "φ(")

    /* inside each block, phi lines come before everything else */
    var sawIns bool
    for _, ln := range strings.Split(ir, "\n") {
        switch {
            case strings.HasSuffix(ln, ":") : sawIns = false
            case strings.Contains(ln, "φ(") : require.False(t, sawIns, "phi after a regular instruction")
            case strings.TrimSpace(ln) != "": sawIns = true
        }
    }
}

func TestDumpDOT_Shape(t *testing.T) {
    cfg := compileOne(t, `func f(c int) -> int { if (c) { return 1; } return 2; }`, ssaOnly)
    buf, err := cfg.DumpDOT(false, false)
    require.NoError(t, err)

    dot := string(buf)
    require.Contains(t, dot, "digraph f")
    require.Contains(t, dot, "b0")
    require.Contains(t, dot, `label=T`)
    require.Contains(t, dot, `label=F`)
    require.Contains(t, dot, "branch")
}

func TestDumpDOT_Overlays(t *testing.T) {
    cfg := compileOne(t, `func f(c int) -> int { if (c) { return 1; } return 2; }`, ssaOnly)

    plain, err := cfg.DumpDOT(false, false)
    require.NoError(t, err)
    full, err := cfg.DumpDOT(true, true)
    require.NoError(t, err)

    require.NotContains(t, string(plain), "blue")
    require.Contains(t, string(full), "blue")
    require.Greater(t, len(full), len(plain))
}

func TestCompile_VoidFunction(t *testing.T) {
    cfg := compileAll(t, `
func g(x int) -> void {}
func f() -> void { g(1); }`, Options{})[1]
    require.NoError(t, cfg.Verify())

    /* the call stays, the function returns nothing */
    require.Equal(t, 1, countIns(cfg, func(v IrNode) bool {
        p, ok := v.(*IrCall)
        return ok && p.Void
    }))
    r, ok := cfg.Root.Term.(*IrReturn)
    if !ok {
        cfg.ReversePostOrder(func(bb *BasicBlock) {
            if rr, isret := bb.Term.(*IrReturn); isret {
                r, ok = rr, true
            }
        })
    }
    require.True(t, ok)
    require.Empty(t, r.R)
}
