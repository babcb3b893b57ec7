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

func TestCleanup_MergesStraightLineBlocks(t *testing.T) {
    cfg := compileOne(t, `func f() -> int { let x int = 2 + 3; return x; }`, Options{})
    require.NoError(t, cfg.Verify())
    require.Equal(t, 1, countBlocks(cfg))
}

func TestCleanup_DropsUnreachableCode(t *testing.T) {
    cfg := compileOne(t, `
func f() -> int {
    return 1;
    let x int = 2;
    return x;
}`, Options{})
    require.NoError(t, cfg.Verify())
    require.Equal(t, 1, countBlocks(cfg))
    require.Zero(t, countIns(cfg, func(v IrNode) bool {
        p, ok := v.(*IrConstInt)
        return ok && p.V == 2
    }))
}

func TestCleanup_CollapsesConstantDiamond(t *testing.T) {
    /* SCCP removes the else-arm, which trivializes the join phi, which
     * lets the remaining chain merge into one block */
    cfg := compileOne(t, `
func f(c int) -> int {
    let x int = 0;
    if (1) { x = 3; } else { x = c; }
    return x;
}`, Options{})
    require.NoError(t, cfg.Verify())
    require.Equal(t, 1, countBlocks(cfg))
    require.Zero(t, countPhis(cfg))
}

func TestCleanup_KeepsLoops(t *testing.T) {
    cfg := compileOne(t, _LoopAccum, Options{})
    require.NoError(t, cfg.Verify())

    /* the loop must survive the whole pipeline */
    require.NotEmpty(t, loopHeaders(cfg))
    require.NotZero(t, countPhis(cfg))
}

func TestCleanup_PreservesReturnValueChain(t *testing.T) {
    /* cleanup only reshapes blocks; the definitions feeding the return
     * keep their meaning */
    cfg := compileOne(t, `
func f(a int, b int) -> int {
    let x int = a + b;
    if (x > 0) { return x; }
    return -x;
}`, Options{})
    require.NoError(t, cfg.Verify())
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        if r, ok := bb.Term.(*IrReturn); ok {
            require.Len(t, r.R, 1)
        }
    })
    require.Equal(t, 1, countIns(cfg, func(v IrNode) bool {
        p, ok := v.(*IrBinaryExpr)
        return ok && p.Op == IrOpAdd
    }))
}

func TestCleanup_Fixpoint(t *testing.T) {
    srcs := []string {
        _LoopAccum,
        `func f(c int) -> int { if (c) { return 1; } else { return 2; } }`,
        `func f() -> int { let x int = 2 + 3; return x; }`,
    }
    for _, src := range srcs {
        cfg := compileOne(t, src, Options{})
        before := cfg.FormatIR()
        new(BlockCleanup).Apply(cfg)
        require.Equal(t, before, cfg.FormatIR(), "src: %s", src)
    }
}
