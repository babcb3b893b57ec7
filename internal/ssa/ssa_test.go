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

    `github.com/sable-lang/sable/internal/lexer`
    `github.com/sable-lang/sable/internal/parser`
    `github.com/sable-lang/sable/internal/sema`
    `github.com/stretchr/testify/require`
)

// ssaOnly constructs SSA but runs no optimization passes.
var ssaOnly = Options {
    NoSCCP    : true,
    NoLICM    : true,
    NoDCE     : true,
    NoCleanup : true,
}

func compileAll(t *testing.T, src string, opts Options) []*CFG {
    prog, err := parser.New(lexer.New(src)).Parse()
    require.NoError(t, err)
    info, errs := sema.Check(prog)
    require.Empty(t, errs)
    cfgs, err := CompileProgram(prog, info, opts)
    require.NoError(t, err)
    return cfgs
}

func compileOne(t *testing.T, src string, opts Options) *CFG {
    cfgs := compileAll(t, src, opts)
    require.Len(t, cfgs, 1)
    return cfgs[0]
}

func countIns(cfg *CFG, pred func(IrNode) bool) int {
    n := 0
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        for _, v := range bb.Ins {
            if pred(v) {
                n++
            }
        }
    })
    return n
}

func countPhis(cfg *CFG) int {
    n := 0
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        n += len(bb.Phi)
    })
    return n
}

func countBlocks(cfg *CFG) int {
    return len(cfg.Blocks())
}

// loopHeaders returns the blocks targeted by a back-edge.
func loopHeaders(cfg *CFG) []*BasicBlock {
    var ret []*BasicBlock
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        it := bb.Term.Successors()
        for it.Next() {
            if hdr := it.Block(); cfg.Dominates(hdr, bb) && !blockin(ret, hdr) {
                ret = append(ret, hdr)
            }
        }
    })
    return ret
}

func returnBlock(t *testing.T, cfg *CFG) *BasicBlock {
    var ret *BasicBlock
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        if r, ok := bb.Term.(*IrReturn); ok && len(r.R) != 0 {
            require.Nil(t, ret, "multiple value-returning blocks")
            ret = bb
        }
    })
    require.NotNil(t, ret)
    return ret
}

const _LoopAccum = `
func f(a int) -> int {
    let x int = 0;
    for (let i int = 0; i < 10; i = i + 1) {
        x = x + a;
    }
    return x;
}`

func TestSSA_PhiInLoopHeader(t *testing.T) {
    cfg := compileOne(t, _LoopAccum, ssaOnly)
    require.NoError(t, cfg.Verify())

    /* both x and i flow around the back-edge, each needs a phi */
    hdrs := loopHeaders(cfg)
    require.Len(t, hdrs, 1)
    require.Len(t, hdrs[0].Phi, 2)
    require.Len(t, hdrs[0].Pred, 2)
}

func TestSSA_PhiArityMatchesPreds(t *testing.T) {
    cfg := compileOne(t, _LoopAccum, ssaOnly)
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        for _, p := range bb.Phi {
            require.Len(t, p.V, len(bb.Pred))
        }
    })
}

func TestSSA_BreakMergesAtExit(t *testing.T) {
    cfg := compileOne(t, `
func f(n int) -> int {
    let s int = 0;
    for (let i int = 0; i < n; i = i + 1) {
        if (i == 5) { break; }
        s = s + 1;
    }
    return s;
}`, ssaOnly)
    require.NoError(t, cfg.Verify())

    /* the return reads s through a phi that merges the normal loop exit
     * with the break edge */
    ret := returnBlock(t, cfg)
    require.Len(t, ret.Pred, 2)
    require.NotEmpty(t, ret.Phi)
}

func TestSSA_ShortCircuitPhi(t *testing.T) {
    cfg := compileOne(t, `
func f(a int, b int) -> int {
    let x int = a && b;
    return x;
}`, ssaOnly)
    require.NoError(t, cfg.Verify())

    /* the && join holds a phi producing the 0/1 result */
    joins := 0
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        if len(bb.Pred) == 2 && len(bb.Phi) == 1 {
            joins++
        }
    })
    require.Equal(t, 1, joins)

    /* one arm is the constant short-circuit value */
    require.NotZero(t, countIns(cfg, func(v IrNode) bool {
        p, ok := v.(*IrConstInt)
        return ok && p.V == 0
    }))
}

func TestSSA_AllocaStaysSingleDefinition(t *testing.T) {
    cfg := compileOne(t, `
func f(n int) -> int {
    let a [8]int = {};
    for (let i int = 0; i < n; i = i + 1) {
        a[i] = i;
    }
    return a[0];
}`, ssaOnly)
    require.NoError(t, cfg.Verify())

    /* exactly one alloca, and no phi ever carries the array handle */
    allocas := countIns(cfg, func(v IrNode) bool {
        _, ok := v.(*IrAlloca)
        return ok
    })
    require.Equal(t, 1, allocas)

    handles := make(map[Reg]bool)
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        for _, v := range bb.Ins {
            if p, ok := v.(*IrAlloca); ok {
                handles[p.R] = true
            }
        }
    })
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        for _, p := range bb.Phi {
            for _, a := range p.V {
                require.False(t, handles[*a], "array handle flows through a phi")
            }
        }
    })
}

func TestSSA_VerifyAfterEveryPipeline(t *testing.T) {
    srcs := []string {
        _LoopAccum,
        `func f() -> int { let x int = 2 + 3; return x; }`,
        `func f(c int) -> int { if (0) { return 1; } else { return 2; } }`,
        `func f() -> int { let a [4]int = {}; a[0] = 42; return a[0]; }`,
        `func f(a int, b int) -> int { if (a || b < 3) { return a / b; } return b % a; }`,
        `func g(v int) -> void {} func f(n int) -> int {
            let s int = 0;
            for { if (s > n) { break; } s = s + 1; g(s); }
            return s;
        }`,
    }
    modes := []Options {
        {},
        ssaOnly,
        { NoSCCP: true },
        { NoLICM: true },
        { NoDCE: true },
        { NoCleanup: true },
    }
    for _, src := range srcs {
        for _, opts := range modes {
            for _, cfg := range compileAll(t, src, opts) {
                require.NoError(t, cfg.Verify(), "src: %s", src)
            }
        }
    }
}

func TestSSA_DisableSSAKeepsMutableForm(t *testing.T) {
    cfg := compileOne(t, _LoopAccum, Options { NoSSA: true })
    require.Zero(t, countPhis(cfg))
}
