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

var licmOnly = Options {
    NoSCCP    : true,
    NoDCE     : true,
    NoCleanup : true,
}

// loopBlockSet collects the blocks of every loop in the graph.
func loopBlockSet(cfg *CFG) map[int]bool {
    ret := make(map[int]bool)
    for _, loop := range findLoops(cfg) {
        for id := range loop.blocks {
            ret[id] = true
        }
    }
    return ret
}

func TestLICM_HoistsInvariantProduct(t *testing.T) {
    cfg := compileOne(t, `
func f(a int, b int) -> int {
    let k int = 7;
    let s int = 0;
    for (let i int = 0; i < b; i = i + 1) {
        s = s + a * k;
    }
    return s;
}`, licmOnly)
    require.NoError(t, cfg.Verify())

    /* a * k moved out of the loop */
    inloop := loopBlockSet(cfg)
    muls := 0
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        for _, v := range bb.Ins {
            if p, ok := v.(*IrBinaryExpr); ok && p.Op == IrOpMul {
                muls++
                require.False(t, inloop[bb.Id], "a * k still inside the loop")
            }
        }
    })
    require.Equal(t, 1, muls)
}

func TestLICM_DoesNotHoistVaryingValues(t *testing.T) {
    cfg := compileOne(t, _LoopAccum, licmOnly)
    require.NoError(t, cfg.Verify())

    /* x + a depends on the phi of x: it must stay in the loop */
    inloop := loopBlockSet(cfg)
    adds := 0
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        for _, v := range bb.Ins {
            if p, ok := v.(*IrBinaryExpr); ok && p.Op == IrOpAdd {
                adds++
                require.True(t, inloop[bb.Id], "varying addition was hoisted")
            }
        }
    })
    require.Equal(t, 2, adds) // x + a and i + 1
}

func TestLICM_DoesNotHoistImpureOps(t *testing.T) {
    cfg := compileAll(t, `
func g() -> int { return 1; }
func f(n int) -> int {
    let a [4]int = {};
    let s int = 0;
    for (let i int = 0; i < n; i = i + 1) {
        a[0] = g();
        s = s + a[0];
    }
    return s;
}`, licmOnly)[1]
    require.NoError(t, cfg.Verify())

    /* calls, loads and stores never move */
    inloop := loopBlockSet(cfg)
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        for _, v := range bb.Ins {
            switch v.(type) {
                case *IrCall, *IrLoad, *IrStore: {
                    require.True(t, inloop[bb.Id], "impure op outside the loop: %s", v)
                }
            }
        }
    })
}

func TestLICM_DivisionStaysInConditionalBlock(t *testing.T) {
    /* a / b would trap if b is zero, and the division only runs when the
     * guard holds; it must not be speculated into the preheader */
    cfg := compileOne(t, `
func f(a int, b int, n int) -> int {
    let s int = 0;
    for (let i int = 0; i < n; i = i + 1) {
        if (b != 0) { s = s + a / b; }
    }
    return s;
}`, licmOnly)
    require.NoError(t, cfg.Verify())

    inloop := loopBlockSet(cfg)
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        for _, v := range bb.Ins {
            if p, ok := v.(*IrBinaryExpr); ok && p.Op == IrOpDiv {
                require.True(t, inloop[bb.Id], "division was speculated out of the loop")
            }
        }
    })
}

func TestLICM_NestedLoopsHoistOutward(t *testing.T) {
    cfg := compileOne(t, `
func f(a int, n int) -> int {
    let s int = 0;
    for (let i int = 0; i < n; i = i + 1) {
        for (let j int = 0; j < n; j = j + 1) {
            s = s + a * a;
        }
    }
    return s;
}`, licmOnly)
    require.NoError(t, cfg.Verify())

    /* a * a is invariant in both loops, so it leaves even the outer one */
    inloop := loopBlockSet(cfg)
    cfg.ReversePostOrder(func(bb *BasicBlock) {
        for _, v := range bb.Ins {
            if p, ok := v.(*IrBinaryExpr); ok && p.Op == IrOpMul {
                require.False(t, inloop[bb.Id], "a * a still inside a loop")
            }
        }
    })
}

func TestLICM_PreheaderFlowsOnlyIntoHeader(t *testing.T) {
    cfg := compileOne(t, _LoopAccum, licmOnly)
    for _, loop := range findLoops(cfg) {
        ph := loop.preheader()
        require.NotNil(t, ph)
        require.True(t, cfg.Dominates(ph, loop.header))
        _, jump := ph.Term.(*IrJump)
        require.True(t, jump)
    }
}
