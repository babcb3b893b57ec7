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

type Pass interface {
    Apply(*CFG)
}

// Options selects which parts of the pipeline run. Passes that rely on
// SSA form are implied off when SSA construction is disabled.
type Options struct {
    NoSSA     bool
    NoSCCP    bool
    NoLICM    bool
    NoDCE     bool
    NoCleanup bool
}

type _PassDescriptor struct {
    pass Pass
    desc string
    skip func(Options) bool
}

var _passes = [...]_PassDescriptor {
    { desc: "Sparse Conditional Constant Propagation", pass: new(SCCP)         , skip: func(o Options) bool { return o.NoSCCP } },
    { desc: "Loop Invariant Code Motion"             , pass: new(LICM)         , skip: func(o Options) bool { return o.NoLICM } },
    { desc: "Dead Code Elimination"                  , pass: new(DCE)          , skip: func(o Options) bool { return o.NoDCE } },
    { desc: "Basic Block Cleanup"                    , pass: new(BlockCleanup) , skip: func(o Options) bool { return o.NoCleanup } },
}

// Compile lowers one checked function into a CFG, constructs SSA form,
// and runs the optimization pipeline over it. Internal invariant
// violations are reported as *IRError.
func Compile(fn *ast.FuncDecl, info *sema.Info, opts Options) (cfg *CFG, err error) {
    defer func() {
        if v := recover(); v != nil {
            if e, ok := v.(*IRError); ok {
                cfg, err = nil, e
            } else {
                panic(v)
            }
        }
    }()

    /* lower to a CFG; with SSA disabled, this is the final form */
    cfg = BuildCFG(fn, info)
    if opts.NoSSA {
        return cfg, nil
    }

    /* SSA construction */
    insertPhiNodes(cfg)
    renameRegisters(cfg)

    /* the optimization pipeline */
    for _, p := range _passes {
        if !p.skip(opts) {
            p.pass.Apply(cfg)
        }
    }
    return cfg, nil
}

// CompileProgram compiles every function of a checked program, in
// declaration order.
func CompileProgram(prog *ast.Program, info *sema.Info, opts Options) ([]*CFG, error) {
    ret := make([]*CFG, 0, len(prog.Funcs))
    for _, fn := range prog.Funcs {
        cfg, err := Compile(fn, info, opts)
        if err != nil {
            return nil, fmt.Errorf("%s: %w", fn.Name, err)
        }
        ret = append(ret, cfg)
    }
    return ret, nil
}
