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

// Command sablec compiles a Sable source file into optimized SSA IR and
// prints it as text or as a Graphviz rendering of the CFG.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/sable-lang/sable/internal/lexer"
	"github.com/sable-lang/sable/internal/parser"
	"github.com/sable-lang/sable/internal/sema"
	"github.com/sable-lang/sable/internal/ssa"
)

func main() {
	var (
		input      = flag.String("input", "input.txt", "path to the source program to compile")
		dumpIR     = flag.String("dump-ir", "", "write the IR to PATH after all passes run")
		dumpDot    = flag.String("dump-cfg-dot", "", "write the CFG to PATH in Graphviz format (default stdout)")
		dumpAST    = flag.Bool("dump-ast", false, "dump the checked AST to stderr")
		noSSA      = flag.Bool("disable-ssa", false, "disable phi-node placement (implies disabling all SSA passes)")
		noSCCP     = flag.Bool("disable-sccp", false, "skip sparse conditional constant propagation")
		noLICM     = flag.Bool("disable-licm", false, "skip loop invariant code motion")
		noDCE      = flag.Bool("disable-dce", false, "skip dead code elimination")
		noCleanup  = flag.Bool("disable-block-cleanup", false, "skip the basic block cleanup pass")
		noIdomTree = flag.Bool("disable-idom-tree", false, "omit the dominator tree overlay from the CFG dump")
		noDF       = flag.Bool("disable-df", false, "omit the dominance frontier overlay from the CFG dump")
	)
	flag.Parse()

	src, err := os.ReadFile(*input)
	if err != nil {
		fail("io error: %v", err)
	}

	prog, err := parser.New(lexer.New(string(src))).Parse()
	if err != nil {
		fail("%v", err)
	}

	info, errs := sema.Check(prog)
	if len(errs) != 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		os.Exit(1)
	}

	if *dumpAST {
		spew.Fdump(os.Stderr, prog)
	}

	cfgs, err := ssa.CompileProgram(prog, info, ssa.Options{
		NoSSA:     *noSSA,
		NoSCCP:    *noSCCP,
		NoLICM:    *noLICM,
		NoDCE:     *noDCE,
		NoCleanup: *noCleanup,
	})
	if err != nil {
		fail("%v", err)
	}

	/* textual IR dump takes precedence over the CFG rendering */
	if *dumpIR != "" {
		var sb strings.Builder
		for _, cfg := range cfgs {
			sb.WriteString(cfg.FormatIR())
			sb.WriteByte('\n')
		}
		if err := os.WriteFile(*dumpIR, []byte(sb.String()), 0644); err != nil {
			fail("io error: %v", err)
		}
		fmt.Print(sb.String())
		if *dumpDot == "" {
			return
		}
	}

	var sb strings.Builder
	for _, cfg := range cfgs {
		buf, err := cfg.DumpDOT(!*noIdomTree, !*noDF)
		if err != nil {
			fail("internal error: %v", err)
		}
		sb.Write(buf)
		sb.WriteByte('\n')
	}
	if *dumpDot != "" {
		if err := os.WriteFile(*dumpDot, []byte(sb.String()), 0644); err != nil {
			fail("io error: %v", err)
		}
	} else {
		fmt.Print(sb.String())
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
