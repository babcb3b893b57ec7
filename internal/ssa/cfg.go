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

type BasicBlock struct {
    Id   int
    Phi  []*IrPhi
    Ins  []IrNode
    Term IrTerminator
    Pred []*BasicBlock
}

func (self *BasicBlock) addInstr(p IrNode) {
    self.Ins = append(self.Ins, p)
}

func (self *BasicBlock) termJump(to *BasicBlock) {
    self.Term = &IrJump { To: to }
}

func (self *BasicBlock) termBranch(v Reg, t *BasicBlock, f *BasicBlock) {
    self.Term = &IrBranch { V: v, Then: t, Else: f }
}

func (self *BasicBlock) termReturn(rr []Reg) {
    self.Term = &IrReturn { R: rr }
}

// FuncArg describes one formal parameter: Dims is nil for scalars and the
// array shape otherwise.
type FuncArg struct {
    Name string
    Dims []int64
}

// FuncInfo is the per-function bookkeeping shared by the builder and the
// passes: the signature for printing, the variable-name table for
// diagnostics, and the id counters backing block and register creation.
type FuncInfo struct {
    Name     string
    Args     []FuncArg
    RetVoid  bool
    VarNames map[int]string

    nblk int
    nvar int
    ntmp int
    nreg int
}

// CFG is the control-flow graph of a single function, together with the
// dominator information derived from it. The derived maps are caches:
// any structural mutation must be followed by Rebuild before they are
// consulted again; Version identifies the shape they were computed for.
type CFG struct {
    Root *BasicBlock
    Func *FuncInfo

    Depth             map[int]int
    DominatedBy       map[int]*BasicBlock
    DominatorOf       map[int][]*BasicBlock
    DominanceFrontier map[int][]*BasicBlock

    version uint64
}

func newCFG(fn *FuncInfo) *CFG {
    return &CFG {
        Func              : fn,
        Depth             : make(map[int]int),
        DominatedBy       : make(map[int]*BasicBlock),
        DominatorOf       : make(map[int][]*BasicBlock),
        DominanceFrontier : make(map[int][]*BasicBlock),
    }
}

func (self *CFG) newBlock() *BasicBlock {
    p := new(BasicBlock)
    p.Id = self.Func.nblk
    self.Func.nblk++
    return p
}

func (self *CFG) newVar(name string) Reg {
    i := self.Func.nvar
    self.Func.nvar++
    self.Func.VarNames[i] = name
    return mkvar(i)
}

func (self *CFG) newTemp() Reg {
    i := self.Func.ntmp
    self.Func.ntmp++
    return mktmp(i)
}

// newReg mints a fresh normalized register; only valid after renaming.
func (self *CFG) newReg() Reg {
    i := self.Func.nreg
    self.Func.nreg++
    return Rz.Normalize(i)
}

// Version is the CFG shape version; it changes on every Rebuild.
func (self *CFG) Version() uint64 {
    return self.version
}

// Blocks lists every reachable block in reverse post-order.
func (self *CFG) Blocks() []*BasicBlock {
    var ret []*BasicBlock
    self.ReversePostOrder(func(bb *BasicBlock) {
        ret = append(ret, bb)
    })
    return ret
}

// ReversePostOrder visits every reachable block, predecessors before
// successors wherever the graph allows. The order is deterministic: the
// DFS follows terminator edge order.
func (self *CFG) ReversePostOrder(action func(bb *BasicBlock)) {
    var ret []*BasicBlock
    vis := make(map[int]bool)

    /* post-order DFS */
    var dfs func(bb *BasicBlock)
    dfs = func(bb *BasicBlock) {
        vis[bb.Id] = true
        it := bb.Term.Successors()
        for it.Next() {
            if p := it.Block(); !vis[p.Id] {
                dfs(p)
            }
        }
        ret = append(ret, bb)
    }

    /* visit in reverse */
    dfs(self.Root)
    blockreverse(ret)
    for _, bb := range ret {
        action(bb)
    }
}

// Rebuild recomputes everything derived from the graph shape: it drops
// unreachable blocks, recomputes predecessor lists, shrinks phi nodes to
// the surviving predecessors, and refreshes the dominator tree and the
// dominance frontier.
func (self *CFG) Rebuild() {
    pred := make(map[int][]*BasicBlock)

    /* collect predecessors of reachable blocks, in visit order */
    self.ReversePostOrder(func(bb *BasicBlock) {
        seen := make(map[int]bool)
        it := bb.Term.Successors()
        for it.Next() {
            if p := it.Block(); !seen[p.Id] {
                seen[p.Id] = true
                pred[p.Id] = append(pred[p.Id], bb)
            }
        }
    })

    /* update the blocks */
    self.ReversePostOrder(func(bb *BasicBlock) {
        bb.Pred = pred[bb.Id]

        /* drop phi entries of removed predecessors */
        for _, phi := range bb.Phi {
            for src := range phi.V {
                if !blockin(bb.Pred, src) {
                    delete(phi.V, src)
                }
            }
        }
    })

    /* refresh the dominator tree and bump the shape version */
    computeDominators(self)
    self.version++
}
