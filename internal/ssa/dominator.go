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

/* Iterative dominator analysis: Dom(entry) = {entry}, Dom(b) starts as the
 * set of all blocks, and Dom(b) = {b} ∪ (∩ Dom(p) for p ∈ preds(b)) is
 * iterated to a fixpoint. The immediate dominator of b is the deepest
 * strict dominator; the dominance frontier follows Cooper's two-loop
 * formulation over predecessors. */

package ssa

import (
    `sort`

    `github.com/oleiade/lane`
)

func computeDominators(cfg *CFG) {
    doms := make(map[int]map[int]bool)
    blocks := cfg.Blocks()

    /* all reachable block IDs */
    all := make(map[int]bool, len(blocks))
    for _, bb := range blocks {
        all[bb.Id] = true
    }

    /* initialize the dominator sets */
    for _, bb := range blocks {
        if bb == cfg.Root {
            doms[bb.Id] = map[int]bool { bb.Id: true }
        } else {
            s := make(map[int]bool, len(all))
            for id := range all {
                s[id] = true
            }
            doms[bb.Id] = s
        }
    }

    /* iterate to fixpoint */
    for changed := true; changed; {
        changed = false
        for _, bb := range blocks {
            if bb == cfg.Root {
                continue
            }

            /* intersect the predecessor sets */
            s := (map[int]bool)(nil)
            for _, p := range bb.Pred {
                if s == nil {
                    s = setclone(doms[p.Id])
                } else {
                    setintersect(s, doms[p.Id])
                }
            }

            /* a block always dominates itself */
            if s == nil {
                s = make(map[int]bool)
            }
            s[bb.Id] = true

            /* check for updates */
            if !seteq(s, doms[bb.Id]) {
                doms[bb.Id] = s
                changed = true
            }
        }
    }

    /* derive the immediate dominators: the strict dominator with the
     * largest dominator set of its own is the deepest one */
    idom := make(map[int]*BasicBlock, len(blocks))
    byid := make(map[int]*BasicBlock, len(blocks))
    for _, bb := range blocks {
        byid[bb.Id] = bb
    }
    for _, bb := range blocks {
        if bb == cfg.Root {
            continue
        }
        best, nb := (*BasicBlock)(nil), -1
        for id := range doms[bb.Id] {
            if id != bb.Id && len(doms[id]) > nb {
                best, nb = byid[id], len(doms[id])
            }
        }
        idom[bb.Id] = best
    }

    /* rebuild the tree maps */
    cfg.DominatedBy = idom
    cfg.DominatorOf = make(map[int][]*BasicBlock)
    for _, bb := range blocks {
        if d := idom[bb.Id]; d != nil {
            cfg.DominatorOf[d.Id] = append(cfg.DominatorOf[d.Id], bb)
        }
    }
    for _, v := range cfg.DominatorOf {
        sort.Slice(v, func(i int, j int) bool {
            return v[i].Id < v[j].Id
        })
    }

    /* tree depth, via BFS from the root */
    q := lane.NewQueue()
    cfg.Depth = make(map[int]int, len(blocks))
    for q.Enqueue(cfg.Root); !q.Empty(); {
        p := q.Dequeue().(*BasicBlock)
        for _, v := range cfg.DominatorOf[p.Id] {
            cfg.Depth[v.Id] = cfg.Depth[p.Id] + 1
            q.Enqueue(v)
        }
    }

    /* dominance frontier: walk from every predecessor of a join point up
     * to (but not including) the immediate dominator of the join */
    df := make(map[int]map[int]*BasicBlock)
    for _, bb := range blocks {
        if len(bb.Pred) < 2 {
            continue
        }
        for _, p := range bb.Pred {
            for r := p; r != nil && r != idom[bb.Id]; r = idom[r.Id] {
                if df[r.Id] == nil {
                    df[r.Id] = make(map[int]*BasicBlock)
                }
                df[r.Id][bb.Id] = bb
            }
        }
    }

    /* dump the frontier as sorted lists */
    cfg.DominanceFrontier = make(map[int][]*BasicBlock, len(df))
    for id, m := range df {
        v := make([]*BasicBlock, 0, len(m))
        for _, bb := range m {
            v = append(v, bb)
        }
        sort.Slice(v, func(i int, j int) bool {
            return v[i].Id < v[j].Id
        })
        cfg.DominanceFrontier[id] = v
    }
}

// Dominates reports whether a dominates b (reflexively) under the current
// dominator tree.
func (self *CFG) Dominates(a *BasicBlock, b *BasicBlock) bool {
    for p := b; p != nil; p = self.DominatedBy[p.Id] {
        if p == a {
            return true
        }
    }
    return false
}
