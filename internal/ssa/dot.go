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
    `html`
    `strings`

    `gonum.org/v1/gonum/graph`
    `gonum.org/v1/gonum/graph/encoding`
    `gonum.org/v1/gonum/graph/encoding/dot`
    `gonum.org/v1/gonum/graph/multi`
)

type _DotBlock struct {
    bb *BasicBlock
}

func (self *_DotBlock) ID() int64 {
    return int64(self.bb.Id)
}

func (self *_DotBlock) DOTID() string {
    return fmt.Sprintf("b%d", self.bb.Id)
}

func (self *_DotBlock) Attributes() []encoding.Attribute {
    var buf []string
    buf = append(buf, `<table border="0" cellborder="0" cellspacing="0">`)
    buf = append(buf, fmt.Sprintf(`<tr><td align="center"><b>b%d</b></td></tr>`, self.bb.Id))
    buf = append(buf, "<hr/>")
    for _, ln := range blockLines(self.bb) {
        for _, ss := range strings.Split(ln, "\n") {
            vv := strings.ReplaceAll(html.EscapeString(ss), " ", "&nbsp;")
            buf = append(buf, fmt.Sprintf(`<tr><td align="left">%s</td></tr>`, vv))
        }
    }
    buf = append(buf, "</table>")
    return []encoding.Attribute {
        { Key: "shape", Value: "plaintext" },
        { Key: "label", Value: "<" + strings.Join(buf, "") + ">" },
    }
}

type _DotLine struct {
    multi.Line
    attrs []encoding.Attribute
}

func (self _DotLine) Attributes() []encoding.Attribute {
    return self.attrs
}

// DumpDOT renders the CFG as a Graphviz digraph: one node per block
// labeled with its IR lines, "T"/"F" labels on conditional edges. The
// dominator tree and the dominance frontier can be overlaid as colored
// extra edges.
func (self *CFG) DumpDOT(withDom bool, withDF bool) ([]byte, error) {
    g := multi.NewDirectedGraph()
    nodes := make(map[int]*_DotBlock)

    /* one node per reachable block */
    blocks := self.Blocks()
    for _, bb := range blocks {
        n := &_DotBlock { bb: bb }
        nodes[bb.Id] = n
        g.AddNode(n)
    }

    addline := func(from *BasicBlock, to *BasicBlock, attrs ...encoding.Attribute) {
        ln := g.NewLine(nodes[from.Id], nodes[to.Id])
        g.SetLine(_DotLine { Line: ln.(multi.Line), attrs: attrs })
    }

    /* control-flow edges */
    for _, bb := range blocks {
        it := bb.Term.Successors()
        for it.Next() {
            if v, cond := it.Value(); !cond {
                addline(bb, it.Block())
            } else if v != 0 {
                addline(bb, it.Block(), encoding.Attribute { Key: "label", Value: "T" })
            } else {
                addline(bb, it.Block(), encoding.Attribute { Key: "label", Value: "F" })
            }
        }
    }

    /* dominator-tree overlay */
    if withDom {
        for _, bb := range blocks {
            for _, d := range self.DominatorOf[bb.Id] {
                addline(bb, d,
                    encoding.Attribute { Key: "color", Value: "blue" },
                    encoding.Attribute { Key: "style", Value: "dashed" },
                    encoding.Attribute { Key: "constraint", Value: "false" })
            }
        }
    }

    /* dominance-frontier overlay */
    if withDF {
        for _, bb := range blocks {
            for _, d := range self.DominanceFrontier[bb.Id] {
                addline(bb, d,
                    encoding.Attribute { Key: "color", Value: "red" },
                    encoding.Attribute { Key: "style", Value: "dotted" },
                    encoding.Attribute { Key: "constraint", Value: "false" })
            }
        }
    }

    return dot.MarshalMulti(g, self.Func.Name, "", "    ")
}

var _ graph.Node = (*_DotBlock)(nil)
