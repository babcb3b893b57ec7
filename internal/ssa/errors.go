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
    `log`
)

// IRError reports malformed IR: a pass produced or observed a graph that
// violates the structural invariants. It is always fatal; passes panic
// with it and Compile converts the panic into an error.
type IRError struct {
    Block  int
    Ins    string
    Reason string
}

func (self *IRError) Error() string {
    switch {
        case self.Ins != "" : return fmt.Sprintf("ir error at b%d (%s): %s", self.Block, self.Ins, self.Reason)
        case self.Block > 0 : return fmt.Sprintf("ir error at b%d: %s", self.Block, self.Reason)
        default             : return "ir error: " + self.Reason
    }
}

// warnf reports a non-fatal condition (e.g. SCCP refusing to fold a
// division by a constant zero). Warnings never block the pipeline.
func warnf(format string, args ...interface{}) {
    log.Printf("warning: "+format, args...)
}
