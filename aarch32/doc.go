// Package aarch32 implements a macro assembler for the AArch32 instruction
// set, covering both the fixed-width A32 encoding and the variable 16/32-bit
// T32 encoding.
//
// The assembler emits instructions and pooled constants into a single linear
// buffer. Branch targets and literals are frequently forward references whose
// final position is unknown at emission time, yet must stay inside the
// hardware-limited addressable window of the instructions that use them. The
// macro layer tracks these obligations as checkpoints, flushes literal and
// veneer pools before any obligation becomes unreachable, and synthesizes the
// extra instructions (branch-around veneers, IT prefixes) needed to keep the
// generated code correct without the caller reasoning about reachability.
package aarch32
