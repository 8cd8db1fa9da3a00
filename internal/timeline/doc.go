// Package timeline places synchronized segments on the output timeline.
//
// Assembly is strictly sequential in segment index order: each freeze
// extension lengthens the output, so every later segment lands that much
// later than its position in the source. The Drift accumulator carries that
// offset and the Assembler is its only writer.
//
// Clips are always cut from the source at the segment's original
// [start, end]; drift only changes where a clip is placed in the output.
package timeline
