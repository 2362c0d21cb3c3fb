// Package rembg wraps the rembg background-removal tool behind a small
// client interface.
//
// Two implementations exist: CLI pipes images through the rembg command-line
// tool, and Server posts them to a running "rembg s" HTTP endpoint. Both
// return a Result that is either raw encoded bytes or a decoded image,
// depending on how the backend responded; callers normalize through
// Result.Image exactly once at the boundary.
package rembg
