// Package imaging wraps the decode, resize, normalize, and encode primitives
// the pipeline applies around the background-removal backend.
//
// Decoding understands jpeg, png, bmp, tiff, and webp sources. All transform
// output is normalized to NRGBA so alpha compositing downstream sees one
// channel layout, and results are persisted as lossless compressed PNG.
package imaging
