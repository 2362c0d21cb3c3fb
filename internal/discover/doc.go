// Package discover enumerates source images and derives their output
// locations.
//
// Discovery walks the input root (optionally recursively), keeps regular
// files with a supported image extension, and returns them sorted so batch
// runs are reproducible and diffable. Destination resolution supports two
// modes: mirror, which replicates the source's relative layout under the
// output root, and flatten, which drops every output directly into the
// output root. Both force the output extension to .png.
package discover
