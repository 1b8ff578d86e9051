// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text summary for terminal display
//   - JSONWriter: The raw records as JSON for tool integration
//   - MarkdownWriter: Tables for sharing mapping and validation results
//
// Design decision: We separate report writing from report data structures
// (which are in the model and validate packages) to follow the single
// responsibility principle. This allows adding new output formats without
// modifying the core data structures.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
