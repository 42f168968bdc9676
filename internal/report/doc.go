// Package report renders pipeline runs and release decisions for humans
// and tooling. Writers share one interface with JSON, Markdown, and plain
// text implementations.
package report
