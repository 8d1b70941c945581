// Package steps provides the stock compilers a site definition can name:
// reading and writing files, front matter, markdown, templates, metadata
// injection, retention filters and precompression.
//
// Every constructor returns a named site.Compiler, so failures report the
// step by the same name the definition uses.
package steps
