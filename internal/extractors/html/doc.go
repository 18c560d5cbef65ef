// Package html extracts readable text from HTML pages. Boilerplate such as
// navigation and scripts is dropped and the main content is converted to
// Markdown, which keeps headings and lists meaningful for chunking.
package html
