// Package extractors turns raw document bytes into plain text for chunking.
// Each subpackage handles one family of MIME types; the Registry in this
// package selects between them by MIME type or file extension.
//
// Extractors are registered with the Registry at startup.
package extractors
