// Package types defines the document and follow-up entities, the storage and
// authentication interfaces, and the standard errors shared by the
// seguimientos storage layer, service, and HTTP surface.
package types
