// Package core defines the shared vocabulary of the document platform:
// field metadata types, permission records, and the error taxonomy used
// across the query compiler and the background-job layer.
package core
