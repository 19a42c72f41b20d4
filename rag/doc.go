// Package rag stores session summaries as vectors and retrieves the
// ones relevant to a new message, filtered by owner and project scope.
package rag
