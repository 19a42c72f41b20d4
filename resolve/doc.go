// Package resolve turns user-supplied project references (ids, names,
// visually confusable spellings) into owned project records.
package resolve
