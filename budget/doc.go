// Package budget implements deterministic token-budget selection.
//
// Two policies are provided, both order-preserving with no backtracking:
//
//   - HeadFit for ranked candidates (highest relevance first): selection is
//     always a prefix of the input up to the first candidate that overflows.
//   - TailFit for conversational history (most recent most important):
//     selection is always a chronologically ordered suffix of the input.
//
// Memory selection and history selection are invoked with independently
// computed budgets (see compose), so they never compete for the same tokens
// within one pass.
package budget
