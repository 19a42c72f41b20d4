// Package tokenizer provides pluggable token counting per provider model.
//
// The default implementation is backed by tiktoken encodings with a
// character-based estimator as fallback for unknown models or when the
// encoding data cannot be loaded. All counters return 0 for the empty
// string and are deterministic for a given input.
package tokenizer
