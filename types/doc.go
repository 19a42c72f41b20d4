// Package types provides core types shared across the deskagent engine.
//
// This package has ZERO dependencies on other deskagent packages to avoid
// circular imports. All other packages should import types from here.
//
// It defines:
//
//   - Message / Role: conversation turns exchanged with the provider
//   - TokenUsage: prompt/completion/total token counters
//   - TokenCounter: minimal token counting contract
//   - Error / ErrorCode: structured errors with HTTP status and Retryable flag
//
// Error classification drives the retry layer: only errors whose Retryable
// flag is set are ever retried (see llm/retry).
package types
