// Package feedback turns a Renovate configuration into structured review
// feedback by asking a language model, retrying once with a larger token
// budget when the model stops early, and degrading to a descriptive fallback
// response whenever the model cannot deliver structured output.
package feedback
