// Package prompts contains the prompt templates Tendo sends to the
// completion engine.
//
// Prompt text is Go code rather than config files because it is program
// logic: it benefits from compile-time embedding and can be validated by
// tests. User-facing configuration lives in config.yaml; this package
// holds the instructions we send to models.
package prompts
