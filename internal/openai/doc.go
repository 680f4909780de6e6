// Package openai is a minimal client for the OpenAI Responses API with
// structured (json_schema) output.
package openai
