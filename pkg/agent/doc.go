// Package agent abstracts the LLM collaborator: a role-tagged message
// exchange with optional tool advertisement, implemented over the Anthropic
// and OpenAI APIs. The engine treats providers as opaque, possibly slow,
// possibly failing remote calls; no retry policy lives here.
package agent
