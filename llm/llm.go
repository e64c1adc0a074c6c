// Package llm defines the interface to the external text-generation service.
package llm

import "context"

// Client is a minimal interface for making LLM API calls. It takes a system
// instruction plus a single user text and returns the reply text.
//
// An empty reply with a nil error means the service answered but produced no
// usable text. Any error means the call itself failed.
type Client interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ClientFunc adapts a plain function to Client.
type ClientFunc func(ctx context.Context, system, user string) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}
