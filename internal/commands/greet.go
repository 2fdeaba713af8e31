package commands

import (
	"context"
	"encoding/json"
	"fmt"
)

func Greet(name string) string {
	return fmt.Sprintf("Hello, %s! You've been greeted from Go!", name)
}

type greetArgs struct {
	Name string `json:"name"`
}

func greetHandler(_ context.Context, args json.RawMessage) (any, error) {
	var in greetArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return Greet(in.Name), nil
}

// RegisterDefaults installs the built-in commands.
func RegisterDefaults(r *Registry) error {
	return r.Register("greet", greetHandler)
}
