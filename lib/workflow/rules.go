// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import "fmt"

// Rule is a business predicate evaluated before a transition is
// accepted. It sees the instance as it stands plus the command's
// pending context updates and reason, and returns a non-nil error to
// veto the transition. Rules must not mutate the instance.
type Rule func(inst Instance, updates map[string]string, reason string) error

// Built-in rule names. Definitions reference rules by name so that a
// definition stays serializable; the engine resolves names at
// evaluation time.
const (
	RuleReasonRequired  = "reason_required"
	RuleContextComplete = "context_complete"
)

func builtinRules() map[string]Rule {
	return map[string]Rule{
		// A transition that records an adverse outcome must say why.
		RuleReasonRequired: func(_ Instance, _ map[string]string, reason string) error {
			if reason == "" {
				return fmt.Errorf("a reason is required")
			}
			return nil
		},
		// Every context update must carry a value.
		RuleContextComplete: func(_ Instance, updates map[string]string, _ string) error {
			for k, v := range updates {
				if v == "" {
					return fmt.Errorf("context key %q has no value", k)
				}
			}
			return nil
		},
	}
}
