package governance

import (
	"errors"
	"fmt"

	"github.com/bhiv/vault/pkg/vault"
)

// AuthorityDeniedError is terminal: the policy table denied the action for
// the requesting authority (or an escalation resolved against it). The
// denial itself is recorded as an audit artifact; it is never auto-retried.
type AuthorityDeniedError struct {
	Decision *vault.Decision
}

func (e *AuthorityDeniedError) Error() string {
	return fmt.Sprintf("authority %s denied action %s: %s",
		e.Decision.Principal.Authority, e.Decision.Action, e.Decision.Rationale)
}

// IsAuthorityDenied returns true if the error is an AuthorityDeniedError.
func IsAuthorityDenied(err error) bool {
	var denied *AuthorityDeniedError
	return errors.As(err, &denied)
}

// EscalationRequiredError is not a failure: the action is pending a ruling
// by a higher authority. The embedded decision is the handle the caller
// polls or resolves.
type EscalationRequiredError struct {
	Decision *vault.Decision
}

func (e *EscalationRequiredError) Error() string {
	return fmt.Sprintf("action %s by %s requires escalation to %s (decision %s)",
		e.Decision.Action, e.Decision.Principal.Authority, e.Decision.AddressedTo, e.Decision.ID)
}

// IsEscalationRequired returns true if the error is an EscalationRequiredError.
func IsEscalationRequired(err error) bool {
	var escalation *EscalationRequiredError
	return errors.As(err, &escalation)
}

// DecisionFor extracts the decision handle from a governance error, if any.
func DecisionFor(err error) (*vault.Decision, bool) {
	var denied *AuthorityDeniedError
	if errors.As(err, &denied) {
		return denied.Decision, true
	}
	var escalation *EscalationRequiredError
	if errors.As(err, &escalation) {
		return escalation.Decision, true
	}
	return nil, false
}
