package truth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bhiv/vault/internal/firewall"
	"github.com/bhiv/vault/pkg/vault"
)

// ValidationError reports a malformed submission, before any rule or policy
// is consulted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s %s", e.Field, e.Reason)
}

// IsValidation returns true if the error is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// FirewallRejectedError means the candidate scored past the rejection
// threshold and was refused storage. The rejection itself is recorded as an
// audit artifact; the candidate payload is not.
type FirewallRejectedError struct {
	Result firewall.Result
}

func (e *FirewallRejectedError) Error() string {
	return fmt.Sprintf("submission rejected by firewall: %s", e.Result.Reason)
}

// IsFirewallRejected returns true if the error is a FirewallRejectedError.
func IsFirewallRejected(err error) bool {
	var r *FirewallRejectedError
	return errors.As(err, &r)
}

// FirewallQuarantinedError means the candidate was stored but flagged: it is
// hidden from default reads and only a read_quarantined-authorized principal
// can retrieve it. The stored artifact rides along on the error.
type FirewallQuarantinedError struct {
	Artifact *vault.Artifact
	Result   firewall.Result
}

func (e *FirewallQuarantinedError) Error() string {
	return fmt.Sprintf("submission quarantined (rules: %s)", strings.Join(e.Result.Matched, ", "))
}

// IsFirewallQuarantined returns true if the error is a
// FirewallQuarantinedError.
func IsFirewallQuarantined(err error) bool {
	var q *FirewallQuarantinedError
	return errors.As(err, &q)
}
