// Package setup provisions the service account the tunnel runs as.
//
// EnsureUser is idempotent: an existing account is reported and left alone.
// A missing one is created over a root session in this order:
//
//	useradd -m -s /bin/bash <user>
//	copy <admin home>/.ssh/authorized_keys into <home>/.ssh (0700/0600)
//	usermod -aG sudo <user>, falling back to wheel
//	passwd <user> on a TTY bound to the local terminal
//
// Missing admin keys and missing admin groups only produce warnings; the
// account is still usable through the admin session. Every other failure
// aborts with USER_CREATION_FAILED.
//
// The commands are rendered by RenderSteps so they can be checked without a
// remote host. Creation does not prove the account can log in; callers must
// re-probe SSH as the new user.
//
// # Local keys
//
// FindLocalKeys and KeyHint look at ~/.ssh to build the remediation shown
// when SSH authentication fails. This package never generates or uploads
// keys itself.
package setup
