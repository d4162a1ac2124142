package setup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/rileyhilliard/tunnelup/internal/config"
	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/rileyhilliard/tunnelup/internal/exec"
	"github.com/rileyhilliard/tunnelup/internal/logger"
	"github.com/rileyhilliard/tunnelup/internal/util"
)

// AdminGroups are tried in order when granting the service user sudo.
// Debian-family hosts use "sudo", RHEL-family hosts use "wheel".
var AdminGroups = []string{"sudo", "wheel"}

// ServiceUser is the account the tunnel runs as.
type ServiceUser struct {
	Name    string
	Exists  bool
	HomeDir string
}

// Result describes what EnsureUser did.
type Result struct {
	User        ServiceUser
	Created     bool
	KeysCopied  bool
	Group       string
	PasswordSet bool
}

// Root runs commands as root. *exec.Runner implements it.
type Root interface {
	Exec(cmd string) (stdout, stderr []byte, exitCode int, err error)
	ExecTTY(cmd string, stdin io.Reader, stdout, stderr io.Writer) (int, error)
}

// Options controls EnsureUser.
type Options struct {
	// AdminUser owns the authorized_keys copied to the new account.
	AdminUser string
	// NoPassword skips the interactive passwd step.
	NoPassword bool

	// Terminal the passwd prompt is bound to. Defaults to the process's.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Log logger.Logger
}

// Steps are the commands that provision one user, rendered up front so they
// can be inspected without a remote host.
type Steps struct {
	Create   string
	CopyKeys string
	Groups   []string
	Password string
}

// RenderSteps builds the provisioning commands for user, copying keys from
// adminHome into home. The key files get the user's primary group, which
// is not always a group named after the user (USERGROUPS_ENAB no).
func RenderSteps(user, home, adminHome string) Steps {
	q := util.ShellQuote(user)
	sshDir := util.ShellQuote(path.Join(home, ".ssh"))
	src := path.Join(adminHome, ".ssh", "authorized_keys")

	s := Steps{
		Create: "useradd -m -s /bin/bash " + q,
		CopyKeys: fmt.Sprintf("install -d -m 700 %s && install -m 600 %s %s && chown -R %s: %s",
			sshDir, util.ShellQuote(src), util.ShellQuote(path.Join(home, ".ssh", "authorized_keys")), q, sshDir),
		Password: "passwd " + q,
	}
	for _, g := range AdminGroups {
		s.Groups = append(s.Groups, fmt.Sprintf("usermod -aG %s %s", g, q))
	}
	return s
}

// Provisioner adapts EnsureUser to the convergence engine.
type Provisioner struct {
	Root Root
	Opts Options

	// Last holds the result of the most recent EnsureUser call.
	Last Result
}

// EnsureUser implements converge.UserCreator.
func (p *Provisioner) EnsureUser(ctx context.Context, name string) error {
	res, err := EnsureUser(ctx, p.Root, name, p.Opts)
	p.Last = res
	return err
}

// EnsureUser makes sure name exists on the host. An existing account is
// left untouched. A new one gets a home directory, the admin's
// authorized_keys, membership in an admin group and, unless NoPassword is
// set, a password typed by the operator over a TTY session. Missing keys
// and missing admin groups are warnings; every other failure is fatal.
func EnsureUser(ctx context.Context, root Root, name string, opts Options) (Result, error) {
	log := opts.Log
	if log == nil {
		log = logger.Noop()
	}
	if opts.AdminUser == "" {
		opts.AdminUser = "root"
	}
	res := Result{User: ServiceUser{Name: name}}

	if err := config.ValidateUser(name); err != nil {
		return res, err
	}

	_, _, code, err := root.Exec("id -u " + util.ShellQuote(name))
	if err != nil {
		return res, userError(err, name, "checking the account")
	}
	if code == 0 {
		res.User.Exists = true
		res.User.HomeDir, _ = homeDir(root, name)
		log.Debug("user %s already exists", name)
		return res, nil
	}

	adminHome, err := homeDir(root, opts.AdminUser)
	if err != nil {
		log.Warn("can't find the home of %s: %v", opts.AdminUser, err)
	}
	steps := RenderSteps(name, "/home/"+name, adminHome)

	if err := step(ctx, root, steps.Create, name, "Couldn't create user "+name); err != nil {
		return res, err
	}
	res.Created = true
	res.User.Exists = true

	if home, err := homeDir(root, name); err == nil {
		res.User.HomeDir = home
		steps = RenderSteps(name, home, adminHome)
	} else {
		res.User.HomeDir = "/home/" + name
	}

	res.KeysCopied = copyKeys(root, steps, adminHome, opts.AdminUser, log)

	for i, cmd := range steps.Groups {
		if _, _, code, err := root.Exec(cmd); err == nil && code == 0 {
			res.Group = AdminGroups[i]
			break
		}
	}
	if res.Group == "" {
		log.Warn("couldn't add %s to any of %s; sudo will need manual setup", name, util.JoinOrNone(AdminGroups))
	}

	if opts.NoPassword {
		log.Info("skipping password for %s (--no-password)", name)
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return res, userError(err, name, "setting the password")
	}

	stdin, stdout, stderr := terminal(opts)
	code, err = root.ExecTTY(steps.Password, stdin, stdout, stderr)
	if err != nil {
		return res, userError(err, name, "setting the password")
	}
	if code != 0 {
		return res, errors.New(errors.ErrUserCreation,
			fmt.Sprintf("Setting the password for %s failed (exit %d)", name, code),
			fmt.Sprintf("Run `sudo passwd %s` on the host, or re-run with --no-password", name))
	}
	res.PasswordSet = true
	return res, nil
}

func copyKeys(root Root, steps Steps, adminHome, admin string, log logger.Logger) bool {
	if adminHome == "" {
		return false
	}
	src := path.Join(adminHome, ".ssh", "authorized_keys")
	if _, _, code, err := root.Exec("test -f " + util.ShellQuote(src)); err != nil || code != 0 {
		log.Warn("%s has no %s; the new user will need keys set up by hand", admin, src)
		return false
	}
	_, stderr, code, err := root.Exec(steps.CopyKeys)
	if err != nil || code != 0 {
		log.Warn("copying %s failed: %s", src, util.FirstLine(string(stderr)))
		return false
	}
	return true
}

func step(ctx context.Context, root Root, cmd, name, message string) error {
	if err := ctx.Err(); err != nil {
		return userError(err, name, "provisioning")
	}
	_, stderr, code, err := root.Exec(cmd)
	if err != nil {
		return userError(err, name, "provisioning")
	}
	if code != 0 {
		return exec.CommandFailed(errors.ErrUserCreation, message, cmd, string(stderr), code)
	}
	return nil
}

// homeDir looks up a user's home directory in the passwd database.
func homeDir(root Root, user string) (string, error) {
	out, _, code, err := root.Exec("getent passwd " + util.ShellQuote(user))
	if err != nil {
		return "", err
	}
	if code != 0 {
		return "", fmt.Errorf("no passwd entry for %s", user)
	}
	fields := strings.Split(strings.TrimSpace(string(out)), ":")
	if len(fields) < 6 || fields[5] == "" {
		return "", fmt.Errorf("malformed passwd entry for %s", user)
	}
	return fields[5], nil
}

func userError(err error, name, during string) error {
	return errors.WrapWithCode(err, errors.ErrUserCreation,
		fmt.Sprintf("Provisioning user %s failed while %s", name, during),
		"Re-run tunnelup; an existing user is never recreated")
}

func terminal(opts Options) (io.Reader, io.Writer, io.Writer) {
	stdin, stdout, stderr := opts.Stdin, opts.Stdout, opts.Stderr
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdin, stdout, stderr
}
