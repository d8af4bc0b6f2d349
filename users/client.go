package users

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/samber/lo"
	"golang.org/x/crypto/ssh"
)

type Config struct {
	Host string
	Port int
	// Username is the login account used to administer the host
	Username       string
	PrivateKeyPath string
}

type Client struct {
	ssh *ssh.Client
	log *slog.Logger
}

// Dial connects to the host, retrying for up to a minute while its SSH
// daemon comes up.
func Dial(ctx context.Context, config Config, logger *slog.Logger) (*Client, error) {
	buf, err := os.ReadFile(config.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key '%s': %w", config.PrivateKeyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", config.Host, lo.Must(lo.Coalesce(config.Port, 22)))
	cmdTimeout, retryInterval, timeout := 5*time.Second, 2*time.Second, 1*time.Minute

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var client *ssh.Client
	connectionAttempts := 0
	for client == nil {
		select {
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
			return nil, fmt.Errorf("failed to connect to '%s' after %s and %d attempts: %w", addr, timeout, connectionAttempts, err)

		default:
			connectionAttempts += 1
			client, err = ssh.Dial("tcp", addr, &ssh.ClientConfig{
				User:            config.Username,
				Timeout:         cmdTimeout,
				HostKeyCallback: ssh.InsecureIgnoreHostKey(),
				Auth: []ssh.AuthMethod{
					ssh.PublicKeys(signer),
				},
			})
			if err != nil {
				logger.Debug(fmt.Errorf("Connection to host refused (attempt %d), retrying in %s: %w", connectionAttempts, retryInterval, err).Error())
				select {
				case <-ctx.Done():
				case <-time.After(retryInterval):
				}
			}
		}
	}

	return &Client{ssh: client, log: logger.With("host", config.Host)}, nil
}

func (c *Client) Close() error {
	return c.ssh.Close()
}

// Sync reconciles the host's accounts against the user list. It reports
// whether anything on the host actually changed.
func (c *Client) Sync(users []User) (bool, error) {
	changed := false

	for _, user := range users {
		userChanged, err := c.syncUser(user)
		if err != nil {
			return changed, fmt.Errorf("failed to sync user '%s': %w", user.Name, err)
		}
		changed = changed || userChanged
	}

	return changed, nil
}

func (c *Client) syncUser(user User) (bool, error) {
	exists, err := c.userExists(user.Name)
	if err != nil {
		return false, err
	}

	if user.State == "absent" {
		if !exists {
			return false, nil
		}
		c.log.Info("Removing account", "user", user.Name)
		if _, err := c.run(fmt.Sprintf("sudo userdel --remove %s", shellescape.Quote(user.Name))); err != nil {
			return false, err
		}
		return true, nil
	}

	changed := false
	if !exists {
		c.log.Info("Creating account", "user", user.Name)
		shell := lo.Must(lo.Coalesce(user.Shell, "/bin/bash"))
		if _, err := c.run(fmt.Sprintf("sudo useradd --create-home --shell %s %s", shellescape.Quote(shell), shellescape.Quote(user.Name))); err != nil {
			return false, err
		}
		changed = true
	}

	if len(user.Groups) > 0 {
		if _, err := c.run(fmt.Sprintf("sudo usermod --append --groups %s %s",
			shellescape.Quote(strings.Join(user.Groups, ",")), shellescape.Quote(user.Name))); err != nil {
			return changed, err
		}
	}

	keysChanged, err := c.syncAuthorizedKeys(user)
	if err != nil {
		return changed, err
	}

	return changed || keysChanged, nil
}

func (c *Client) syncAuthorizedKeys(user User) (bool, error) {
	name := shellescape.Quote(user.Name)
	path := fmt.Sprintf("/home/%s/.ssh/authorized_keys", name)
	content := strings.Join(user.PublicKeys, "\n") + "\n"

	// Only rewrite the file when it differs, so repeated runs report
	// changed=false.
	current, err := c.run(fmt.Sprintf("sudo cat %s 2>/dev/null || true", path))
	if err != nil {
		return false, err
	}
	if current == content {
		return false, nil
	}

	c.log.Info("Updating authorized keys", "user", user.Name, "keys", len(user.PublicKeys))
	script := strings.Join([]string{
		fmt.Sprintf("sudo mkdir -p /home/%s/.ssh", name),
		fmt.Sprintf("printf '%%s' %s | sudo tee %s >/dev/null", shellescape.Quote(content), path),
		fmt.Sprintf("sudo chown -R %[1]s:%[1]s /home/%[1]s/.ssh", name),
		fmt.Sprintf("sudo chmod 700 /home/%s/.ssh", name),
		fmt.Sprintf("sudo chmod 600 %s", path),
	}, " && ")
	if _, err := c.run(script); err != nil {
		return false, err
	}

	return true, nil
}

func (c *Client) userExists(name string) (bool, error) {
	session, err := c.ssh.NewSession()
	if err != nil {
		return false, fmt.Errorf("failed to create SSH session: %w", err)
	}
	defer session.Close()

	// id exits non-zero for unknown accounts; any other outcome of a
	// non-zero exit is indistinguishable here and treated the same way.
	err = session.Run(fmt.Sprintf("id -u %s >/dev/null 2>&1", shellescape.Quote(name)))
	if err == nil {
		return true, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check account '%s': %w", name, err)
}

func (c *Client) run(cmd string) (string, error) {
	session, err := c.ssh.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create SSH session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	c.log.Debug("Running remote command", "cmd", cmd)
	if err := session.Run(cmd); err != nil {
		return "", fmt.Errorf("remote command failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
