package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/newtron-network/vnicheck/pkg/evpn"
	"github.com/newtron-network/vnicheck/pkg/mapping"
	"github.com/newtron-network/vnicheck/pkg/settings"
	"github.com/newtron-network/vnicheck/pkg/testbed"
)

// resolveTestbedPath returns the --testbed flag, else the settings default.
func resolveTestbedPath(flag string, s *settings.Settings) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if s.DefaultTestbed != "" {
		return s.DefaultTestbed, nil
	}
	return "", fmt.Errorf("no testbed: use --testbed or 'vnicheck settings set default_testbed <path>'")
}

// resolveMappingPath applies flag > $VNIS_IPS > settings. An empty result
// lets mapping.Path report the unset variable.
func resolveMappingPath(flag string, s *settings.Settings) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(mapping.EnvVar); env != "" {
		return env
	}
	return s.DefaultMapping
}

func resolveMatchMode(flag string, s *settings.Settings) (evpn.MatchMode, error) {
	if flag != "" {
		return evpn.ParseMatchMode(flag)
	}
	return s.GetMatchMode(), nil
}

func resolveTimeout(flag time.Duration, s *settings.Settings) time.Duration {
	if flag > 0 {
		return flag
	}
	return s.GetConnectTimeout()
}

func loadTestbed(flag string) (*testbed.Testbed, error) {
	path, err := resolveTestbedPath(flag, userSettings)
	if err != nil {
		return nil, err
	}
	return testbed.Load(path)
}

// passwordReader reads a password without echo.
type passwordReader func(prompt string) (string, error)

func terminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal to prompt for %s", strings.TrimSuffix(prompt, ": "))
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// fillPasswords prompts once per SSH user for SONiC devices that have no
// password in the testbed, in device name order.
func fillPasswords(tb *testbed.Testbed, names []string, read passwordReader) error {
	byUser := map[string]string{}
	for _, name := range names {
		d := tb.Devices[name]
		if d.Platform != testbed.PlatformSonic || d.SSHPass != "" {
			continue
		}
		pw, ok := byUser[d.SSHUser]
		if !ok {
			var err error
			pw, err = read(fmt.Sprintf("SSH password for %s@%s: ", d.SSHUser, name))
			if err != nil {
				return err
			}
			byUser[d.SSHUser] = pw
		}
		d.SSHPass = pw
	}
	return nil
}
