// pkg/privilege/privilege_test.go

package privilege

import (
	"context"
	"errors"
	"testing"

	"github.com/anvil-sh/anvil/pkg/anvil_io"
	"github.com/anvil-sh/anvil/pkg/depends"
	"github.com/anvil-sh/anvil/pkg/environment"
	"github.com/anvil-sh/anvil/pkg/execute"
	"github.com/anvil-sh/anvil/pkg/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRC(t *testing.T) *anvil_io.RuntimeContext {
	t.Helper()
	return anvil_io.NewContext(context.Background(), t.Name())
}

func missingGit() *depends.MissingSet {
	return &depends.MissingSet{
		Manager: platform.Brew,
		Requirements: []depends.Requirement{
			{Name: "git", Packages: map[platform.PackageManager]string{platform.Brew: "git"}},
		},
	}
}

// sudoCheck simulates `sudo -n true`: err nil means a cached grant.
func sudoCheck(err error) depends.RunFunc {
	return func(ctx context.Context, opts execute.Options) (string, error) {
		return "", err
	}
}

func TestDecide(t *testing.T) {
	interactive := &environment.Environment{Interactive: true}
	headless := &environment.Environment{CI: true}

	passwordNeeded := errors.New("sudo: a password is required")

	tests := []struct {
		name    string
		gate    *Gate
		missing *depends.MissingSet
		want    Decision
		wantErr bool
	}{
		{
			name:    "empty missing-set proceeds without negotiation",
			gate:    &Gate{Env: headless},
			missing: &depends.MissingSet{Manager: platform.Apt},
			want:    Proceed,
		},
		{
			name: "skip-deps declines",
			gate: &Gate{
				Env:      interactive,
				SkipDeps: true,
				Euid:     func() int { return 0 },
			},
			missing: missingGit(),
			want:    Decline,
		},
		{
			name: "no elevation mechanism is unavailable",
			gate: &Gate{
				Env:        interactive,
				Euid:       func() int { return 1000 },
				SudoExists: func() bool { return false },
			},
			missing: missingGit(),
			want:    Unavailable,
		},
		{
			name: "root proceeds without prompting",
			gate: &Gate{
				Env:        headless,
				Euid:       func() int { return 0 },
				SudoExists: func() bool { return false },
			},
			missing: missingGit(),
			want:    Proceed,
		},
		{
			name: "cached sudo grant proceeds without prompting",
			gate: &Gate{
				Env:        headless,
				Euid:       func() int { return 1000 },
				SudoExists: func() bool { return true },
				Run:        sudoCheck(nil),
			},
			missing: missingGit(),
			want:    Proceed,
		},
		{
			name: "password needed in CI fails closed",
			gate: &Gate{
				Env:        headless,
				Euid:       func() int { return 1000 },
				SudoExists: func() bool { return true },
				Run:        sudoCheck(passwordNeeded),
			},
			missing: missingGit(),
			want:    Unavailable,
		},
		{
			name: "interactive user declines",
			gate: &Gate{
				Env:        interactive,
				Euid:       func() int { return 1000 },
				SudoExists: func() bool { return true },
				Run:        sudoCheck(passwordNeeded),
				Prompt:     func(string, bool) (bool, error) { return false, nil },
			},
			missing: missingGit(),
			want:    Decline,
		},
		{
			name: "interactive user accepts",
			gate: &Gate{
				Env:        interactive,
				Euid:       func() int { return 1000 },
				SudoExists: func() bool { return true },
				Run:        sudoCheck(passwordNeeded),
				Prompt:     func(string, bool) (bool, error) { return true, nil },
			},
			missing: missingGit(),
			want:    Proceed,
		},
		{
			name: "unreadable prompt is unavailable",
			gate: &Gate{
				Env:        interactive,
				Euid:       func() int { return 1000 },
				SudoExists: func() bool { return true },
				Run:        sudoCheck(passwordNeeded),
				Prompt:     func(string, bool) (bool, error) { return false, errors.New("stdin closed") },
			},
			missing: missingGit(),
			want:    Unavailable,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.gate.Decide(testRC(t), tt.missing)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got, "decision %s", got)
		})
	}
}

func TestCanElevate(t *testing.T) {
	tests := []struct {
		name string
		gate *Gate
		want bool
	}{
		{
			name: "skip-deps pretends no mechanism exists",
			gate: &Gate{SkipDeps: true, Euid: func() int { return 0 }},
			want: false,
		},
		{
			name: "root can elevate",
			gate: &Gate{Euid: func() int { return 0 }, SudoExists: func() bool { return false }},
			want: true,
		},
		{
			name: "sudo on PATH can elevate",
			gate: &Gate{Euid: func() int { return 1000 }, SudoExists: func() bool { return true }},
			want: true,
		},
		{
			name: "neither root nor sudo",
			gate: &Gate{Euid: func() int { return 1000 }, SudoExists: func() bool { return false }},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.gate.CanElevate())
		})
	}
}
