package converge

import (
	"testing"

	"github.com/rileyhilliard/tunnelup/internal/arch"
	"github.com/rileyhilliard/tunnelup/internal/unit"
	"github.com/stretchr/testify/assert"
)

func desiredBox1() Desired {
	return Desired{User: "vscode", Tunnel: TunnelIdentity{Name: "box1"}, Target: arch.X64}
}

func converged() Observed {
	return Observed{
		UserExists: true,
		Binary:     BinaryState{Present: true, Path: unit.BinaryPath},
		Unit:       unit.State{Present: true, MatchesUser: true, MatchesName: true},
		Downloader: "curl",
	}
}

func kinds(plan []Action) []ActionKind {
	out := make([]ActionKind, len(plan))
	for i, a := range plan {
		out[i] = a.Kind
	}
	return out
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		observed func() Observed
		desired  func() Desired
		want     []ActionKind
	}{
		{
			name:     "fresh host",
			observed: func() Observed { return Observed{Downloader: "curl"} },
			desired:  desiredBox1,
			want:     []ActionKind{CreateUser, DownloadAndInstallBinary, WriteUnitFile, DaemonReload, EnableUnit, StopIfRunning, StartUnit},
		},
		{
			name:     "already converged only restarts",
			observed: converged,
			desired:  desiredBox1,
			want:     []ActionKind{StopIfRunning, StartUnit},
		},
		{
			name: "tunnel name changed",
			observed: func() Observed {
				o := converged()
				o.Unit.MatchesName = false
				return o
			},
			desired: desiredBox1,
			want:    []ActionKind{WriteUnitFile, DaemonReload, EnableUnit, StopIfRunning, StartUnit},
		},
		{
			name: "service user changed",
			observed: func() Observed {
				o := converged()
				o.Unit.MatchesUser = false
				return o
			},
			desired: desiredBox1,
			want:    []ActionKind{WriteUnitFile, DaemonReload, EnableUnit, StopIfRunning, StartUnit},
		},
		{
			name: "binary missing only",
			observed: func() Observed {
				o := converged()
				o.Binary.Present = false
				return o
			},
			desired: desiredBox1,
			want:    []ActionKind{DownloadAndInstallBinary, StopIfRunning, StartUnit},
		},
		{
			name:     "force reinstalls and rewrites",
			observed: converged,
			desired: func() Desired {
				d := desiredBox1()
				d.Force = true
				return d
			},
			want: []ActionKind{DownloadAndInstallBinary, WriteUnitFile, DaemonReload, EnableUnit, StopIfRunning, StartUnit},
		},
		{
			name: "force never creates an existing user",
			observed: func() Observed {
				o := converged()
				o.Unit = unit.State{}
				return o
			},
			desired: func() Desired {
				d := desiredBox1()
				d.Force = true
				return d
			},
			want: []ActionKind{DownloadAndInstallBinary, WriteUnitFile, DaemonReload, EnableUnit, StopIfRunning, StartUnit},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Plan(tt.observed(), tt.desired())
			assert.Equal(t, tt.want, kinds(plan))
		})
	}
}

func TestPlan_ConvergedHasNoMutations(t *testing.T) {
	plan := Plan(converged(), desiredBox1())
	assert.Zero(t, Mutations(plan))
	for _, a := range plan {
		assert.False(t, a.Mutating(), a.String())
	}
}

func TestPlan_DownloadCarriesTargetAndDownloader(t *testing.T) {
	d := desiredBox1()
	d.Target = arch.ARM64
	d.Quality = "insider"

	plan := Plan(Observed{UserExists: true, Downloader: "wget"}, d)
	install := plan[0]

	assert.Equal(t, DownloadAndInstallBinary, install.Kind)
	assert.Equal(t, "https://code.visualstudio.com/sha/download?build=insider&os=cli-alpine-arm64", install.URL)
	assert.Equal(t, "wget", install.Downloader)
	assert.Equal(t, "not installed", install.Reason)
}

func TestPlan_DefaultsToStable(t *testing.T) {
	plan := Plan(Observed{UserExists: true, Downloader: "curl"}, desiredBox1())
	assert.Contains(t, plan[0].URL, "build=stable")
}

func TestPlan_Reasons(t *testing.T) {
	o := converged()
	o.Unit.MatchesName = false
	plan := Plan(o, desiredBox1())
	assert.Equal(t, "write-unit (tunnel name changed)", plan[0].String())

	o = converged()
	o.Unit = unit.State{}
	plan = Plan(o, desiredBox1())
	assert.Equal(t, "write-unit (unit missing)", plan[0].String())
}

func TestSplit(t *testing.T) {
	plan := Plan(Observed{Downloader: "curl"}, desiredBox1())
	conv, restart := Split(plan)

	assert.Equal(t, []ActionKind{CreateUser, DownloadAndInstallBinary, WriteUnitFile, DaemonReload, EnableUnit}, kinds(conv))
	assert.Equal(t, []ActionKind{StopIfRunning, StartUnit}, kinds(restart))

	conv, restart = Split(Plan(converged(), desiredBox1()))
	assert.Empty(t, conv)
	assert.Len(t, restart, 2)
}

func TestActionKind_String(t *testing.T) {
	assert.Equal(t, "install-binary", DownloadAndInstallBinary.String())
	assert.Equal(t, "action(42)", ActionKind(42).String())
}

func TestTunnelIdentity_URL(t *testing.T) {
	assert.Equal(t, "https://vscode.dev/tunnel/box1", TunnelIdentity{Name: "box1"}.URL())
}
