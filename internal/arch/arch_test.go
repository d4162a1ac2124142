package arch

import (
	"testing"

	"github.com/rileyhilliard/tunnelup/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		raw     string
		want    Target
		wantURL string
	}{
		{"x86_64", X64, "https://code.visualstudio.com/sha/download?build=stable&os=cli-alpine-x64"},
		{"aarch64", ARM64, "https://code.visualstudio.com/sha/download?build=stable&os=cli-alpine-arm64"},
		{"armv7l", ARMHF, "https://code.visualstudio.com/sha/download?build=stable&os=cli-alpine-armhf"},
		{"x86_64\n", X64, "https://code.visualstudio.com/sha/download?build=stable&os=cli-alpine-x64"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Resolve(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantURL, got.URL("stable"))
		})
	}
}

func TestResolve_Unsupported(t *testing.T) {
	for _, raw := range []string{"riscv64", "i686", "ppc64le", "s390x", "amd64", "arm64", "", "X86_64"} {
		t.Run(raw, func(t *testing.T) {
			got, err := Resolve(raw)
			require.Error(t, err)
			assert.Empty(t, got)
			assert.True(t, errors.IsCode(err, errors.ErrUnsupportedArch))
		})
	}
}

func TestTarget_InsiderURL(t *testing.T) {
	assert.Equal(t,
		"https://code.visualstudio.com/sha/download?build=insider&os=cli-alpine-arm64",
		ARM64.URL("insider"))
}

func TestSupported(t *testing.T) {
	for _, raw := range Supported() {
		_, err := Resolve(raw)
		assert.NoError(t, err)
	}
}
