package portfile

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishReadClear(t *testing.T) {
	reg := New(t.TempDir(), "demo")

	require.NoError(t, reg.Publish(45101))
	port, ok := reg.Read()
	require.True(t, ok)
	require.Equal(t, 45101, port)

	require.NoError(t, reg.Clear())
	_, ok = reg.Read()
	require.False(t, ok)
}

func TestReadTreatsBadContentAsAbsent(t *testing.T) {
	dir := t.TempDir()
	reg := New(dir, "demo")

	cases := map[string]string{
		"missing file": "",
		"garbage":      "not-a-port\n",
		"partial":      "451x",
		"zero":         "0\n",
		"negative":     "-5\n",
		"too large":    "70000\n",
		"empty":        "\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if name == "missing file" {
				_ = os.Remove(reg.Path())
			} else {
				require.NoError(t, os.WriteFile(reg.Path(), []byte(content), 0o600))
			}
			_, ok := reg.Read()
			require.False(t, ok)
		})
	}
}

func TestPublishRejectsOutOfRangePorts(t *testing.T) {
	reg := New(t.TempDir(), "demo")
	require.Error(t, reg.Publish(0))
	require.Error(t, reg.Publish(-1))
	require.Error(t, reg.Publish(65536))
}

func TestPublishOverwritesPreviousPort(t *testing.T) {
	reg := New(t.TempDir(), "demo")
	require.NoError(t, reg.Publish(40001))
	require.NoError(t, reg.Publish(40002))
	port, ok := reg.Read()
	require.True(t, ok)
	require.Equal(t, 40002, port)
}

func TestClearMissingFileIsNotAnError(t *testing.T) {
	reg := New(t.TempDir(), "demo")
	require.NoError(t, reg.Clear())
	require.NoError(t, reg.Clear())
}
