package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iperf.pid")

	require.NoError(t, Create(path))

	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestCreateEmptyPathIsNoop(t *testing.T) {
	assert.NoError(t, Create(""))
	assert.NoError(t, Remove(""))
}

func TestCreateOverwritesStalePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iperf.pid")
	// PIDs this large are beyond pid_max on Linux.
	require.NoError(t, os.WriteFile(path, []byte("99999999"), 0o644))

	require.NoError(t, Create(path))

	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestCreateOverwritesGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iperf.pid")
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0o644))

	assert.NoError(t, Create(path))
}

func TestCreateRejectsLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iperf.pid")
	// The parent of the test binary is alive for the duration of the test.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0o644))

	err := Create(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunning))
}

func TestCreateUnwritableDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "iperf.pid")

	assert.Error(t, Create(path))
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iperf.pid")
	require.NoError(t, Create(path))

	require.NoError(t, Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, Remove(path), "removing twice is not an error")
}

func TestSystem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iperf.pid")
	var sys System

	require.NoError(t, sys.Create(path))
	assert.FileExists(t, path)
	require.NoError(t, sys.Remove(path))
	assert.NoFileExists(t, path)
}
