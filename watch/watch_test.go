package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPoll_MissingFileIsQuiet(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "absent.st"), ModeStat)
	require.NoError(t, err)

	_, ok, err := w.PollErr()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPoll_RepeatsUntilCommitted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.st")
	writeFile(t, path, "[:p | p frame]")
	w, err := New(path, ModeStat)
	require.NoError(t, err)

	ev1, ok := w.Poll()
	require.True(t, ok)
	require.Equal(t, path, ev1.Path)
	require.Equal(t, "[:p | p frame]", string(ev1.Source))

	ev2, ok := w.Poll()
	require.True(t, ok, "uncommitted content keeps producing events")
	require.Equal(t, ev1.Digest, ev2.Digest)

	w.Commit(ev1.Digest)
	_, ok = w.Poll()
	require.False(t, ok)
	_, ok = w.Poll()
	require.False(t, ok, "two polls with no change yield no event")
}

func TestPoll_DetectsContentChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.st")
	writeFile(t, path, "A")
	w, err := New(path, ModeStat)
	require.NoError(t, err)

	ev, ok := w.Poll()
	require.True(t, ok)
	w.Commit(ev.Digest)

	writeFile(t, path, "BB")
	ev2, ok := w.Poll()
	require.True(t, ok)
	require.NotEqual(t, ev.Digest, ev2.Digest)
	require.Equal(t, "BB", string(ev2.Source))
}

func TestPoll_TouchWithoutChangeIsQuiet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.st")
	writeFile(t, path, "same")
	w, err := New(path, ModeStat)
	require.NoError(t, err)
	ev, _ := w.Poll()
	w.Commit(ev.Digest)

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	_, ok := w.Poll()
	require.False(t, ok, "same digest after a touch")
}

func TestPoll_UnreadableIsWatchError(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, ModeStat)
	require.NoError(t, err)

	_, ok, err := w.PollErr()
	require.False(t, ok)
	var we *WatchError
	require.ErrorAs(t, err, &we)
	require.Equal(t, dir, we.Path)
}

func TestSetPath_ClearsCommitted(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.st")
	b := filepath.Join(dir, "b.st")
	writeFile(t, a, "same")
	writeFile(t, b, "same")

	w, err := New(a, ModeStat)
	require.NoError(t, err)
	ev, _ := w.Poll()
	w.Commit(ev.Digest)

	require.NoError(t, w.SetPath(b))
	require.Equal(t, b, w.Path())
	ev2, ok := w.Poll()
	require.True(t, ok, "new path triggers even with identical content")
	require.Equal(t, b, ev2.Path)
}

func TestReset_ReportsAgain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.st")
	writeFile(t, path, "x")
	w, err := New(path, ModeStat)
	require.NoError(t, err)
	ev, _ := w.Poll()
	w.Commit(ev.Digest)

	w.Reset()
	require.Empty(t, w.Committed())
	_, ok := w.Poll()
	require.True(t, ok)
}

func TestNotifyMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.st")
	writeFile(t, path, "one")
	w, err := New(path, ModeNotify)
	require.NoError(t, err)
	defer w.Close()

	ev, ok := w.Poll()
	require.True(t, ok, "initial poll always stats")
	w.Commit(ev.Digest)

	writeFile(t, path, "two!")
	require.Eventually(t, func() bool {
		ev, ok := w.Poll()
		return ok && string(ev.Source) == "two!"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeStat, m)
	m, err = ParseMode("notify")
	require.NoError(t, err)
	require.Equal(t, ModeNotify, m)
	_, err = ParseMode("inotify")
	require.Error(t, err)
}

func TestPoll_SameSizeSameMtimeEdit(t *testing.T) {
	for _, mode := range []Mode{ModeStat, ModeNotify} {
		t.Run(string(mode), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "s.st")
			pinned := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
			writeFile(t, path, "x := 1.")
			require.NoError(t, os.Chtimes(path, pinned, pinned))

			w, err := New(path, mode)
			require.NoError(t, err)
			defer w.Close()
			ev, ok := w.Poll()
			require.True(t, ok)
			w.Commit(ev.Digest)

			writeFile(t, path, "x := 2.")
			require.NoError(t, os.Chtimes(path, pinned, pinned))
			require.Eventually(t, func() bool {
				ev, ok := w.Poll()
				return ok && string(ev.Source) == "x := 2."
			}, 5*time.Second, 10*time.Millisecond)
		})
	}
}

func TestSetPath_FailedMoveKeepsWatching(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.st")
	writeFile(t, path, "one")
	w, err := New(path, ModeNotify)
	require.NoError(t, err)
	defer w.Close()
	require.Equal(t, ModeNotify, w.Mode())

	ev, ok := w.Poll()
	require.True(t, ok)
	w.Commit(ev.Digest)

	require.Error(t, w.SetPath(filepath.Join(dir, "missing-dir", "x.st")))
	require.Equal(t, path, w.Path())

	writeFile(t, path, "two")
	require.Eventually(t, func() bool {
		ev, ok := w.Poll()
		return ok && string(ev.Source) == "two"
	}, 5*time.Second, 10*time.Millisecond)
}
