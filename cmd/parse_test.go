package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/books/internal/apperr"
	"github.com/theirongolddev/books/internal/period"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"150000", "150000"},
		{"$1,250,000.50", "1250000.5"},
		{"2_500", "2500"},
		{" 99.90 ", "99.9"},
	}
	for _, tt := range tests {
		got, err := parseMoney("amount", tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}

	_, err := parseMoney("amount", "ten")
	assert.True(t, apperr.IsValidation(err))
}

func TestParseOptionalMoneyEmpty(t *testing.T) {
	d, err := parseOptionalMoney("june", "  ")
	require.NoError(t, err)
	assert.False(t, d.Valid)

	d, err = parseOptionalMoney("june", "300")
	require.NoError(t, err)
	assert.True(t, d.Valid)
}

func TestParseID(t *testing.T) {
	id, err := parseID("#42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"0", "-3", "abc", ""} {
		_, err := parseID(bad)
		assert.True(t, apperr.IsValidation(err), bad)
	}
}

func TestParseMonthDefaultsToNow(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	m, err := parseMonth("", now)
	require.NoError(t, err)
	assert.Equal(t, period.Month{Year: 2024, Month: time.March}, m)

	m, err = parseMonth("2023-12", now)
	require.NoError(t, err)
	assert.Equal(t, period.Month{Year: 2023, Month: time.December}, m)

	_, err = parseMonth("2023-13", now)
	assert.True(t, apperr.IsValidation(err))
}

func TestPIDFileClaim(t *testing.T) {
	pf := newPIDFile(filepath.Join(t.TempDir(), "run", "booksd.pid"))

	require.NoError(t, pf.claim())
	require.NoError(t, pf.write(runtimeState{PID: os.Getpid(), Addr: "127.0.0.1:9999"}))

	pid, err := pf.pid()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	st, err := pf.state()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", st.Addr)

	assert.ErrorContains(t, pf.claim(), "already running")

	pf.clear()
	_, err = pf.pid()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPIDFileStaleIsReplaced(t *testing.T) {
	pf := newPIDFile(filepath.Join(t.TempDir(), "booksd.pid"))
	// Above the largest pid_max Linux allows.
	require.NoError(t, pf.write(runtimeState{PID: 4194304}))

	require.NoError(t, pf.claim())
	_, err := pf.pid()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWithoutFlag(t *testing.T) {
	args := []string{"daemon", "--detach", "--addr", "127.0.0.1:1", "--detach=true"}
	assert.Equal(t, []string{"daemon", "--addr", "127.0.0.1:1"}, withoutFlag(args, "--detach"))
}
