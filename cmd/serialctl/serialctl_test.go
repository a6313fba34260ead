package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubovy/serial-communication/network/codec"
	"github.com/kubovy/serial-communication/network/message"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestKindsCommand(t *testing.T) {
	out, err := execute(t, "kinds")
	require.NoError(t, err)
	assert.Contains(t, out, "TAG")
	assert.Regexp(t, `0x10\s+IO`, out)
	assert.Regexp(t, `0xFF\s+UNKNOWN`, out)
}

func TestParseTag(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want byte
	}{
		{"io", 0x10},
		{"LCD", 0x12},
		{"0x42", 0x42},
		{"7", 7},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseTag(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := parseTag("0x100")
	assert.Error(t, err)
	_, err = parseTag("lamp")
	assert.Error(t, err)
}

func TestParsePayload(t *testing.T) {
	got, err := parsePayload([]string{"0x81", "3", "255"})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 3, 255}, got)

	_, err = parsePayload([]string{"256"})
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "<empty>", describe(nil))
	assert.Contains(t, describe(codec.Encode(message.KindIO.Tag(), []byte{1})), "IO")
}

func TestSendWithoutTransport(t *testing.T) {
	_, err := execute(t, "send", "io", "1")
	assert.Error(t, err)

	_, err = execute(t, "send", "bogus")
	assert.ErrorContains(t, err, "unknown message kind")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "serialctl version dev\n", out)
}

func TestConfigFlag(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "kinds")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
