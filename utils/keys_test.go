package utils

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys_NotATerminal(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	kl, err := ListenQuitKey(r)
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.Same(t, &buf, kl.Output(&buf), "outside of raw mode the output is left alone")
	assert.NoError(t, kl.Restore())
	assert.NoError(t, kl.Restore())

	select {
	case <-kl.Quit():
		t.Fatal("the quit channel is closed without a keystroke")
	default:
	}
}

func TestKeys_Watch(t *testing.T) {
	kl := &KeyListener{quit: make(chan struct{})}
	kl.watch(strings.NewReader("abq"))

	select {
	case <-kl.Quit():
	default:
		t.Fatal("the quit key did not close the channel")
	}
}

func TestKeys_CRLFWriter(t *testing.T) {
	var buf bytes.Buffer
	cw := crlfWriter{w: &buf}

	n, err := cw.Write([]byte("level=info msg=\"video loop finished\"\nsecond line\n"))
	require.NoError(t, err)
	assert.Equal(t, 49, n, "the length of the original input is reported")
	assert.Equal(t, "level=info msg=\"video loop finished\"\r\nsecond line\r\n", buf.String())
}
