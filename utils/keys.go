package utils

import (
	"bytes"
	"io"
	"os"

	"golang.org/x/term"
)

// QuitKey is the keystroke which ends the video loop.
const QuitKey = 'q'

// KeyListener watches a terminal for the quit keystroke.
type KeyListener struct {
	in    *os.File
	state *term.State
	quit  chan struct{}
}

// ListenQuitKey switches the terminal attached to in into raw mode and
// closes the returned listener's channel once the quit key is pressed.
// When in is not a terminal the channel is never closed.
func ListenQuitKey(in *os.File) (*KeyListener, error) {
	kl := &KeyListener{
		in:   in,
		quit: make(chan struct{}),
	}
	if !term.IsTerminal(int(in.Fd())) {
		return kl, nil
	}

	state, err := term.MakeRaw(int(in.Fd()))
	if err != nil {
		return nil, err
	}
	kl.state = state

	go kl.watch(in)
	return kl, nil
}

// watch reads single keystrokes until the quit key or a read error.
func (kl *KeyListener) watch(r io.Reader) {
	buf := make([]byte, 1)
	for {
		if _, err := r.Read(buf); err != nil {
			return
		}
		// Ctrl+C is not translated into SIGINT while in raw mode.
		if buf[0] == QuitKey || buf[0] == 0x03 {
			close(kl.quit)
			return
		}
	}
}

// Quit returns the channel closed on the quit keystroke.
func (kl *KeyListener) Quit() <-chan struct{} {
	return kl.quit
}

// Restore puts the terminal back into the state it had before listening.
// Calling it more than once is safe.
func (kl *KeyListener) Restore() error {
	if kl.state == nil {
		return nil
	}
	state := kl.state
	kl.state = nil
	return term.Restore(int(kl.in.Fd()), state)
}

// Output returns a writer usable for line oriented output while the terminal
// is in raw mode, where a bare line feed does not return the carriage.
// Outside of raw mode w is returned unchanged.
func (kl *KeyListener) Output(w io.Writer) io.Writer {
	if kl.state == nil {
		return w
	}
	return crlfWriter{w: w}
}

type crlfWriter struct {
	w io.Writer
}

func (cw crlfWriter) Write(p []byte) (int, error) {
	if _, err := cw.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
