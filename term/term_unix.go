// Copyright 2019 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux || darwin || freebsd || netbsd || openbsd

package term

import (
	"golang.org/x/sys/unix"
)

type state struct {
	termios unix.Termios
}

func isTerminal(fd int) bool {
	_, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	return err == nil
}

func makeRawInput(fd int) (*State, error) {
	termios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, err
	}

	oldState := State{state{termios: *termios}}

	// Disable line buffering, echo, and signal-generating characters, and
	// read one byte at a time, so that GETC/IN traps of a program started
	// with the run subcommand see single keystrokes (vm.EnableRawMode).
	raw := *termios
	raw.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Cflag &^= unix.CSIZE | unix.PARENB
	raw.Cflag |= unix.CS8
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &raw); err != nil {
		return nil, err
	}

	return &oldState, nil
}

func makeRawOutput(fd int) (*State, error) {
	termios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, err
	}

	oldState := State{state{termios: *termios}}

	raw := *termios
	raw.Oflag &^= unix.OPOST

	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &raw); err != nil {
		return nil, err
	}

	return &oldState, nil
}

func getState(fd int) (*State, error) {
	termios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, err
	}
	return &State{state{termios: *termios}}, nil
}

func restore(fd int, oldState *State) error {
	return unix.IoctlSetTermios(fd, ioctlSetTermios, &oldState.termios)
}

func getSize(fd int) (width, height int, err error) {
	ws, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Col), int(ws.Row), nil
}

// peekKey is not supported on Unix: terminals in raw mode deliver keys to
// the normal read path, so there is no separate console event buffer to
// scan the way Windows' PeekConsoleInput works.
func peekKey(fd int, key rune) bool {
	return false
}
