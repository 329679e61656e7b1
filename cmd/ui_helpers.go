package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"askbank/cli/internal/progress"

	"atomicgo.dev/cursor"
	"golang.org/x/term"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// startInlineSpinner shows frames followed by text on a single line until
// the returned function is called, which clears the line.
func startInlineSpinner(w io.Writer, text string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				line := fmt.Sprintf("%s %s", frames[i%len(frames)], text)
				fmt.Fprintf(w, "\r%*s\r", len(line), "")
				return
			case <-ticker.C:
				fmt.Fprintf(w, "\r%s %s", frames[i%len(frames)], text)
				i++
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
		})
	}
}

// interactive reports whether stdout is a terminal.
func interactive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// progressView returns an observer that prints finished pipeline stages,
// plus a function that restores the terminal. It returns a nil observer
// when stdout is not a terminal or quiet is set.
func progressView(quiet bool) (progress.Observer, func()) {
	if quiet || !interactive() {
		return nil, func() {}
	}
	cursor.Hide()
	r := progress.NewRenderer(verbose)
	return r.Observer(), func() {
		cursor.Show()
	}
}
