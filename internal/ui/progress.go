// Package ui provides the spinner shown while a request is in flight.
package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

var (
	spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinnerMu     sync.Mutex
	spinnerStop   chan struct{}
	spinnerDone   chan struct{}
)

// StartSpinner starts an animated spinner with a message on stderr. It does
// nothing in quiet mode or when stderr is not a terminal.
//
// Parameters:
//   - message: The message to display next to the spinner
func StartSpinner(message string) {
	if IsQuiet() || !isatty.IsTerminal(os.Stderr.Fd()) {
		return
	}

	spinnerMu.Lock()
	defer spinnerMu.Unlock()
	if spinnerStop != nil {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	spinnerStop, spinnerDone = stop, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			frame := StatusInProgressStyle.Render(spinnerFrames[i%len(spinnerFrames)])
			fmt.Fprintf(os.Stderr, "\r%s %s", frame, message)
			select {
			case <-stop:
				// Clear the spinner line
				fmt.Fprintf(os.Stderr, "\r%s\r", strings.Repeat(" ", len(message)+4))
				return
			case <-ticker.C:
			}
		}
	}()
}

// StopSpinner stops the current spinner and waits for its line to be cleared.
func StopSpinner() {
	spinnerMu.Lock()
	defer spinnerMu.Unlock()
	if spinnerStop == nil {
		return
	}
	close(spinnerStop)
	<-spinnerDone
	spinnerStop, spinnerDone = nil, nil
}
