package rewind

import (
	"bytes"
	"strings"
	"sync"

	"github.com/aretw0/rewind/pkg/domain"
)

// consoleWriter turns program output into console notifications, one per line.
type consoleWriter struct {
	id      string
	publish func(domain.Notification)

	mu  sync.Mutex
	buf bytes.Buffer
}

func newConsoleWriter(id string, publish func(domain.Notification)) *consoleWriter {
	return &consoleWriter{id: id, publish: publish}
}

func (w *consoleWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.buf.Write(p)
	var lines []string
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		lines = append(lines, strings.TrimRight(string(w.buf.Next(i+1)), "\r\n"))
	}
	w.mu.Unlock()

	for _, line := range lines {
		w.publish(domain.NewConsoleNotification(w.id, line, domain.LogInfo))
	}
	return len(p), nil
}
