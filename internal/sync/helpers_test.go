package sync

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// loop runs commands the way the Bubble Tea runtime does: each in its own
// goroutine, with batches expanded and results queued as messages.
type loop struct {
	t    *testing.T
	msgs chan tea.Msg
}

func newLoop(t *testing.T) *loop {
	return &loop{t: t, msgs: make(chan tea.Msg, 256)}
}

func (l *loop) exec(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		msg := cmd()
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				l.exec(c)
			}
			return
		}
		if msg != nil {
			l.msgs <- msg
		}
	}()
}

func (l *loop) next() tea.Msg {
	l.t.Helper()
	select {
	case msg := <-l.msgs:
		return msg
	case <-time.After(5 * time.Second):
		l.t.Fatal("timed out waiting for a message")
		return nil
	}
}

// drive feeds messages to update until done reports true.
func drive[M any](l *loop, m M, update func(M, tea.Msg) (M, tea.Cmd), done func(M) bool) M {
	l.t.Helper()
	for !done(m) {
		var cmd tea.Cmd
		m, cmd = update(m, l.next())
		l.exec(cmd)
	}
	return m
}

// runSync executes cmd on the calling goroutine, expanding batches. Only
// use it for commands that cannot block.
func runSync(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runSync(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func updateFeed(f ActivityFeed, msg tea.Msg) (ActivityFeed, tea.Cmd) { return f.Update(msg) }

func updateCenter(n NotificationCenter, msg tea.Msg) (NotificationCenter, tea.Cmd) {
	return n.Update(msg)
}

func updateBoard(b TeamBoard, msg tea.Msg) (TeamBoard, tea.Cmd) { return b.Update(msg) }

func hasToast(msgs []tea.Msg) bool {
	for _, m := range msgs {
		if _, ok := m.(ToastMsg); ok {
			return true
		}
	}
	return false
}
