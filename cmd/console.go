package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/engine"
)

const consoleHelp = `Type a message to speak on your turn, or a command:
  /next            ask the bot whose turn it is to speak
  /continue        resume a loaded session whose next speaker is a bot
  /stop            stop auto-chaining after the current reply
  /who             show the roster and whose turn it is
  /drop NAME       remove a bot from the panel
  /summary         print the rolling summary
  /analysis        print the latest analysis
  /refresh         re-run the analysis now
  /help            show this help
  /quit            save and leave`

// console renders controller events and turns input lines into commands.
type console struct {
	ctrl *engine.Controller

	mu  sync.Mutex
	out io.Writer
}

func newConsole(ctrl *engine.Controller, out io.Writer) *console {
	return &console{ctrl: ctrl, out: out}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) printMessage(m core.Message) {
	c.printf("%s: %s\n", m.Speaker, m.Text)
}

func (c *console) printEvent(ev core.Event) {
	switch ev.Type {
	case core.EventMessageAppended:
		if ev.Message != nil {
			c.printMessage(*ev.Message)
		}
	case core.EventSummaryUpdated:
		c.printf("[summary updated]\n")
	case core.EventAnalysisUpdated:
		c.printf("[analysis updated]\n")
	case core.EventChainStopped:
		c.printf("[chain stopped, use /next to go on]\n")
	default:
		if ev.IsFailure() {
			c.printf("! %s: %v\n", ev.Type, ev.Err)
		}
	}
}

// pump prints events until stop is closed, then flushes what is buffered.
func (c *console) pump(stop <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev := <-c.ctrl.Events():
				c.printEvent(ev)
			case <-stop:
				for {
					select {
					case ev := <-c.ctrl.Events():
						c.printEvent(ev)
					default:
						return
					}
				}
			}
		}
	}()
	return done
}

func (c *console) printWho() {
	set := c.ctrl.Participants()
	cursor := c.ctrl.Cursor()
	for i, b := range set.Bots {
		marker := " "
		if int(cursor) == i+1 {
			marker = ">"
		}
		c.printf("%s %s (%s)\n", marker, b.Name, b.Role)
	}
	if set.UserParticipates {
		marker := " "
		if cursor.IsHuman() {
			marker = ">"
		}
		c.printf("%s %s\n", marker, core.UserSpeaker)
	}
}

func (c *console) nextSpeaker() string {
	cursor := c.ctrl.Cursor()
	if cursor.IsHuman() {
		return core.UserSpeaker
	}
	set := c.ctrl.Participants()
	if i := cursor.BotIndex(); i >= 0 && i < len(set.Bots) {
		return set.Bots[i].Name
	}
	return "?"
}

// dispatch runs one input line. It reports whether the session should end.
func (c *console) dispatch(line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		return false, c.ctrl.SubmitUserMessage(line)
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	switch name {
	case "quit", "exit":
		return true, nil
	case "help":
		c.printf("%s\n", consoleHelp)
	case "next":
		return false, c.ctrl.RequestNextAITurn()
	case "continue":
		return false, c.ctrl.ContinueAfterResume()
	case "stop":
		return false, c.ctrl.Stop()
	case "who":
		c.printWho()
	case "drop":
		return false, c.drop(strings.TrimSpace(arg))
	case "summary":
		state := c.ctrl.Summary()
		if state.Cumulative == "" {
			c.printf("no summary yet\n")
			break
		}
		c.printf("summary through message %d:\n%s\n", state.Through, state.Cumulative)
	case "analysis":
		state := c.ctrl.Analysis()
		if state.Result == nil {
			c.printf("no analysis yet\n")
			break
		}
		data, err := json.MarshalIndent(state.Result, "", "  ")
		if err != nil {
			return false, err
		}
		c.printf("%s\n", data)
	case "refresh":
		return false, c.ctrl.RefreshAnalysis()
	default:
		return false, fmt.Errorf("unknown command /%s, try /help", name)
	}
	return false, nil
}

func (c *console) drop(name string) error {
	set := c.ctrl.Participants()
	i := set.Index(name)
	if i < 0 {
		return fmt.Errorf("no bot named %q", name)
	}
	set.Bots = append(set.Bots[:i], set.Bots[i+1:]...)
	return c.ctrl.EditParticipants(set)
}

// waitIdle blocks until no generation is in flight.
func (c *console) waitIdle(ctx context.Context) {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()
	for c.ctrl.Busy() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// interact reads commands from in until EOF, /quit or ctx is done.
func (c *console) interact(ctx context.Context, in io.Reader) error {
	c.printf("next: %s (type /help for commands)\n", c.nextSpeaker())

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		quit, err := c.dispatch(line)
		if err != nil {
			c.printf("! %v\n", err)
		}
		if quit {
			return nil
		}
		c.waitIdle(ctx)
	}
}

// session runs the controller loop around fn and leaves the session cleanly.
// The loop outlives ctx so pending writes can drain after an interrupt.
func session(ctx context.Context, ctrl *engine.Controller, out io.Writer, leaveTimeout time.Duration, fn func(c *console) error) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	go func() { _ = ctrl.Run(runCtx) }()

	c := newConsole(ctrl, out)
	stop := make(chan struct{})
	pumped := c.pump(stop)

	err := fn(c)

	leaveErr := ctrl.LeaveSession(leaveTimeout)
	id := ctrl.SessionID()
	cancel()
	<-ctrl.Done()
	close(stop)
	<-pumped

	if err != nil {
		return err
	}
	if leaveErr != nil && !errors.Is(leaveErr, core.ErrNoSession) {
		return fmt.Errorf("leave session: %w", leaveErr)
	}
	if id != 0 {
		c.printf("session %d saved\n", id)
	}
	return nil
}
