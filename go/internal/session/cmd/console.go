package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mcdev12/gesturegame/go/internal/session"
	"github.com/mcdev12/gesturegame/go/internal/session/protocol"
	"github.com/rs/zerolog/log"
)

var errQuit = errors.New("quit")

const consoleHelp = `commands:
  rooms                      list rooms
  create <name>              create and join a room
  join <room id>             join a room
  leave                      leave the current room
  ready | unready            toggle ready
  name <player name>         set the player name
  gesture <type> [conf]      play attack, defend or build (default confidence 1.0)
  press                      confirm button press
  status                     print session state
  quit                       exit`

type command struct {
	name string
	args []string
}

func parseCommand(line string) (command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, false
	}
	return command{name: strings.ToLower(fields[0]), args: fields[1:]}, true
}

// console runs line commands against the session service. Gestures waiting
// for a confirmation press run in their own goroutines; mu serialises every
// write to out.
type console struct {
	svc *session.Service

	mu  sync.Mutex
	out io.Writer

	gestures sync.WaitGroup
}

func newConsole(svc *session.Service, out io.Writer) *console {
	return &console{svc: svc, out: out}
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("console input failed")
	}
}

func (c *console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// run executes lines until quit, end of input or ctx ends. Gestures still
// waiting for confirmation are cancelled and waited for before it returns.
func (c *console) run(ctx context.Context, lines <-chan string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer c.gestures.Wait()
	defer cancel()

	c.printf("%s\n", consoleHelp)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			cmd, ok := parseCommand(line)
			if !ok {
				continue
			}
			if err := c.exec(ctx, cmd); err != nil {
				if errors.Is(err, errQuit) {
					return err
				}
				c.printf("error: %v\n", err)
			}
		}
	}
}

func (c *console) exec(ctx context.Context, cmd command) error {
	sess := c.svc.Session()
	switch cmd.name {
	case "help", "?":
		c.printf("%s\n", consoleHelp)
		return nil
	case "rooms":
		return sess.FetchRooms()
	case "create":
		id, err := sess.CreateRoom(strings.Join(cmd.args, " "))
		if err != nil {
			return err
		}
		c.printf("creating room %s\n", id)
		return nil
	case "join":
		if len(cmd.args) != 1 {
			return fmt.Errorf("usage: join <room id>")
		}
		return sess.JoinRoom(cmd.args[0])
	case "leave":
		return sess.LeaveRoom()
	case "ready":
		return sess.SetReady(true)
	case "unready":
		return sess.SetReady(false)
	case "name":
		return sess.SetPlayerName(strings.Join(cmd.args, " "))
	case "press":
		c.printf("press %d\n", c.svc.Press())
		return nil
	case "gesture":
		action, confidence, err := parseGesture(cmd.args)
		if err != nil {
			return err
		}
		// Confirmation may wait for a later "press" line.
		c.gestures.Add(1)
		go func() {
			defer c.gestures.Done()
			if err := c.svc.SubmitGesture(ctx, action, confidence); err != nil {
				c.printf("gesture %s: %v\n", action, err)
			}
		}()
		return nil
	case "status":
		c.printStatus()
		return nil
	case "quit", "exit":
		return errQuit
	}
	return fmt.Errorf("unknown command %q (try help)", cmd.name)
}

func parseGesture(args []string) (protocol.CardType, float64, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", 0, fmt.Errorf("usage: gesture <attack|defend|build> [confidence]")
	}
	action := protocol.CardType(strings.ToLower(args[0]))
	if !action.Valid() {
		return "", 0, fmt.Errorf("unknown gesture %q", args[0])
	}
	confidence := 1.0
	if len(args) == 2 {
		f, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return "", 0, fmt.Errorf("confidence %q: %w", args[1], err)
		}
		confidence = f
	}
	return action, confidence, nil
}

func (c *console) printStatus() {
	stats := c.svc.GetStats()
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%-18s %v\n", k, stats[k])
	}
	c.printf("%s", b.String())
}
