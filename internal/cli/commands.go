// Package cli implements the interactive console of the companion:
// session status, friend list, cached channels, and sending chat.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/axolotlclient/axolotlclient-api/internal/api"
	"github.com/axolotlclient/axolotlclient-api/internal/config"
	"github.com/axolotlclient/axolotlclient-api/internal/events"
)

// CLI provides the interactive command loop.
type CLI struct {
	cfg      *config.Config
	eventBus *events.EventBus
	session  *api.Session
}

// NewCLI creates a new CLI handler.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, session *api.Session) *CLI {
	return &CLI{
		cfg:      cfg,
		eventBus: eventBus,
		session:  session,
	}
}

// Start begins the interactive loop. It returns when the context is
// cancelled or stdin closes.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\naxolotld console ready. Type 'help' for available commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("axolotld> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			parts := strings.Fields(line)
			if err := c.execute(ctx, strings.ToLower(parts[0]), parts[1:]); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	}
}

// execute processes a single command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "friends", "f":
		return c.printFriends(ctx)
	case "channels":
		return c.printChannels()
	case "send":
		if len(args) < 2 {
			return fmt.Errorf("usage: send <channel-id> <message>")
		}
		c.session.Chat().SendMessage(api.Channel{ID: args[0]}, strings.Join(args[1:], " "))
	case "restart":
		go c.session.Restart()
		fmt.Println("restarting session...")
	case "quit", "exit", "q":
		c.eventBus.Emit(ctx, events.Event{Type: events.EventShutdown, Source: "cli"})
	default:
		return fmt.Errorf("unknown command %q, try 'help'", cmd)
	}
	return nil
}

func (c *CLI) printHelp() {
	fmt.Println(`Commands:
  status    (s)  show session state
  friends   (f)  list friends
  channels       list channels with cached history
  send <channel-id> <message>
  restart        restart the backend session
  quit      (q)  shut down`)
}

func (c *CLI) printStatus() {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})

	table.Append([]string{"State", string(c.session.State())})
	table.Append([]string{"Connected", fmt.Sprintf("%t", c.session.Connected())})
	if self := c.session.Self(); self != nil {
		table.Append([]string{"Self", fmt.Sprintf("%s (%s)", self.Name, self.UUID)})
		table.Append([]string{"System", fmt.Sprintf("%t", self.IsSystem())})
	}
	table.Append([]string{"Enabled", fmt.Sprintf("%t", c.cfg.Enabled())})
	table.Append([]string{"Consent", c.cfg.PrivacyConsent()})

	table.Render()
}

func (c *CLI) printFriends(ctx context.Context) error {
	if !c.session.Connected() {
		return fmt.Errorf("session not connected")
	}

	reqCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	friends, err := c.session.Friends().Friends(reqCtx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "UUID", "Status"})
	for _, f := range friends {
		table.Append([]string{f.Name, f.UUID, string(f.Status)})
	}
	table.Render()
	return nil
}

func (c *CLI) printChannels() error {
	channels, err := c.session.Chat().LocalChannels()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Channel"})
	for _, ch := range channels {
		table.Append([]string{ch})
	}
	table.Render()
	return nil
}

// TerminalConsentPrompter asks the privacy note question on the terminal.
type TerminalConsentPrompter struct{}

// OpenPrivacyNote blocks on stdin until the user answers, then reports
// the decision through the callback.
func (TerminalConsentPrompter) OpenPrivacyNote(answered func(accepted bool)) {
	go func() {
		fmt.Println("\nThe backend integration shares your online status and chat")
		fmt.Println("messages with the AxolotlClient backend. Accept? [y/N]")

		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			log.Warn().Msg("privacy note prompt aborted")
			answered(false)
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		answered(answer == "y" || answer == "yes")
	}()
}
