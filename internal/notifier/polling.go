package notifier

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Command is one parsed operator command: "/recent 20" becomes
// {Name: "recent", Args: ["20"]}.
type Command struct {
	Name string
	Args []string
}

// CommandHandler turns a command into a reply. An empty reply sends nothing.
type CommandHandler func(cmd Command) string

// ParseCommand parses a chat message into a command. Plain chatter is not a
// command. A "@botname" suffix on the command word, as sent in group chats,
// is stripped; the name is lower-cased.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || len(fields[0]) < 2 || fields[0][0] != '/' {
		return Command{}, false
	}
	name := fields[0][1:]
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return Command{}, false
	}
	args := fields[1:]
	if len(args) == 0 {
		args = nil
	}
	return Command{Name: strings.ToLower(name), Args: args}, true
}

// telegramUpdate is the subset of a getUpdates entry the bot reads.
type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// StartPolling long-polls getUpdates and dispatches commands from the
// configured chat; messages from any other chat are dropped. Blocks until
// ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	// getUpdates holds the connection for up to 30s, the client allows a margin.
	client := &http.Client{Timeout: 35 * time.Second, Transport: t.Client.Transport}
	var offset int64

	for {
		select {
		case <-ctx.Done():
			log.Println("[INFO] Telegram polling stopped")
			return
		default:
		}

		params := url.Values{}
		params.Set("offset", strconv.FormatInt(offset, 10))
		params.Set("timeout", "30")
		params.Set("allowed_updates", `["message"]`)
		raw, err := t.call(ctx, client, "getUpdates", params)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("[INFO] Telegram polling stopped")
				return
			}
			log.Printf("[WARN] poll updates: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		var updates []telegramUpdate
		if err := json.Unmarshal(raw, &updates); err != nil {
			log.Printf("[WARN] decode updates: %v", err)
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil {
				continue
			}
			if strconv.FormatInt(u.Message.Chat.ID, 10) != t.ChatID {
				log.Printf("[WARN] ignoring message from unknown chat %d", u.Message.Chat.ID)
				continue
			}
			cmd, ok := ParseCommand(u.Message.Text)
			if !ok {
				continue
			}
			log.Printf("[INFO] received command /%s %v", cmd.Name, cmd.Args)
			if reply := handler(cmd); reply != "" {
				if err := t.Send(reply); err != nil {
					log.Printf("[ERROR] send reply: %v", err)
				}
			}
		}
	}
}
