// Command admin is a small CLI over the service's admin HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"strangerchat/backend/internal/api/handler"

	"github.com/joho/godotenv"
)

const usage = `Usage: admin <command> [args]

Commands:
  ban <user_id> [reason]        ban a participant
  unban <user_id>               lift a ban
  checkban <user_id>            show ban status
  report <report_id>            show a report
  accept <report_id>            accept a report (bans the reported participant)
  reject <report_id>            reject a report
  addsudo <user_id> <username>  add an administrator (owner only)
  delsudo <user_id>             remove an administrator (owner only)
  messages <pairing_id>         show relayed messages of a pairing
  stats                         show service statistics

Environment:
  ADMIN_API_URL     service address (default http://localhost:8080)
  ADMIN_JWT_SECRET  shared secret of the admin API
  ADMIN_ID          acting administrator (default BOT_OWNER_ID)
`

type client struct {
	base  string
	token string
	http  *http.Client
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	c, err := newClient()
	if err != nil {
		fail(err)
	}
	if err := c.dispatch(os.Args[1], os.Args[2:]); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func newClient() (*client, error) {
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("ADMIN_JWT_SECRET is not set")
	}
	idStr := os.Getenv("ADMIN_ID")
	if idStr == "" {
		idStr = os.Getenv("BOT_OWNER_ID")
	}
	adminID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || adminID == 0 {
		return nil, fmt.Errorf("ADMIN_ID or BOT_OWNER_ID must be a user id")
	}
	token, err := handler.IssueToken([]byte(secret), adminID, handler.RoleAdmin, 5*time.Minute)
	if err != nil {
		return nil, err
	}

	base := os.Getenv("ADMIN_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	return &client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (c *client) dispatch(command string, args []string) error {
	need := func(n int, form string) error {
		if len(args) < n {
			return fmt.Errorf("usage: admin %s %s", command, form)
		}
		if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
			return fmt.Errorf("invalid id %q", args[0])
		}
		return nil
	}

	switch command {
	case "ban":
		if err := need(1, "<user_id> [reason]"); err != nil {
			return err
		}
		id, _ := strconv.ParseInt(args[0], 10, 64)
		return c.call(http.MethodPost, "/api/bans", map[string]any{
			"target_id": id,
			"reason":    strings.Join(args[1:], " "),
		})
	case "unban":
		if err := need(1, "<user_id>"); err != nil {
			return err
		}
		return c.call(http.MethodDelete, "/api/bans/"+args[0], nil)
	case "checkban":
		if err := need(1, "<user_id>"); err != nil {
			return err
		}
		return c.call(http.MethodGet, "/api/bans/"+args[0], nil)
	case "report":
		if err := need(1, "<report_id>"); err != nil {
			return err
		}
		return c.call(http.MethodGet, "/api/reports/"+args[0], nil)
	case "accept", "reject":
		if err := need(1, "<report_id>"); err != nil {
			return err
		}
		return c.call(http.MethodPost, "/api/reports/"+args[0]+"/decision", map[string]string{"action": command})
	case "addsudo":
		if err := need(2, "<user_id> <username>"); err != nil {
			return err
		}
		id, _ := strconv.ParseInt(args[0], 10, 64)
		return c.call(http.MethodPost, "/api/admins", map[string]any{"id": id, "username": args[1]})
	case "delsudo":
		if err := need(1, "<user_id>"); err != nil {
			return err
		}
		return c.call(http.MethodDelete, "/api/admins/"+args[0], nil)
	case "messages":
		if err := need(1, "<pairing_id>"); err != nil {
			return err
		}
		return c.call(http.MethodGet, "/api/pairings/"+args[0]+"/messages", nil)
	case "stats":
		return c.call(http.MethodGet, "/api/stats", nil)
	}
	fmt.Print(usage)
	return fmt.Errorf("unknown command %q", command)
}

// call sends the request and prints the response body, indented.
func (c *client) call(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNoContent {
		fmt.Println("OK")
		return nil
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		data = pretty.Bytes()
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, data)
	}
	fmt.Println(string(data))
	return nil
}
