// Command acqctl is a small operator CLI for a running ACQ server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "acqctl",
		Usage: "Operator CLI for the ACQ API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Base URL of the API server",
				Value:   "http://localhost:8090",
				EnvVars: []string{"ACQ_SERVER"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer access token",
				EnvVars: []string{"ACQ_TOKEN"},
			},
		},
		Commands: []*cli.Command{
			healthCommand(),
			loginCommand(),
			snapshotCommand(),
			chatCommand(),
			ideasCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}

func call(c *cli.Context, method, path string, body interface{}) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(encoded)
	}

	url := strings.TrimRight(c.String("server"), "/") + path
	req, err := http.NewRequestWithContext(c.Context, method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.String("token"); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient().Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

func printJSON(data []byte) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(buf.String())
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the server is up",
		Action: func(c *cli.Context) error {
			data, status, err := call(c, http.MethodGet, "/health", nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("server unhealthy: %d %s", status, data)
			}
			printJSON(data)
			return nil
		},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Exchange credentials for a token pair",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true},
		},
		Action: func(c *cli.Context) error {
			data, status, err := call(c, http.MethodPost, "/api/v1/auth/login", map[string]string{
				"email":    c.String("email"),
				"password": c.String("password"),
			})
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("login failed: %d %s", status, data)
			}
			printJSON(data)
			return nil
		},
	}
}

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Fetch the inbox snapshot for a workspace",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "workspace", Aliases: []string{"w"}, Required: true},
			&cli.StringFlag{Name: "question", Usage: "Optional question to bias @handle rescue"},
		},
		Action: func(c *cli.Context) error {
			path := fmt.Sprintf("/api/v1/workspaces/%d/inbox/snapshot", c.Int64("workspace"))
			if q := c.String("question"); q != "" {
				path += "?question=" + strings.ReplaceAll(q, " ", "+")
			}
			data, status, err := call(c, http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("snapshot failed: %d %s", status, data)
			}
			printJSON(data)
			return nil
		},
	}
}

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Send one chat message and print the reply",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "workspace", Aliases: []string{"w"}, Required: true},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Required: true},
			&cli.StringFlag{Name: "model", Usage: "Optional model id override"},
		},
		Action: func(c *cli.Context) error {
			data, status, err := call(c, http.MethodPost, "/api/v1/ai/chat", map[string]interface{}{
				"workspaceId": c.Int64("workspace"),
				"modelId":     c.String("model"),
				"messages": []map[string]string{
					{"role": "user", "content": c.String("message")},
				},
			})
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("chat failed: %d %s", status, data)
			}
			printJSON(data)
			return nil
		},
	}
}

func ideasCommand() *cli.Command {
	return &cli.Command{
		Name:  "ideas",
		Usage: "Trigger weekly idea generation for a workspace",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "workspace", Aliases: []string{"w"}, Required: true},
			&cli.StringFlag{Name: "phase", Usage: "Optional lead phase filter"},
		},
		Action: func(c *cli.Context) error {
			path := fmt.Sprintf("/api/v1/workspaces/%d/ai/content", c.Int64("workspace"))
			data, status, err := call(c, http.MethodPost, path, map[string]string{
				"action":      "generate-weekly-ideas",
				"phaseFilter": c.String("phase"),
			})
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("idea generation failed: %d %s", status, data)
			}
			printJSON(data)
			return nil
		},
	}
}
