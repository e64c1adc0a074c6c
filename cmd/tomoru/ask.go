package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [text]",
	Short: "Send one message to the AI host and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

type chatTurn struct {
	UserText      string `json:"user_text"`
	AssistantText string `json:"assistant_text"`
	Outcome       string `json:"outcome"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 90 * time.Second}
	text := strings.Join(args, " ")

	var visit struct {
		ID string `json:"id"`
	}
	if err := doJSON(client, http.MethodPost, serverURL+"/api/visits", nil, http.StatusCreated, &visit); err != nil {
		return err
	}
	defer func() {
		req, _ := http.NewRequest(http.MethodDelete, serverURL+"/api/visits/"+visit.ID, nil)
		if resp, err := client.Do(req); err == nil {
			resp.Body.Close()
		}
	}()

	var turn chatTurn
	body := map[string]string{"text": text}
	if err := doJSON(client, http.MethodPost, serverURL+"/api/visits/"+visit.ID+"/chat", body, http.StatusOK, &turn); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), turn.AssistantText)
	if turn.Outcome != "reply" {
		fmt.Fprintf(cmd.ErrOrStderr(), "(%s)\n", turn.Outcome)
	}
	return nil
}

func doJSON(client *http.Client, method, url string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to server: %w\nIs the server running? Start it with: tomoru serve", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
