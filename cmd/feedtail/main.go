// Command feedtail logs in and prints the activity feed of one campaign.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"dungeon-ledger/backend/pkg/logger"

	"github.com/gorilla/websocket"
)

func main() {
	baseURL := flag.String("base", "http://localhost:8081", "Server base URL")
	email := flag.String("email", "", "Account email")
	password := flag.String("password", os.Getenv("FEEDTAIL_PASSWORD"), "Account password (or FEEDTAIL_PASSWORD)")
	token := flag.String("token", os.Getenv("FEEDTAIL_TOKEN"), "Access token; skips login when set")
	campaignID := flag.Uint("campaign", 0, "Campaign id to follow")
	flag.Parse()

	log := logger.New(logger.Config{Level: "info", JSON: false, Output: os.Stderr})

	if *campaignID == 0 || (*token == "" && (*email == "" || *password == "")) {
		fmt.Fprintln(os.Stderr, "Usage: feedtail -campaign ID (-token TOKEN | -email EMAIL -password PASSWORD) [-base URL]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *token == "" {
		t, err := login(ctx, http.DefaultClient, *baseURL, *email, *password)
		if err != nil {
			log.LogError(err, "Login failed")
			os.Exit(1)
		}
		*token = t
	}

	target, err := feedURL(*baseURL, *campaignID, *token)
	if err != nil {
		log.LogError(err, "Invalid base URL")
		os.Exit(1)
	}

	log.Info("Following campaign feed", "campaign_id", *campaignID)
	if err := tail(ctx, target, os.Stdout); err != nil {
		log.LogError(err, "Feed ended")
		os.Exit(1)
	}
}

// login exchanges credentials for an access token
func login(ctx context.Context, client *http.Client, baseURL, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/v1/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("login returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if out.Token == "" {
		return "", errors.New("login response carried no token")
	}
	return out.Token, nil
}

// feedURL turns the http base URL into the websocket feed URL of a campaign
func feedURL(baseURL string, campaignID uint, token string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + fmt.Sprintf("/api/v1/campaigns/%d/feed", campaignID)
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

// tail writes one line per feed event to out until ctx is done or the server closes the feed
func tail(ctx context.Context, target string, out io.Writer) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connect feed: %s: %w", resp.Status, err)
		}
		return fmt.Errorf("connect feed: %w", err)
	}
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
					err = nil
				}
				done <- err
				return
			}

			var event struct {
				Type    string    `json:"type"`
				ActorID string    `json:"actor_id"`
				At      time.Time `json:"at"`
			}
			if err := json.Unmarshal(message, &event); err != nil {
				continue
			}
			fmt.Fprintf(out, "%s %-24s by %s\n", event.At.Format(time.RFC3339), event.Type, event.ActorID)
		}
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return nil
	}
}
