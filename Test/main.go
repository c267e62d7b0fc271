// Command Test is a small interactive client for the event channel. It logs
// in, opens the websocket, prints every event it receives and lets you join
// a conversation, type and send messages.
//
//	go run ./Test -server http://localhost:5000
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func main() {
	server := flag.String("server", "http://localhost:5000", "API base URL")
	flag.Parse()
	log := logrus.New()
	reader := bufio.NewReader(os.Stdin)

	username := prompt(reader, "Username: ")
	password := prompt(reader, "Password: ")

	token, userID, err := login(*server, username, password)
	if err != nil {
		log.WithError(err).Fatal("login failed")
	}

	wsURL, err := url.Parse(*server)
	if err != nil {
		log.WithError(err).Fatal("invalid server url")
	}
	wsURL.Scheme = strings.Replace(wsURL.Scheme, "http", "ws", 1)
	wsURL.Path = "/ws"
	wsURL.RawQuery = url.Values{"token": {token}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		log.WithError(err).Fatal("websocket connection failed")
	}
	defer conn.Close()
	log.WithField("user_id", userID).Info("connected")

	go func() {
		for {
			var ev envelope
			if err := conn.ReadJSON(&ev); err != nil {
				log.WithError(err).Warn("read error")
				os.Exit(1)
			}
			fmt.Printf("\n<- %s %s\n> ", ev.Event, ev.Data)
		}
	}()

	fmt.Println("commands: join <userId> | typing <userId> | stop <userId> | send <userId> <text> | quit")
	for {
		fields := strings.SplitN(prompt(reader, "> "), " ", 3)
		if len(fields) == 0 || fields[0] == "" {
			continue
		}
		if fields[0] == "quit" {
			return
		}
		if len(fields) < 2 {
			fmt.Println("missing userId")
			continue
		}
		partner, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println("invalid userId")
			continue
		}

		pair := map[string]int64{"userId": userID, "partnerId": partner}
		switch fields[0] {
		case "join":
			err = send(conn, "join-chat", pair)
		case "typing":
			err = send(conn, "typing-start", pair)
		case "stop":
			err = send(conn, "typing-stop", pair)
		case "send":
			if len(fields) < 3 {
				fmt.Println("missing text")
				continue
			}
			err = sendMessage(*server, token, partner, fields[2])
		default:
			fmt.Println("unknown command")
			continue
		}
		if err != nil {
			log.WithError(err).Warn(fields[0] + " failed")
		}
	}
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func send(conn *websocket.Conn, event string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(envelope{Event: event, Data: raw})
}

func login(server, username, password string) (string, int64, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(server+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	var out struct {
		ID    int64  `json:"id"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("%s: %s", resp.Status, out.Error)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "jwt" {
			return c.Value, out.ID, nil
		}
	}
	return "", 0, fmt.Errorf("no session cookie in response")
}

func sendMessage(server, token string, to int64, text string) error {
	body, _ := json.Marshal(map[string]interface{}{"receiverId": to, "content": text})
	req, err := http.NewRequest(http.MethodPost, server+"/api/users/send-message", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("send message: %s", resp.Status)
	}
	return nil
}
