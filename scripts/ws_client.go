// Package main submits an instance file to a running API and prints the
// run's progress events until it finishes.
//
//	go run ./scripts/ws_client.go instances/gdb1.dat
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/gorilla/websocket"
)

type event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: ws_client <instance file>")
	}
	text, err := os.ReadFile(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	body, _ := json.Marshal(map[string]any{"instance": string(text)})
	resp, err := http.Post(base+"/v1/solve", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		log.Fatalf("solve: %s: %s", resp.Status, b)
	}
	var run struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal(err)
	}
	log.Printf("Run ID: %s", run.ID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + run.ID + "/events"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	for {
		var evt event
		if err := c.ReadJSON(&evt); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("read: %v", err)
			}
			break
		}
		switch evt.Type {
		case "run.progress":
			log.Printf("iteration %v best %v (iteration best %v, stagnation %v)",
				evt.Data["iteration"], evt.Data["bestCost"], evt.Data["iterationBest"], evt.Data["stagnation"])
		default:
			log.Printf("%s: %v", evt.Type, evt.Data)
		}
	}

	sol, err := http.Get(base + "/v1/runs/" + run.ID + "/solution.dat")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = sol.Body.Close() }()
	_, _ = io.Copy(os.Stdout, sol.Body)
}
