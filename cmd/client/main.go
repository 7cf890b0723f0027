// Command client is a CLI smoke-test client for the order-execution
// pipeline's HTTP/WebSocket surface (spec.md §6), adapted from the
// teacher's cmd/client/main.go subcommand-and-flag-set shape.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "server URL")

	submitCmd := flag.NewFlagSet("submit", flag.ExitOnError)
	submitTokenIn := submitCmd.String("token-in", "SOL", "token being sold")
	submitTokenOut := submitCmd.String("token-out", "USDC", "token being bought")
	submitAmount := submitCmd.Uint64("amount", 1000000, "amount of token-in, in base units")
	submitWatch := submitCmd.Bool("watch", false, "subscribe to the order's status stream after submitting")

	historyCmd := flag.NewFlagSet("history", flag.ExitOnError)
	historyLimit := historyCmd.Int("limit", 20, "page size")
	historyCursor := historyCmd.String("cursor", "", "pagination cursor from a previous page")

	watchCmd := flag.NewFlagSet("watch", flag.ExitOnError)
	watchOrderID := watchCmd.String("order-id", "", "order ID to subscribe to")

	demoCmd := flag.NewFlagSet("demo", flag.ExitOnError)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	flag.Parse()

	switch os.Args[1] {
	case "submit":
		submitCmd.Parse(os.Args[2:])
		submitOrder(*serverURL, *submitTokenIn, *submitTokenOut, *submitAmount, *submitWatch)
	case "history":
		historyCmd.Parse(os.Args[2:])
		getHistory(*serverURL, *historyLimit, *historyCursor)
	case "watch":
		watchCmd.Parse(os.Args[2:])
		if *watchOrderID == "" {
			fmt.Println("watch requires -order-id")
			os.Exit(1)
		}
		watchOrder(*serverURL, *watchOrderID)
	case "demo":
		demoCmd.Parse(os.Args[2:])
		runDemo(*serverURL)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`DEX Order Execution Client

Usage:
  client <command> [options]

Commands:
  submit    Submit a swap order
  history   View paginated order history
  watch     Subscribe to a single order's status stream
  demo      Run a submit-then-watch demonstration

Examples:
  client submit -token-in SOL -token-out USDC -amount 1000000 -watch
  client history -limit 10
  client watch -order-id 7KQ2M9XH4RTA
  client demo`)
}

func submitOrder(serverURL, tokenIn, tokenOut string, amount uint64, watch bool) {
	body := map[string]any{
		"tokenIn":  tokenIn,
		"tokenOut": tokenOut,
		"amount":   amount,
	}

	resp, err := postJSON(serverURL+"/api/orders/execute", body)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("Order accepted:")
	printJSON(resp)

	if !watch {
		return
	}
	orderID, _ := resp["orderId"].(string)
	if orderID == "" {
		fmt.Println("no orderId in response, cannot watch")
		return
	}
	watchOrder(serverURL, orderID)
}

func getHistory(serverURL string, limit int, cursor string) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	resp, err := http.Get(serverURL + "/api/orders/history?" + q.Encode())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Println("Order history:")
	printJSONBytes(body)
}

// watchOrder dials the status WebSocket and prints each frame as it
// arrives, until the connection closes (normal closure on a terminal
// status, or an error).
func watchOrder(serverURL, orderID string) {
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/api/orders/execute?orderId=" + url.QueryEscape(orderID)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Printf("Error connecting to status stream: %v\n", err)
		return
	}
	defer conn.Close()

	fmt.Printf("Watching order %s...\n", orderID)
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				fmt.Println("stream closed: order reached a terminal state")
				return
			}
			fmt.Printf("stream closed: %v\n", err)
			return
		}
		fmt.Printf("[%s] %v\n", time.Now().Format(time.RFC3339), msg["status"])
		printJSON(msg)
	}
}

func runDemo(serverURL string) {
	fmt.Println("=== Order Execution Demo ===")

	fmt.Println("\n1. Submitting a SOL -> USDC market order:")
	submitOrder(serverURL, "SOL", "USDC", 1000000, true)

	fmt.Println("\n2. Recent order history:")
	getHistory(serverURL, 5, "")

	fmt.Println("\n=== Demo Complete ===")
}

func postJSON(reqURL string, data any) (map[string]any, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(reqURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	err = json.Unmarshal(body, &result)
	return result, err
}

func printJSON(data any) {
	jsonBytes, _ := json.MarshalIndent(data, "", "  ")
	fmt.Println(string(jsonBytes))
}

func printJSONBytes(data []byte) {
	var obj any
	json.Unmarshal(data, &obj)
	printJSON(obj)
}
