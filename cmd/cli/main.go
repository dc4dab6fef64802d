package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func main() {
	_ = godotenv.Load()

	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	key := os.Getenv("ADMIN_API_KEY")

	reader := bufio.NewReader(os.Stdin)

	name := prompt(reader, "Item name: ")
	if name == "" {
		fmt.Println("Name is required.")
		return
	}

	raw := prompt(reader, "Product URL (e.g., https://shop.example.com/p/42): ")
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		fmt.Println("Invalid URL.")
		return
	}

	shop := prompt(reader, "Shop key (blank for none): ")
	selector := prompt(reader, "CSS selector (blank for auto-detect): ")

	var initial float64
	if s := prompt(reader, "Known current price (blank to discover): "); s != "" {
		v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil || v <= 0 {
			fmt.Println("Invalid price.")
			return
		}
		initial = v
	}

	body, _ := json.Marshal(map[string]any{
		"name":          name,
		"url":           raw,
		"shop":          shop,
		"selector":      selector,
		"initial_price": initial,
	})
	req, err := http.NewRequest(http.MethodPost, api+"/api/items", bytes.NewReader(body))
	if err != nil {
		fmt.Println("Error building request:", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		fmt.Println("Added! Check the API logs and GET /api/items.")
	} else {
		fmt.Println("API returned status:", resp.Status)
	}
}
