package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Triggers an on-demand contract search against a running server.
// Usage: TOKEN=<jwt> go run ./cmd/tools/trigger [keyword]
func main() {
	token := strings.TrimSpace(os.Getenv("TOKEN"))
	if token == "" {
		fmt.Println("Missing TOKEN environment variable (login first and export the JWT)")
		os.Exit(1)
	}

	keyword := ""
	if len(os.Args) > 1 {
		keyword = os.Args[1]
	}

	body, _ := json.Marshal(map[string]string{"keyword": keyword})

	url := "http://localhost:8081/api/v1/contracts/search"
	req, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	fmt.Printf("Response Status: %s\n", resp.Status)
	payload, _ := io.ReadAll(resp.Body)
	fmt.Println(string(payload))
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
