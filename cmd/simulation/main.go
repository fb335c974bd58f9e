package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"
)

const (
	apiBase           = "http://localhost:8000"
	simulationBatches = 20
	injectionInterval = 2 * time.Second
)

type taskResponse struct {
	Oid    string `json:"oid"`
	Status string `json:"status"`
}

func main() {
	client := &http.Client{Timeout: 5 * time.Second}

	fmt.Println("Starting traffic simulation against", apiBase)

	var oids []string
	ticker := time.NewTicker(injectionInterval)
	defer ticker.Stop()

	for batch := 0; batch < simulationBatches; batch++ {
		<-ticker.C
		batchSize := rand.Intn(5) + 1
		fmt.Printf("[Generator] Injecting %d new tasks...\n", batchSize)

		for i := 0; i < batchSize; i++ {
			oid, err := createTask(client, fmt.Sprintf("sim task batch=%d n=%d", batch, i))
			if err != nil {
				log.Printf("create failed: %v", err)
				continue
			}
			oids = append(oids, oid)
		}
	}

	fmt.Printf("Created %d tasks, waiting for terminal statuses...\n", len(oids))

	deadline := time.Now().Add(30 * time.Second)
	pending := oids
	for len(pending) > 0 && time.Now().Before(deadline) {
		time.Sleep(500 * time.Millisecond)
		var still []string
		for _, oid := range pending {
			status, err := fetchStatus(client, oid)
			if err != nil || (status != "completed" && status != "failed") {
				still = append(still, oid)
			}
		}
		pending = still
	}

	if len(pending) == 0 {
		fmt.Println("Simulation complete: every task reached a terminal status.")
	} else {
		fmt.Printf("Simulation finished with %d tasks still in flight.\n", len(pending))
	}
}

func createTask(client *http.Client, description string) (string, error) {
	body, _ := json.Marshal(map[string]string{"description": description})
	resp, err := client.Post(apiBase+"/tasks/", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var task taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return "", err
	}
	return task.Oid, nil
}

func fetchStatus(client *http.Client, oid string) (string, error) {
	resp, err := client.Get(apiBase + "/tasks/" + oid + "/")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var task taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return "", err
	}
	return task.Status, nil
}
