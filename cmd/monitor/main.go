package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// LogEntry matches the zap JSON structure emitted by the pipeline
type LogEntry struct {
	Level   string `json:"level"`
	Msg     string `json:"msg"`
	TaskOid string `json:"task_oid"`
	Status  string `json:"status"`
	Worker  int    `json:"worker"`
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[37m"
)

func main() {
	fmt.Println(colorCyan + "Task Pipeline Activity Monitor Starting..." + colorReset)
	fmt.Println(colorGray + "Following task lifecycle events from the pipeline container..." + colorReset)
	fmt.Println("-------------------------------------------------------------------------")

	cmd := exec.Command("docker", "compose", "logs", "-f", "--no-log-prefix", "pipeline")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		fmt.Printf("Error creating stdout pipe: %v\n", err)
		return
	}

	if err := cmd.Start(); err != nil {
		fmt.Printf("Error starting docker logs command: %v\n", err)
		return
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		start := strings.Index(line, "{")
		if start < 0 {
			continue
		}

		var entry LogEntry
		if err := json.Unmarshal([]byte(line[start:]), &entry); err != nil {
			continue
		}
		if entry.TaskOid == "" {
			continue
		}

		color := colorGray
		switch {
		case entry.Level == "ERROR":
			color = colorRed
		case entry.Status == "completed":
			color = colorGreen
		case strings.Contains(entry.Msg, "enqueued"):
			color = colorYellow
		case strings.Contains(entry.Msg, "Executing"):
			color = colorCyan
		}

		short := entry.TaskOid
		if len(short) > 8 {
			short = short[:8]
		}
		fmt.Printf("%s[%s] task=%s worker=%d %s%s\n",
			color, entry.Level, short, entry.Worker, entry.Msg, colorReset)
	}

	_ = cmd.Wait()
}
