package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// SystemInfoTool reports host CPU, memory, GPU, disk, locally-loaded Ollama
// models, and uptime. Every section is gathered independently and degrades
// gracefully: a section that fails (missing binary, command error, no GPU)
// is simply omitted rather than failing the whole call.
type SystemInfoTool struct {
	// Shell is the shell binary used to run each section's command line.
	// Defaults to /bin/sh.
	Shell string
	// Timeout bounds each individual shell-out. Defaults to 5s.
	Timeout time.Duration
	// OllamaURL is polled for currently loaded models. Defaults to
	// http://localhost:11434/api/ps.
	OllamaURL string

	httpClient *http.Client
}

// NewSystemInfoTool creates a SystemInfoTool with the donor's defaults.
func NewSystemInfoTool() *SystemInfoTool {
	return &SystemInfoTool{
		Shell:      "/bin/sh",
		Timeout:    5 * time.Second,
		OllamaURL:  "http://localhost:11434/api/ps",
		httpClient: &http.Client{Timeout: 3 * time.Second},
	}
}

// Run implements Tool. The query argument is accepted for interface
// uniformity but unused: this tool always reports the same sections.
func (t *SystemInfoTool) Run(ctx context.Context, _ string) (string, error) {
	var sections []string

	if s := t.cpu(ctx); s != "" {
		sections = append(sections, s)
	}
	if s := t.memory(ctx); s != "" {
		sections = append(sections, s)
	}
	if s := t.gpu(ctx); s != "" {
		sections = append(sections, s)
	}
	if s := t.disk(ctx); s != "" {
		sections = append(sections, s)
	}
	if s := t.ollama(ctx); s != "" {
		sections = append(sections, s)
	}
	if s := t.uptime(ctx); s != "" {
		sections = append(sections, s)
	}

	if len(sections) == 0 {
		return "Could not gather system information.", nil
	}
	return strings.Join(sections, "\n"), nil
}

func (t *SystemInfoTool) run(ctx context.Context, cmdline string) (string, error) {
	shell := t.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, shell, "-c", cmdline)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

func (t *SystemInfoTool) cpu(ctx context.Context) string {
	model, err := t.run(ctx, "grep -m1 'model name' /proc/cpuinfo | cut -d: -f2")
	if err != nil {
		return ""
	}
	cores, err := t.run(ctx, "nproc")
	if err != nil {
		cores = "?"
	}
	load, err := t.run(ctx, "cat /proc/loadavg | cut -d' ' -f1-3")
	if err != nil {
		load = "?"
	}
	return fmt.Sprintf("CPU: %s (%s cores)\nLoad average: %s", strings.TrimSpace(model), cores, load)
}

func (t *SystemInfoTool) memory(ctx context.Context) string {
	out, err := t.run(ctx, "free -h")
	if err != nil || out == "" {
		return ""
	}
	return "Memory:\n" + out
}

func (t *SystemInfoTool) gpu(ctx context.Context) string {
	out, err := t.run(ctx, "nvidia-smi --query-gpu=name,memory.used,memory.total,utilization.gpu --format=csv,noheader,nounits")
	if err != nil || out == "" {
		return "GPU: nvidia-smi not available"
	}
	return "GPU:\n" + out
}

func (t *SystemInfoTool) disk(ctx context.Context) string {
	out, err := t.run(ctx, "df -h /")
	if err != nil || out == "" {
		return ""
	}
	return "Disk:\n" + out
}

func (t *SystemInfoTool) uptime(ctx context.Context) string {
	out, err := t.run(ctx, "uptime -p")
	if err != nil || out == "" {
		return ""
	}
	return "Uptime: " + out
}

// ollamaProcess is one entry of Ollama's /api/ps response.
type ollamaProcess struct {
	Name     string `json:"name"`
	SizeVRAM int64  `json:"size_vram"`
}

type ollamaPSResponse struct {
	Models []ollamaProcess `json:"models"`
}

func (t *SystemInfoTool) ollama(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.OllamaURL, nil)
	if err != nil {
		return ""
	}
	client := t.httpClient
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var parsed ollamaPSResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || len(parsed.Models) == 0 {
		return ""
	}

	lines := []string{"Ollama loaded models:"}
	for _, m := range parsed.Models {
		lines = append(lines, fmt.Sprintf("  %s (%d MB VRAM)", m.Name, m.SizeVRAM/1024/1024))
	}
	return strings.Join(lines, "\n")
}
