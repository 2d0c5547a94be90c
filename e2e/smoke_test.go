//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"climalog/internal/mqtt"
)

const repoRootRel = ".."          // relative to ./e2e
const mainPkgRel = "./cmd/server" // server main package

const mosquittoPort = nat.Port("1883/tcp")

type reading struct {
	DeviceID    string  `json:"deviceId"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Timestamp   any     `json:"timestamp,omitempty"`
}

func TestSmoke_HTTPAndMQTTIngestion(t *testing.T) {
	repoRoot := repoRootPath(t)
	brokerHost, brokerPort := startMosquitto(t)

	bin := buildBinary(t, repoRoot)
	addr := pickFreeAddr(t)
	dataDir := t.TempDir()

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=debug",
		"HTTP_ADDR="+addr,
		"DB_DRIVER=sqlite3",
		"SQLITE_PATH="+filepath.Join(dataDir, "climalog.db"),
		"FIRMWARE_DIR="+filepath.Join(dataDir, "firmware"),
		"MQTT_ENABLED=true",
		"MQTT_BROKER="+brokerHost,
		"MQTT_PORT="+strconv.Itoa(brokerPort),
		"MQTT_CLIENT_ID=climalog-e2e-server",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})

	client := &http.Client{Timeout: 2 * time.Second}
	base := "http://" + addr
	waitForOK(t, client, base+"/healthz", 10*time.Second)

	// HTTP ingestion and duplicate rejection.
	ts := time.Now().Add(-time.Minute).UnixMilli()
	body := reading{DeviceID: "e2e-http", Temperature: 22.5, Humidity: 48, Timestamp: ts}
	if status := postJSON(t, client, base+"/api/v1/readings", body); status != http.StatusCreated {
		t.Fatalf("POST reading status=%d want=%d", status, http.StatusCreated)
	}
	if status := postJSON(t, client, base+"/api/v1/readings", body); status != http.StatusConflict {
		t.Fatalf("POST duplicate status=%d want=%d", status, http.StatusConflict)
	}

	// MQTT ingestion through the broker.
	pub := mqtt.NewPublisher(brokerHost, brokerPort, "climalog-e2e-publisher", nil)
	connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pub.Connect(connectCtx); err != nil {
		t.Fatalf("publisher connect: %v", err)
	}
	t.Cleanup(pub.Disconnect)

	waitForLatest(t, client, base, func(ctx context.Context) error {
		return pub.Publish(ctx, mqtt.ReadingTopic("e2e-mqtt"), reading{DeviceID: "e2e-mqtt", Temperature: 24, Humidity: 55})
	}, "e2e-mqtt", 15*time.Second)

	resp, err := client.Get(base + "/api/v1/readings/history?range=1h")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	var history struct {
		Buckets []json.RawMessage `json:"buckets"`
	}
	err = json.NewDecoder(resp.Body).Decode(&history)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if resp.StatusCode != http.StatusOK || len(history.Buckets) != 12 {
		t.Fatalf("history status=%d buckets=%d want 200/12", resp.StatusCode, len(history.Buckets))
	}

	stopServer(t, cmd)
}

func startMosquitto(t *testing.T) (string, int) {
	t.Helper()
	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2",
		ExposedPorts: []string{string(mosquittoPort)},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.RestartPolicy = container.RestartPolicy{Name: container.RestartPolicyDisabled}
		},
		WaitingFor: wait.ForListeningPort(mosquittoPort).WithStartupTimeout(30 * time.Second),
	}

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mosquitto container: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("mosquitto host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, mosquittoPort)
	if err != nil {
		t.Fatalf("mosquitto port: %v", err)
	}
	return host, mapped.Int()
}

func postJSON(t *testing.T, client *http.Client, url string, v any) int {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode
}

// waitForLatest publishes until the server reports deviceID as the latest
// reading. The server may still be subscribing when the first message goes out.
func waitForLatest(t *testing.T, client *http.Client, base string, publish func(context.Context) error, deviceID string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := publish(ctx)
		cancel()
		if err != nil {
			t.Logf("publish: %v", err)
		}

		resp, err := client.Get(base + "/api/v1/readings/latest")
		if err == nil {
			var got reading
			decodeErr := json.NewDecoder(resp.Body).Decode(&got)
			_ = resp.Body.Close()
			if decodeErr == nil && resp.StatusCode == http.StatusOK && got.DeviceID == deviceID {
				return
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("reading from %s not ingested via mqtt after %s", deviceID, timeout)
}

func repoRootPath(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}

	repo := filepath.Clean(filepath.Join(wd, repoRootRel))
	if _, err := os.Stat(filepath.Join(repo, "go.mod")); err != nil {
		t.Fatalf("repo root %q does not contain go.mod: %v", repo, err)
	}

	return repo
}

func buildBinary(t *testing.T, repoRoot string) string {
	t.Helper()

	out := filepath.Join(t.TempDir(), "climalog-server")

	build := exec.Command("go", "build", "-o", out, mainPkgRel)
	build.Dir = repoRoot
	build.Env = os.Environ()

	b, err := build.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(b))
	}

	return out
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func waitForOK(t *testing.T, client *http.Client, url string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server not healthy after %s: %s", timeout, url)
}

func stopServer(t *testing.T, cmd *exec.Cmd) {
	t.Helper()

	_ = cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		t.Fatalf("server did not exit in time")
	case err := <-done:
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				t.Fatalf("server exited non-zero: %v", err)
			}
			t.Fatalf("server wait error: %v", err)
		}
	}
}
