package serve_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opst/backorder/cmd/backorder/subcommands/common"
	"github.com/opst/backorder/cmd/backorder/subcommands/internal/commandline"
	"github.com/opst/backorder/cmd/backorder/subcommands/serve"
	configs "github.com/opst/backorder/pkg/configs/pipeline"
	"github.com/opst/backorder/pkg/logger"
	"github.com/opst/backorder/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func freePort(t *testing.T) int {
	t.Helper()
	l := try.To(net.Listen("tcp", "127.0.0.1:0")).OrFatal(t)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// waitReady polls url until it responds.
func waitReady(t *testing.T, url string) int {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return resp.StatusCode
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server is not ready: %s", url)
	return 0
}

func start(
	ctx context.Context, commonFlags common.CommonFlags, conf configs.Config, flags serve.Flags,
) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- serve.Task(
			ctx, logger.Null(), commonFlags, conf,
			commandline.New("backorder serve", flags, nil),
			[]any{},
		)
	}()
	return done
}

func config(t *testing.T) configs.Config {
	root := t.TempDir()
	conf := configs.Default()
	conf.ArtifactRoot = filepath.Join(root, "artifacts")
	conf.RegistryRoot = filepath.Join(root, "registry")
	conf.PredictionRoot = filepath.Join(root, "predictions")
	conf.Server.LogLevel = "off"
	return conf
}

func TestServeCommand(t *testing.T) {
	t.Run("it serves until the context is canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		port := freePort(t)
		done := start(ctx, common.CommonFlags{}, config(t), serve.Flags{Port: port})

		if status := waitReady(t, fmt.Sprintf("http://127.0.0.1:%d/api/models/", port)); status != http.StatusOK {
			t.Errorf("GET /api/models: status %d", status)
		}
		if status := waitReady(t, fmt.Sprintf("http://127.0.0.1:%d/api/models/latest/", port)); status != http.StatusNotFound {
			t.Errorf("GET /api/models/latest: status %d", status)
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(20 * time.Second):
			t.Fatal("server does not stop")
		}
	})

	t.Run("it stops when the configuration file is modified", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		confPath := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(confPath, []byte("{}\n"), os.FileMode(0o644)); err != nil {
			t.Fatal(err)
		}

		port := freePort(t)
		done := start(ctx, common.CommonFlags{Config: confPath}, config(t), serve.Flags{Port: port})
		waitReady(t, fmt.Sprintf("http://127.0.0.1:%d/api/models/", port))

		if err := os.WriteFile(confPath, []byte("{}\n{}\n"), os.FileMode(0o644)); err != nil {
			t.Fatal(err)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(20 * time.Second):
			t.Fatal("server does not stop")
		}
	})

	t.Run("when port is out of range, it is a usage error", func(t *testing.T) {
		err := <-start(context.Background(), common.CommonFlags{}, config(t), serve.Flags{Port: 70000})
		if !errors.Is(err, flarc.ErrUsage) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
