package redis

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"github.com/Andiquis/xQor3/internal/infra/config"
)

func TestNewClientPingsServer(t *testing.T) {
	server := miniredis.RunT(t)

	client, err := NewClient(context.Background(), config.RedisSettings{Host: server.Host(), Port: mustPort(t, server)}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}

	server.Close()
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatalf("expected health check to fail after server shutdown")
	}
}

func TestNewClientFailsWhenUnreachable(t *testing.T) {
	server := miniredis.RunT(t)
	port := mustPort(t, server)
	server.Close()

	if _, err := NewClient(context.Background(), config.RedisSettings{Host: "127.0.0.1", Port: port}, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func mustPort(t *testing.T, server *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(server.Port())
	if err != nil {
		t.Fatalf("parse miniredis port: %v", err)
	}
	return port
}
