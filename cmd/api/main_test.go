package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHTTPServer() *http.Server {
	return &http.Server{
		Addr:    "127.0.0.1:0",
		Handler: http.NotFoundHandler(),
	}
}

func startServe(sweep func(context.Context) error, shutdown <-chan os.Signal) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- serve(context.Background(), newTestHTTPServer(), sweep, shutdown, zerolog.Nop())
	}()
	return done
}

func TestServe_DisabledSweeperKeepsServing(t *testing.T) {
	shutdown := make(chan os.Signal, 1)
	done := startServe(nil, shutdown)

	select {
	case err := <-done:
		t.Fatalf("serve returned without a shutdown signal: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	shutdown <- syscall.SIGTERM
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after the shutdown signal")
	}
}

func TestServe_SignalStopsSweeper(t *testing.T) {
	shutdown := make(chan os.Signal, 1)
	stopped := make(chan struct{})
	sweep := func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	}
	done := startServe(sweep, shutdown)

	time.Sleep(50 * time.Millisecond)
	shutdown <- os.Interrupt

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after the shutdown signal")
	}
	select {
	case <-stopped:
	default:
		t.Fatal("sweeper was not cancelled")
	}
}

func TestServe_SweeperFailureStopsServer(t *testing.T) {
	boom := errors.New("store unavailable")
	done := startServe(func(context.Context) error { return boom }, make(chan os.Signal))

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "expiration sweeper stopped")
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after the sweeper failed")
	}
}

func TestUTCNow(t *testing.T) {
	assert.Equal(t, time.UTC, utcNow().Location())
}
