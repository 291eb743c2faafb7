package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/mickaelvieira/mighty-qa-go-example/internal/handlers"
	"github.com/spf13/cobra"
)

const (
	DefaultPort = "8501"
	DefaultHost = "127.0.0.1"
)

type serverFlags struct {
	host string
	port string
}

func (f *serverFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.port, "port", DefaultPort, "The port the web server should listen on")
	cmd.Flags().StringVar(&f.host, "host", DefaultHost, "The host the web server should listen on")
}

func (f *serverFlags) addr() string {
	return net.JoinHostPort(f.host, f.port)
}

// sessionSecret returns the configured secret, or a random one in which case
// the sessions do not survive a restart.
func sessionSecret(secret string) []byte {
	if secret != "" {
		return []byte(secret)
	}
	slog.Warn("SESSION_SECRET is not set, using a random key")
	return securecookie.GenerateRandomKey(32)
}

func banner(out io.Writer, name string) {
	fmt.Fprintln(out, figure.NewFigure(name, "cybermedium", true).String())
}

// newRouter wraps the whole router with the request logger, so requests
// matching no route are logged as well.
func newRouter(routes func(*mux.Router)) http.Handler {
	router := mux.NewRouter()
	routes(router)
	return handlers.Logger(router)
}

// listen serves the router until the process is interrupted.
func listen(cmd *cobra.Command, addr string, router http.Handler) error {
	server := &http.Server{
		Handler:      router,
		Addr:         addr,
		WriteTimeout: 180 * time.Second,
		ReadTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		slog.Info(fmt.Sprintf("Server listening on http://%s", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdown); err != nil {
		slog.Error("an error occurred while shutting down the server", "error", err)
		return err
	}

	slog.Info("server was successfully shutdown")

	return nil
}
