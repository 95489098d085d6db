package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/janelia-flyem/dvidproxy/dvid"
	"github.com/janelia-flyem/dvidproxy/storage"
)

// Serve builds the configured store stack and serves HTTP requests until the
// context is canceled, then shuts down gracefully, allowing in-flight requests
// up to the configured shutdown delay.
func Serve(ctx context.Context, config *Config) error {
	store, err := config.NewStack()
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.Close(store); err != nil {
			dvid.Errorf("Error closing store %s: %v\n", store, err)
		}
	}()

	service := NewService(store, config.Server)
	address := config.Server.HTTPAddress
	if address == "" {
		address = DefaultWebAddress
	}
	srv := &http.Server{
		Addr:    address,
		Handler: service.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		dvid.Infof("Web server listening at %s ...\n", address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	delay := time.Duration(config.Server.ShutdownDelay) * time.Second
	dvid.Infof("Shutting down web server, waiting up to %s for requests to complete...\n", delay)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), delay)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		dvid.Warningf("Web server shutdown: %v\n", err)
		return srv.Close()
	}
	return nil
}
