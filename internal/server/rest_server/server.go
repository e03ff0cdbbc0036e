package rest_server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/okieraised/power-alert-relay/internal/config"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"github.com/okieraised/power-alert-relay/internal/server/rest_server/middlewares"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const shutdownGrace = 3 * time.Second

func getHTTPPort() int {
	port := viper.GetInt(config.RelayHTTPPort)
	if port <= 0 {
		return constants.RelayDefaultHTTPPort
	}
	return port
}

// HTTPRequestTimeout is the per-request deadline applied to the REST API.
func HTTPRequestTimeout() time.Duration {
	timeout := constants.DefaultHTTPRequestTimeout
	if viper.GetInt(config.RelayHTTPRequestTimeout) > 0 {
		timeout = viper.GetInt(config.RelayHTTPRequestTimeout)
	}
	return time.Duration(timeout) * time.Second
}

// NewEngine builds the gin engine with the shared middleware chain and lets
// registerRoutes attach the API.
func NewEngine(registerRoutes func(engine *gin.Engine)) *gin.Engine {
	if mode := viper.GetString(config.RelayHTTPMode); mode != "" {
		gin.SetMode(mode)
	}
	router := gin.New()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodPost, http.MethodGet, http.MethodDelete},
		AllowHeaders: []string{constants.HeaderAccessControlAllowHeaders, constants.HeaderOrigin, constants.HeaderAccept,
			constants.HeaderXRequestedWith, constants.HeaderContentType, constants.HeaderAuthorization, constants.HeaderXAPIKey,
			constants.HeaderXRequestID},
		ExposeHeaders: []string{constants.HeaderContentLength, constants.HeaderXRequestID},
	}))

	router.NoRoute(middlewares.NoRouteMW())
	router.Use(
		middlewares.RequestIDMW(),
		middlewares.RecoveryMW(),
		middlewares.RequestLoggingMW(log.Component("http").Logger),
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{"^/ws"})),
	)

	if registerRoutes != nil {
		registerRoutes(router)
	}
	return router
}

func NewHTTPServer(ctx context.Context, registerRoutes func(engine *gin.Engine)) error {
	log.Default().Info("Initializing HTTP server")

	serverAddr := fmt.Sprintf("0.0.0.0:%d", getHTTPPort())
	srv := &http.Server{
		Addr:              serverAddr,
		Handler:           NewEngine(registerRoutes),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		certFile, keyFile := viper.GetString(config.RelayTLSCertFile), viper.GetString(config.RelayTLSKeyFile)
		if certFile != "" && keyFile != "" {
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Default().Info(fmt.Sprintf("HTTP server listening on %s", serverAddr))

	select {
	case <-ctx.Done():
		log.Default().Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Default().Info("Graceful stop timed out, forcing shutdown")
			_ = srv.Close()
		}
		return nil
	case err := <-errCh:
		return errors.Wrap(err, "failed to start HTTP server")
	}
}
