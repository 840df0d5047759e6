package app

import (
	"time"

	"github.com/valyala/fasthttp"

	"github.com/samsmithyeah/flock-sub002/pkg/api"
	"github.com/samsmithyeah/flock-sub002/pkg/auth"
	"github.com/samsmithyeah/flock-sub002/pkg/config/banner"
)

// PrintBanner prints the startup banner and build info.
func (a *App) PrintBanner() {
	verStr := a.version
	if a.commit != "none" && a.commit != "" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" && a.buildDate != "" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}

// startHTTP builds and starts the fasthttp server, returning a channel
// that delivers fatal server errors.
func (a *App) startHTTP() <-chan error {
	cfg := a.eff.Config

	secCfg := auth.SecConfig{
		AllowedOrigins: append([]string{}, cfg.Security.CORS.AllowedOrigins...),
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		IPWhitelist:    append([]string{}, cfg.Security.IPWhitelist...),
		BackendKeys:    map[string]struct{}{},
		FrontendKeys:   map[string]struct{}{},
		AdminKeys:      map[string]struct{}{},
	}
	for _, k := range cfg.Security.APIKeys.Backend {
		secCfg.BackendKeys[k] = struct{}{}
	}
	for _, k := range cfg.Security.APIKeys.Frontend {
		secCfg.FrontendKeys[k] = struct{}{}
	}
	for _, k := range cfg.Security.APIKeys.Admin {
		secCfg.AdminKeys[k] = struct{}{}
	}

	fastHandler := api.Handler()
	fastHandler = auth.RequireSignedUserFast(fastHandler)
	fastHandler = auth.AuthenticateRequestMiddlewareFast(secCfg)(fastHandler)

	const (
		readBufferSize     = 64 * 1024       // 64 KiB read buffer per connection
		maxRequestBodySize = 5 * 1024 * 1024 // 5 MiB max request body
		readTimeout        = 10 * time.Second
		idleTimeout        = 30 * time.Second
	)
	a.srvFast = &fasthttp.Server{
		Handler:            fastHandler,
		ReadBufferSize:     readBufferSize,
		MaxRequestBodySize: maxRequestBodySize,
		ReduceMemoryUsage:  true,
		ReadTimeout:        readTimeout,
		// WriteTimeout stays unset: the event stream endpoints hold
		// their response open indefinitely.
		IdleTimeout: idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		addr := a.eff.Addr
		tls := cfg.Server.TLS
		if tls.CertFile != "" && tls.KeyFile != "" {
			errCh <- a.srvFast.ListenAndServeTLS(addr, tls.CertFile, tls.KeyFile)
			return
		}
		errCh <- a.srvFast.ListenAndServe(addr)
	}()
	return errCh
}
