// Package server exposes the credbroker HTTP surface: the Google and Slack
// authorization endpoints, a health probe and the Prometheus metrics
// endpoint.
//
// Routes are taken from configuration so the public paths can match the
// redirect URIs registered with each provider. A flow that is disabled in
// configuration is not mounted at all.
//
//	srv := server.New(cfg, handler, db, m)
//	if err := srv.Run(ctx); err != nil {
//	    return err
//	}
//
// Run blocks until ctx is cancelled, then shuts the listener down within the
// configured shutdown timeout.
package server
