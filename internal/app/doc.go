// Package app wires credbroker together.
//
// Bootstrap happens in two phases. NewApplication loads configuration and
// secret material, opens the credential store and builds the OAuth flows.
// Run then serves HTTP until the context is cancelled, purging expired state
// nonces in the background when a database ledger is in use.
//
//	cfg := app.NewConfig(false, false, "config.yaml")
//	application, err := app.NewApplication(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer application.Close()
//	return application.Run(ctx)
//
// CLI commands that only need the store or the Google service use
// NewApplication the same way and reach the components through Services.
package app
