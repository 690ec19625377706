// Package oauth implements the credential flows for Slack and Google.
//
// GoogleExchanger builds consent URLs and turns callbacks into stored,
// encrypted credentials. GoogleService hands out authenticated clients whose
// token rotations are written back through a RefreshBroker, forces refreshes,
// revokes grants and attaches spreadsheets. SlackInstaller does the same for
// Slack app installations. Handler exposes the browser facing endpoints of
// both flows.
//
// The state parameter of every flow is produced and verified by
// internal/state; an optional NonceLedger makes each state single use.
//
// Error mapping used by Handler:
//
//   - state errors and ErrTeamMismatch: 400
//   - ProviderError and ErrNoAccessToken: 502
//   - anything else, including crypto.ErrCrypto: 500 with a generic message
package oauth
