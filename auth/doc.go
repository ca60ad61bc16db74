// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth verifies bearer credentials before the engine admits a
connection.

The wider application owns login; it hands clients an HS256 JWT signed with
the shared AUTH_TOKEN_SECRET. This package validates that token and
resolves it to a stable Identity:

	verifier := auth.NewVerifier(cfg.AuthTokenSecret)
	id, err := verifier.Verify(bearer)

Unauthenticated connect attempts are rejected at the transport handshake;
no join is accepted beforehand.

IssueToken is the mint half of the contract, used by the auth layer and by
tests:

	token, _ := verifier.IssueToken("user-1", "Alice", time.Hour)
*/
package auth
