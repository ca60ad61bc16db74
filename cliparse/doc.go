// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse builds the server configuration.

Environment variables are parsed first (env tags on Config), then CLI flags
override them:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

Settings:

  - PORT (-p): server port (default 3319)
  - DATABASE_URL (-d): Postgres URL for session snapshots; empty runs the
    engine in ephemeral mode with no persistence adapter
  - AUTH_TOKEN_SECRET (-auth-secret): bearer token secret, required
  - ALLOW_SPECTATORS (-spectators): allow read-only joins to ended sessions
  - HEARTBEAT_SECONDS (-heartbeat): silent-connection timeout (default 60)
*/
package cliparse
