/*
Package inspector is the client-side core of an event inspection SDK.

Before an analytics event leaves the device, the host asks the Inspector for
the event's spec, validates the event's properties against it and optionally
encrypts sensitive values for the schema service.

# Basic Usage

	insp, err := inspector.New(apiKey, streamID,
	    inspector.WithFetcher(fetch.Func(myHTTPFetch)),
	    inspector.WithPublicKey(recipientKeyHex),
	)
	if err != nil {
	    return err
	}
	defer insp.Close()

	result := insp.Validate(ctx, "Signup", map[string]any{
	    "method": "email",
	    "age":    34,
	})
	encrypted := insp.EncryptValues(props, "email")

# Specs and Caching

Specs are cached per (api key, stream id, event name) with a TTL and LRU
eviction (see package cache). A fetch that finds no spec is cached too, so
unknown events do not cause repeated requests. Concurrent misses for the same
event share one fetch. Fetch errors are not cached.

# Branches

Every spec names the schema branch it came from. The active branch is kept
in storage (see package storage). When a fetched spec reports a different
branch, every cached spec is dropped before the new one is stored.

# Failure Model

Validate and EncryptValues never return errors and never panic on bad input:
a missing spec, a fetch failure or an unusable key just means the feature is
skipped for that call. Failures are logged through slog and counted through
the configured MetricsRecorder.
*/
package inspector
