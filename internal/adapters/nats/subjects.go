package natsadapter

import (
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectSnapshotPrefix is followed by the collection name.
	SubjectSnapshotPrefix = "soundlines.snapshot."
	// SubjectSnapshotAll matches every snapshot event.
	SubjectSnapshotAll = "soundlines.snapshot.>"
	// SubjectRefresh carries "entities", "cells", "all" or an empty payload.
	SubjectRefresh = "soundlines.refresh"

	snapshotStream = "SOUNDLINES_SNAPSHOTS"
)

// SnapshotSubject returns the subject events for kind are published on.
func SnapshotSubject(kind string) string {
	return SubjectSnapshotPrefix + kind
}

// ParseRefreshKind normalises a refresh payload. Empty means "all".
func ParseRefreshKind(data []byte) (string, error) {
	kind := strings.ToLower(strings.TrimSpace(string(data)))
	switch kind {
	case "":
		return "all", nil
	case "all", "entities", "cells":
		return kind, nil
	default:
		return "", fmt.Errorf("unknown refresh kind %q", kind)
	}
}

// RawConn creates a plain NATS connection (e.g. for the WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("soundlines"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
