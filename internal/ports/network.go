package ports

import "context"

type ConnectivityPort interface {
	IsOnline(ctx context.Context) bool
}

// MirrorMapPort loads the host substitution table used to derive
// alternate download URLs: primary host -> alternate hosts, tried in
// order.
type MirrorMapPort interface {
	Load() (map[string][]string, error)
}
