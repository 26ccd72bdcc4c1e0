package vectorutils

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/loomworks/engram/pkg/vector"
	qdrantvec "github.com/loomworks/engram/pkg/vector/qdrant"
	"github.com/loomworks/engram/pkg/vector/sqlitevec"
)

type NewVectorDriverOpts struct {
	ProviderType string
	Target       string
	Collection   string
	Dimensions   uint
	Logger       *zap.Logger
}

// NewVectorDriver builds a vector.Driver from provider configuration.
// "sqlite" targets a database file path (or ":memory:"); "qdrant" targets a
// gRPC URL such as "localhost:6334".
func NewVectorDriver(ctx context.Context, o *NewVectorDriverOpts) (vector.Driver, error) {
	switch o.ProviderType {
	case "sqlite", "":
		return sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     o.Target,
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "qdrant":
		host, port, err := splitHostPort(o.Target)
		if err != nil {
			return nil, err
		}
		return qdrantvec.NewDriver(ctx, qdrantvec.Config{
			Host:       host,
			Port:       port,
			Collection: o.Collection,
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector store provider: %s", o.ProviderType)
	}
}

func splitHostPort(target string) (string, int, error) {
	if target == "" {
		return "", 0, fmt.Errorf("vector store target is required")
	}

	// Accept both bare host:port and URL forms.
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		u = &url.URL{Host: target}
	}

	host := u.Hostname()
	if host == "" {
		host = target
	}

	port := 6334
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid vector store port %q: %w", p, err)
		}
	}

	return host, port, nil
}
