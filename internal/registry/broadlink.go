package registry

import (
	"context"
	"time"

	"github.com/nerrad567/mqtt2broadlink/internal/broadlink"
)

// BroadlinkOpener opens devices over the Broadlink UDP protocol.
type BroadlinkOpener struct {
	Timeout time.Duration
	LocalIP string
}

// Open implements Opener.
func (o BroadlinkOpener) Open(ctx context.Context, id Identity) (Device, error) {
	client, err := broadlink.Open(ctx, broadlink.Config{
		Type:    id.Type,
		Host:    id.Host,
		MAC:     id.MAC,
		Timeout: o.Timeout,
		LocalIP: o.LocalIP,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
