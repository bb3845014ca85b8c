//go:build windows

package ipc

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"
)

func dialPipe(ctx context.Context, name string) (net.Conn, error) {
	conn, err := winio.DialPipeContext(ctx, name)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrConnectTimeout
		}
		return nil, wrapIo(err)
	}
	return conn, nil
}
