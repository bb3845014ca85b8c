//go:build !windows

package ipc

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

func dialPipe(ctx context.Context, name string) (net.Conn, error) {
	return nil, newErr(KindProtocol, errors.New("named pipe endpoints are only supported on windows"))
}
