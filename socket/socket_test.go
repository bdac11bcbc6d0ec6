package socket_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/fiberio/fiber"
	"github.com/momentics/fiberio/sched"
	"github.com/momentics/fiberio/socket"
	"github.com/momentics/fiberio/stream"
)

// readFull reads exactly len(p) bytes from r.
func readFull(ctx context.Context, t *testing.T, r *stream.Reader, p []byte) {
	t.Helper()
	for off := 0; off < len(p); {
		n, err := r.Read(ctx, p[off:])
		require.NoError(t, err)
		require.NotZero(t, n)
		off += n
	}
}

func TestServerAcceptEcho(t *testing.T) {
	err := sched.Run(context.Background(), func(ctx context.Context) error {
		lfd, err := socket.TCPSocket()
		require.NoError(t, err)
		srv, err := socket.NewServer(ctx, lfd, socket.SockaddrLoopback(0), 16)
		require.NoError(t, err)
		bound, err := srv.Addr()
		require.NoError(t, err)
		port := bound.(*unix.SockaddrInet4).Port

		return fiber.Fork(ctx,
			func(ctx context.Context) error {
				cfd, err := socket.TCPSocket()
				require.NoError(t, err)
				require.NoError(t, socket.Connect(ctx, cfd, socket.SockaddrLoopback(port)))

				r, w, err := stream.OpenRW(ctx, cfd)
				require.NoError(t, err)
				_, err = w.WriteString("ping")
				require.NoError(t, err)
				require.NoError(t, w.Flush(ctx))

				echo := make([]byte, 4)
				readFull(ctx, t, r, echo)
				require.Equal(t, "ping", string(echo))

				r.Close()
				w.Close()
				srv.Close()
				return nil
			},
			func(ctx context.Context) error {
				return srv.Serve(ctx, func(ctx context.Context, sess *socket.Session) error {
					r, w, err := sess.Open(ctx)
					if err != nil {
						return err
					}
					defer r.Close()
					defer w.Close()

					buf := make([]byte, 4)
					for off := 0; off < len(buf); {
						n, err := r.Read(ctx, buf[off:])
						if err == io.EOF {
							return nil
						}
						if err != nil {
							return err
						}
						off += n
					}
					if _, err := w.Write(buf); err != nil {
						return err
					}
					return w.Flush(ctx)
				})
			})
	})
	require.NoError(t, err)
}

func TestConnectRefused(t *testing.T) {
	err := sched.Run(context.Background(), func(ctx context.Context) error {
		// Bind a listener to grab an ephemeral port, then close it so
		// nothing accepts there.
		lfd, err := socket.TCPSocket()
		require.NoError(t, err)
		require.NoError(t, unix.Bind(lfd, socket.SockaddrLoopback(0)))
		bound, err := unix.Getsockname(lfd)
		require.NoError(t, err)
		port := bound.(*unix.SockaddrInet4).Port
		require.NoError(t, unix.Close(lfd))

		cfd, err := socket.TCPSocket()
		require.NoError(t, err)
		defer unix.Close(cfd)
		require.Error(t, socket.Connect(ctx, cfd, socket.SockaddrLoopback(port)))
		return nil
	})
	require.NoError(t, err)
}

func TestServerCloseIdempotent(t *testing.T) {
	err := sched.Run(context.Background(), func(ctx context.Context) error {
		lfd, err := socket.TCPSocket()
		require.NoError(t, err)
		srv, err := socket.NewServer(ctx, lfd, socket.SockaddrLoopback(0), 4)
		require.NoError(t, err)

		return fiber.Fork(ctx,
			func(ctx context.Context) error {
				srv.Close()
				srv.Close()
				return nil
			},
			func(ctx context.Context) error {
				return srv.Serve(ctx, func(context.Context, *socket.Session) error { return nil })
			})
	})
	require.NoError(t, err)
}
