package local

import (
	"context"
	"io"

	"github.com/digitalocean/go-libvirt"

	localvirt "github.com/coreforge/vmcp/internal/libvirt"
	"github.com/coreforge/vmcp/internal/driver"
	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// consoleStream adapts a go-libvirt RPC stream to driver.ConsoleStream so the
// console hub can treat it identically to the ssh driver's channel-backed
// stream. It owns the libvirt connection it was opened on and closes it when
// the stream is closed.
type consoleStream struct {
	conn   *localvirt.Client
	stream *libvirt.Stream
}

func (c *consoleStream) Read(p []byte) (int, error)  { return c.stream.Read(p) }
func (c *consoleStream) Write(p []byte) (int, error) { return c.stream.Write(p) }

func (c *consoleStream) Close() error {
	err := c.stream.Finish()
	c.conn.Close()
	return err
}

var _ io.ReadWriteCloser = (*consoleStream)(nil)

// openSerialConsole opens the domain's PTY-backed serial console as a
// bidirectional byte stream. The returned stream holds its own libvirt
// connection for the lifetime of the session, closed when the caller closes
// the stream.
func openSerialConsole(ctx context.Context, d *Driver, vmName string) (driver.ConsoleStream, error) {
	c, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	dom, err := c.Libvirt().DomainLookupByName(vmName)
	if err != nil {
		c.Close()
		return nil, vmcperrors.Wrap(vmcperrors.KindNotFound, err, "lookup domain %s", vmName)
	}

	stream, err := c.Libvirt().DomainOpenConsole(dom, libvirt.OptString{}, libvirt.DomainConsoleForce)
	if err != nil {
		c.Close()
		return nil, vmcperrors.Wrap(vmcperrors.KindDriverUnavailable, err, "open console for %s", vmName)
	}

	return &consoleStream{conn: c, stream: stream}, nil
}
