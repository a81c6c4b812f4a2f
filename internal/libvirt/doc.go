// Package libvirt provides a connection wrapper around go-libvirt: dialing
// the local UNIX socket or an SSH-tunneled socket.Dialer, pinging, and
// closing. Domain XML generation and all domain lifecycle verbs live in
// internal/driver/local; internal/driver/local and internal/driver/ssh
// (through ConnectWithDialer) are the consumers of this package.
//
// Connection Management:
//
// The package establishes connections to the local libvirt daemon via Unix socket:
//
//	client, err := libvirt.Connect("", 0)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	// Check connection
//	if err := client.Ping(); err != nil {
//	    return err
//	}
//
// Consumer-Side Interfaces:
//
// This package does not define interfaces. internal/storage and
// internal/metadata define their own LibvirtClient interfaces specifying
// only the operations they need; internal/driver/local uses *libvirt.Libvirt
// directly. The *libvirt.Libvirt type satisfies these interfaces
// implicitly, enabling clean dependency injection.
package libvirt
