package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"

	"github.com/coreforge/vmcp/internal/vmcperrors"
)

// ServeConsoleWebSocket serves GET /ws?vm=&token=: the upgrade target a URL
// from GetSerialConsoleURL points at. The token is checked before the
// upgrade so an expired or forged link gets a plain HTTP error instead of a
// WebSocket close frame. Once accepted, the connection is handed straight
// to the Console Hub, which owns fan-out and idle/backpressure handling
// from there.
func (h *Handler) ServeConsoleWebSocket(c *gin.Context) {
	vmName := c.Query("vm")
	token := c.Query("token")
	if vmName == "" || token == "" {
		writeError(c, vmcperrors.New(vmcperrors.KindValidation, "vm and token query parameters are required"))
		return
	}
	if !verifyConsoleToken(h.ConsoleSigningKey, vmName, token, time.Now()) {
		writeError(c, vmcperrors.New(vmcperrors.KindUnauthorized, "console token is invalid or expired"))
		return
	}

	vm, _, err := h.VMs.Get(vmName)
	if err != nil {
		writeError(c, err)
		return
	}
	if vm.Status.OwnerHostID == "" {
		writeError(c, vmcperrors.New(vmcperrors.KindConflict, "VM has no owning host to open a console on"))
		return
	}
	host, err := h.Hosts.Get(vm.Status.OwnerHostID)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	if err := h.Console.Attach(c.Request.Context(), host, vmName, conn); err != nil {
		h.Logger.Warnw("console session ended", "vm", vmName, "error", err)
		conn.Close(websocket.StatusInternalError, "console session ended")
		return
	}
}
