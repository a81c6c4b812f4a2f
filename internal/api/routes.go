package api

import "github.com/gin-gonic/gin"

// RegisterRoutes wires every handler onto engine, matching spec.md §6's
// endpoint list. Mutating verbs follow the thin-validator discipline
// documented on Handler: a request here only ever resolves, validates, and
// enqueues.
func RegisterRoutes(engine *gin.Engine, h *Handler) {
	engine.GET("/health", h.GetHealth)
	engine.GET("/ws", h.ServeConsoleWebSocket)

	api := engine.Group("/api")
	{
		vpcs := api.Group("/vpcs")
		vpcs.GET("", h.ListVPCs)
		vpcs.POST("", h.CreateVPC)
		vpcs.GET("/:name", h.GetVPC)
		vpcs.DELETE("/:name", h.DeleteVPC)
		vpcs.POST("/:name/subnets", h.CreateSubnet)
		vpcs.DELETE("/:name/subnets/:subnet", h.DeleteSubnet)
		vpcs.GET("/:name/firewall-rules", h.ListFirewallRules)
		vpcs.POST("/:name/firewall-rules", h.CreateFirewallRule)
		vpcs.DELETE("/:name/firewall-rules/:id", h.DeleteFirewallRule)

		vms := api.Group("/vms")
		vms.GET("", h.ListVMs)
		vms.POST("", h.CreateVM)
		vms.GET("/:id", h.GetVM)
		vms.DELETE("/:id", h.DeleteVM)
		vms.GET("/:id/status", h.GetVMStatus)
		vms.GET("/:id/metrics", h.GetVMMetrics)
		vms.GET("/:id/serial-console", h.GetSerialConsoleURL)
		vms.POST("/:id/start", h.StartVM)
		vms.POST("/:id/stop", h.StopVM)
		vms.POST("/:id/restart", h.RestartVM)
		vms.POST("/:id/resize", h.ResizeVM)
		vms.POST("/:id/terminate", h.TerminateVM)
		vms.POST("/:id/disks/attach", h.AttachDisk)
		vms.POST("/:id/disks/detach", h.DetachDisk)
		vms.POST("/:id/ips/attach", h.AttachFloatingIP)
		vms.POST("/:id/ips/detach", h.DetachFloatingIP)

		disks := api.Group("/disks")
		disks.GET("", h.ListDisks)
		disks.POST("", h.CreateDisk)
		disks.DELETE("/:id", h.DeleteDisk)
		disks.POST("/:id/resize", h.ResizeDisk)

		ips := api.Group("/ips")
		ips.GET("", h.ListFloatingIPs)
		ips.POST("", h.CreateFloatingIP)
		ips.DELETE("/:addr", h.DeleteFloatingIP)

		api.GET("/images", h.ListImages)

		migrations := api.Group("/migrations")
		migrations.GET("", h.ListMigrations)
		migrations.POST("", h.CreateMigration)
		migrations.GET("/:vm/status", h.GetMigrationStatus)
		migrations.DELETE("/:vm", h.DeleteMigration)
	}
}
