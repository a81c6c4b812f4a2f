package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coreforge/vmcp/api/v1alpha1"
)

// GetHealth reports store reachability and a rollup of registered hosts'
// driver health, per §6: GET /health -> {status, components:{store,
// drivers, scheduler}}.
func (h *Handler) GetHealth(c *gin.Context) {
	components := gin.H{}

	hosts, err := h.Hosts.List()
	if err != nil {
		components["store"] = "unavailable"
		components["drivers"] = "unknown"
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "components": components})
		return
	}
	components["store"] = "ok"

	driversOK := 0
	for _, host := range hosts {
		if host.Status.Health == v1alpha1.HostHealthReady {
			driversOK++
		}
	}
	switch {
	case len(hosts) == 0:
		components["drivers"] = "unknown"
	case driversOK == len(hosts):
		components["drivers"] = "ok"
	case driversOK > 0:
		components["drivers"] = "degraded"
	default:
		components["drivers"] = "unavailable"
	}
	components["scheduler"] = "ok"

	status := "ok"
	if components["drivers"] == "unavailable" {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "components": components})
}
