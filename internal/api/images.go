package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListImages serves GET /images. Images are seeded out-of-band (operator
// tooling writes the Store row once a base image is staged on every host),
// so there is no create/delete endpoint here per §6.
func (h *Handler) ListImages(c *gin.Context) {
	images, err := h.Images.List()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": images})
}
