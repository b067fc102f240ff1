package controllers

import (
	"net/http"

	"github.com/Kariqs/amexan-storefront/services"
	"github.com/gin-gonic/gin"
)

type AssetController struct {
	Assets *services.AssetService
}

// ServeUpload streams a stored image, falling back to the placeholder.
func (c *AssetController) ServeUpload(ctx *gin.Context) {
	name := ctx.Param("filename")
	p := c.Assets.Resolve(name)
	if p == "" {
		ctx.Status(http.StatusNotFound)
		return
	}
	if p != c.Assets.Placeholder() {
		// Stored files are always JPEG whatever their extension.
		ctx.Header("Content-Type", "image/jpeg")
	}
	ctx.Header("Cache-Control", "public, max-age=86400")
	ctx.File(p)
}
