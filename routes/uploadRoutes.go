package routes

import (
	"github.com/Kariqs/amexan-storefront/controllers"
	"github.com/gin-gonic/gin"
)

func UploadRoutes(server *gin.Engine, assets *controllers.AssetController) {
	server.GET("/uploads/:filename", assets.ServeUpload)
	server.HEAD("/uploads/:filename", assets.ServeUpload)
}
