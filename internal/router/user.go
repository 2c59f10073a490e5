package router

import "github.com/gin-gonic/gin"

func (r *Router) userRoutes(version *gin.RouterGroup) {
	users := version.Group("/users")
	{
		// All user routes require JWT authentication
		users.Use(r.jwtMw.RequireAuth())
		{
			users.GET("/me", r.userHandler.GetCurrentUser)

			users.PUT("/me", r.userHandler.UpdateAccount)

			users.PUT("/me/password", r.userHandler.UpdatePassword)

			users.PATCH("/me/avatar", r.userHandler.UpdateAvatar)

			users.PATCH("/me/cover-image", r.userHandler.UpdateCoverImage)
		}
	}
}
