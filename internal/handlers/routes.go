package handlers

import (
	"github.com/gin-gonic/gin"
)

// Routes groups the handlers and middleware mounted under /api.
type Routes struct {
	Threads     *ThreadHandler
	Messages    *MessageHandler
	Connections *ConnectionHandler
	Profiles    *ProfileHandler

	Auth         gin.HandlerFunc
	OptionalAuth gin.HandlerFunc
	SendLimiter  gin.HandlerFunc
}

func (r Routes) Register(router gin.IRouter) {
	api := router.Group("/api")

	authed := api.Group("", r.Auth)
	authed.GET("/threads", r.Threads.ListThreads)
	authed.POST("/threads/direct", r.Threads.StartDirect)
	authed.POST("/threads/group", r.Threads.CreateGroup)
	authed.GET("/threads/:thread_id", r.Threads.GetThread)
	authed.PATCH("/threads/:thread_id", r.Threads.UpdateThread)
	authed.DELETE("/threads/:thread_id", r.Threads.DeleteThread)
	authed.POST("/threads/:thread_id/participants", r.Threads.AddParticipants)
	authed.POST("/threads/:thread_id/image", r.Threads.UploadImage)

	authed.GET("/threads/:thread_id/messages", r.Messages.ListMessages)
	send := []gin.HandlerFunc{r.Messages.SendMessage}
	if r.SendLimiter != nil {
		send = append([]gin.HandlerFunc{r.SendLimiter}, send...)
	}
	authed.POST("/threads/:thread_id/messages", send...)
	authed.PATCH("/messages/:message_id", r.Messages.EditMessage)
	authed.DELETE("/messages/:message_id", r.Messages.DeleteMessage)

	authed.GET("/connections", r.Connections.ListConnections)
	authed.POST("/connections", r.Connections.RequestConnection)
	authed.POST("/connections/:connection_id/accept", r.Connections.AcceptConnection)
	authed.DELETE("/connections/:connection_id", r.Connections.DeleteConnection)

	public := api.Group("", r.OptionalAuth)
	public.GET("/profiles/:user_id", r.Profiles.GetProfile)
}
