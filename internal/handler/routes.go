/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package handler

import "github.com/gin-gonic/gin"

func (h *HttpHandlers) RegisterRoutes(router *gin.Engine) {
	registerValidators()

	router.Use(h.LoggerMiddleware())
	router.Use(h.CORSMiddleware())

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", h.RateLimitMiddleware(), h.HandleSignup)
			authGroup.POST("/login", h.RateLimitMiddleware(), h.HandleLogin)
			authGroup.GET("/verify", h.AuthMiddleware(), h.HandleVerify)
		}

		chat := api.Group("/chat")
		chat.Use(h.AuthMiddleware())
		{
			chat.POST("", h.HandleChat)
			chat.GET("/history", h.HandleChatHistory)
		}

		projects := api.Group("/projects")
		projects.Use(h.AuthMiddleware())
		{
			projects.GET("", h.HandleListProjects)
			projects.POST("", h.HandleCreateProject)
			projects.GET("/:id", h.HandleGetProject)
			projects.PUT("/:id", h.HandleUpdateProject)
			projects.DELETE("/:id", h.HandleDeleteProject)

			projects.POST("/:id/todos", h.HandleCreateTodo)
			projects.POST("/:id/todos/generate", h.HandleGenerateTodos)
			projects.PUT("/:id/todos/:todo_id", h.HandleUpdateTodo)
			projects.DELETE("/:id/todos/:todo_id", h.HandleDeleteTodo)
			projects.POST("/:id/todos/:todo_id/schedule", h.HandleScheduleTodo)

			projects.POST("/:id/chat", h.HandleProjectChat)
			projects.GET("/:id/chat/history", h.HandleProjectChatHistory)

			projects.GET("/:id/plan", h.HandleGetPlan)
			projects.PUT("/:id/plan", h.HandleUpdatePlan)
			projects.POST("/:id/plan", h.HandleGeneratePlan)
			projects.DELETE("/:id/plan", h.HandleDeletePlan)

			projects.POST("/:id/schedule", h.HandleScheduleProject)
		}

		settings := api.Group("/settings")
		settings.Use(h.AuthMiddleware())
		{
			settings.POST("/password", h.HandleChangePassword)
			settings.GET("/preferences", h.HandleGetPreferences)
			settings.PUT("/preferences", h.HandleUpdatePreferences)

			calendar := settings.Group("/google-calendar")
			{
				calendar.GET("/authorize", h.HandleCalendarAuthorize)
				calendar.GET("/callback", h.HandleCalendarCallback)
				calendar.GET("/status", h.HandleCalendarStatus)
				calendar.DELETE("/disconnect", h.HandleCalendarDisconnect)
			}
		}
	}
}
