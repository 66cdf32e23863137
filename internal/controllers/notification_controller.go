package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"delivery_backoffice/internal/config"
	"delivery_backoffice/internal/models"
	"delivery_backoffice/internal/realtime"
)

func CreateNotification(c *gin.Context) {
	var body struct {
		UserID  *uint  `json:"user_id"`
		Title   string `json:"title" binding:"required"`
		Message string `json:"message"`
		Type    string `json:"type"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification: " + err.Error()})
		return
	}
	n := models.Notification{UserID: body.UserID, Title: body.Title, Message: body.Message, Type: body.Type}
	if err := notifications.Create(c.Request.Context(), &n); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": n})
}

func ListUserNotifications(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := notifications.ListForUser(c.Request.Context(), userID, c.Query("unread") == "true", limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func GetUnreadCount(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	count, err := notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func MarkNotificationRead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	n, err := notifications.MarkRead(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": n})
}

func MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	updated, err := notifications.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// HandleNotificationWebSocket streams notifications for ?user_id= until the
// client disconnects.
func HandleNotificationWebSocket(c *gin.Context) {
	userID, ok := queryUint(c, "user_id")
	if !ok {
		return
	}
	if userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	var count int64
	if err := config.DB.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		respondError(c, err)
		return
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	conn, err := realtime.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	hub.Serve(conn, userID)
}
