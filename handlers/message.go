package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"weatherfit/database"
	"weatherfit/models"
	"weatherfit/store"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// GetMessages returns the room's full ordered log. Sender snapshots are
// returned as stored; masking of deleted senders happens at render time
// from the room's partner state, never by rewriting history.
func GetMessages(c *gin.Context) {
	roomIDStr := c.Param("roomId")
	roomID, err := primitive.ObjectIDFromHex(roomIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat ID"})
		return
	}

	userIDStr := c.GetString("userId")
	userID, err := primitive.ObjectIDFromHex(userIDStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	room, err := chatStore.GetRoom(ctx, roomID)
	if err == mongo.ErrNoDocuments {
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify chat access"})
		return
	}
	if !room.Has(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to chat"})
		return
	}

	messages, err := chatStore.ListMessages(ctx, roomID)
	if err != nil {
		log.Printf("GetMessages error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}

// SendMessage appends to the durable log, fans the message out on the
// ephemeral bus for clients currently in the room, and pushes a web
// notification to the recipient.
func SendMessage(c *gin.Context) {
	var req struct {
		RoomID  string `json:"roomId" binding:"required"`
		Message string `json:"message" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userIDStr := c.GetString("userId")
	userID, err := primitive.ObjectIDFromHex(userIDStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	roomID, err := primitive.ObjectIDFromHex(req.RoomID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	room, err := chatStore.GetRoom(ctx, roomID)
	if err == mongo.ErrNoDocuments {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to chat"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify chat access"})
		return
	}

	// Recipient-unavailable is policy, not a transport failure: refuse the
	// send before writing anything.
	peer, err := resolver.ResolveOtherParticipant(ctx, room, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve participant"})
		return
	}
	if peer.IsDeleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Recipient is no longer available"})
		return
	}

	sender, err := loadParticipant(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	msg, err := chatStore.Append(ctx, models.Message{
		RoomID:      roomID,
		SenderID:    userID,
		SenderName:  sender.Name,
		SenderPhoto: sender.Photo,
		Body:        req.Message,
	})
	if err == store.ErrNotParticipant {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to chat"})
		return
	}
	if err != nil {
		log.Printf("SendMessage append error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	// Instant fan-out to sockets currently in the room; best-effort, the
	// durable subscription is what guarantees delivery.
	if wsManager != nil {
		if env, err := models.NewEnvelope(models.EnvReceive, models.WireMessage(msg)); err == nil {
			wsManager.Broadcast(roomID.Hex(), env)
		}
	}

	// Send push notification to the recipient
	go notifyRecipient(peer.ID, sender, msg.Body)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Message sent",
		"id":      msg.ID.Hex(),
	})
}

// MarkAsRead flags every unread partner message in the room as read and
// zeroes the caller's unread counter. Safe to call repeatedly.
func MarkAsRead(c *gin.Context) {
	roomIDStr := c.Param("roomId")
	roomID, err := primitive.ObjectIDFromHex(roomIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat ID"})
		return
	}

	userIDStr := c.GetString("userId")
	userID, err := primitive.ObjectIDFromHex(userIDStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	room, err := chatStore.GetRoom(ctx, roomID)
	if err != nil || !room.Has(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to chat"})
		return
	}

	if err := chatStore.MarkRead(ctx, roomID, userID); err != nil {
		log.Printf("MarkAsRead error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark as read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Marked as read"})
}

// notifyRecipient delivers a best-effort web push for the new message.
func notifyRecipient(recipientID primitive.ObjectID, sender models.Participant, body string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in push notification: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if len(body) > 100 {
		body = body[:100] + "..."
	}
	payload := map[string]string{
		"title": sender.Name + " sent a message",
		"body":  body,
		"icon":  sender.Photo,
	}
	payloadBytes, _ := json.Marshal(payload)

	var sub PushSubscription
	err := database.PushSubs.FindOne(ctx, bson.M{"userId": recipientID}).Decode(&sub)
	if err == mongo.ErrNoDocuments {
		return // No subscription
	}
	if err != nil {
		log.Printf("Failed to find subscription: %v", err)
		return
	}

	resp, err := webpush.SendNotification(payloadBytes, &sub.Sub, &webpush.Options{
		Subscriber:      "noreply@weatherfit.app",
		VAPIDPrivateKey: vapidPrivateKey,
		TTL:             30,
	})
	if err != nil {
		log.Printf("Failed to send push: %v", err)
		// 410 Gone means the browser dropped the subscription.
		if resp != nil && resp.StatusCode == http.StatusGone {
			if _, delErr := database.PushSubs.DeleteOne(ctx, bson.M{"userId": recipientID}); delErr != nil {
				log.Printf("Failed to delete expired subscription: %v", delErr)
			}
		}
		return
	}
	resp.Body.Close()
}
