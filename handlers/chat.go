package handlers

import (
	"context"
	"net/http"
	"time"

	"weatherfit/database"
	"weatherfit/identity"
	"weatherfit/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// GetChatList returns the caller's rooms, newest activity first, with the
// other participant resolved and masked if their account is gone.
func GetChatList(c *gin.Context) {
	userIDStr := c.GetString("userId")
	userID, err := primitive.ObjectIDFromHex(userIDStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rooms, err := chatStore.ListRooms(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch chats"})
		return
	}

	response := make([]map[string]interface{}, len(rooms))
	for i, room := range rooms {
		partnerMap := map[string]interface{}{
			"id":        "",
			"name":      "Unknown",
			"avatar":    identity.FallbackAvatar,
			"isDeleted": false,
		}

		peer, err := resolver.ResolveOtherParticipant(ctx, room, userID)
		if err == nil {
			partnerMap["id"] = peer.ID.Hex()
			partnerMap["name"] = peer.Name
			partnerMap["isDeleted"] = peer.IsDeleted
			if peer.Photo != "" {
				partnerMap["avatar"] = peer.Photo
			}
		}

		response[i] = map[string]interface{}{
			"id":            room.ID.Hex(),
			"lastMessage":   room.LastMessage,
			"lastMessageAt": room.LastMessageAt,
			"unreadCount":   room.UnreadFor(userID),
			"partner":       partnerMap,
		}
	}

	c.JSON(http.StatusOK, response)
}

// CreateChat finds or creates the room between the caller and one other
// user. Failure here blocks starting a chat, so it is the one hard error
// in the flow.
func CreateChat(c *gin.Context) {
	var req struct {
		OtherUserID string `json:"otherUserId" binding:"required"`
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

	otherID, err := primitive.ObjectIDFromHex(req.OtherUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid participant ID"})
		return
	}

	if otherID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot chat with yourself"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	self, err := loadParticipant(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	other, err := loadParticipant(ctx, otherID)
	if err == mongo.ErrNoDocuments {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User no longer exists"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load participant"})
		return
	}

	roomID, err := chatStore.GetOrCreateRoom(ctx, self, other)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create chat room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": roomID.Hex()})
}

// GetChat returns one room with the peer resolved, for the room header.
func GetChat(c *gin.Context) {
	roomIDStr := c.Param("id")
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
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch chat"})
		return
	}
	if !room.Has(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to chat"})
		return
	}

	peer, err := resolver.ResolveOtherParticipant(ctx, room, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve participant"})
		return
	}

	avatar := peer.Photo
	if avatar == "" {
		avatar = identity.FallbackAvatar
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            room.ID.Hex(),
		"lastMessage":   room.LastMessage,
		"lastMessageAt": room.LastMessageAt,
		"unreadCount":   room.UnreadFor(userID),
		"partner": gin.H{
			"id":        peer.ID.Hex(),
			"name":      peer.Name,
			"avatar":    avatar,
			"isDeleted": peer.IsDeleted,
		},
	})
}

func loadParticipant(ctx context.Context, userID primitive.ObjectID) (models.Participant, error) {
	var user models.User
	if err := database.Users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		return models.Participant{}, err
	}
	return models.Participant{ID: user.ID, Name: user.Name, Photo: user.Avatar}, nil
}
