package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weatherfit/database"
	"weatherfit/handlers"
	"weatherfit/identity"
	"weatherfit/middleware"
	"weatherfit/routes"
	"weatherfit/store"
	"weatherfit/websocket"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("🚀 Starting WeatherFit Chat Server...")

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// ===== REQUIRED ENV VARIABLES =====
	if os.Getenv("JWT_SECRET") == "" || os.Getenv("MONGODB_URI") == "" {
		log.Fatal("❌ JWT_SECRET and MONGODB_URI must be set")
	}

	// ===== CONNECT TO MONGODB WITH RETRY =====
	log.Println("🔌 Connecting to MongoDB...")

	var dbErr error
	for i := 1; i <= 3; i++ {
		if err := database.ConnectMongo(); err != nil {
			dbErr = err
			log.Printf("❌ MongoDB connection attempt %d failed: %v", i, err)
			time.Sleep(2 * time.Second)
			continue
		}
		dbErr = nil
		break
	}
	if dbErr != nil {
		log.Fatal("❌ Failed to connect to MongoDB:", dbErr)
	}
	defer database.DisconnectMongo()

	log.Println("✅ MongoDB connected successfully")

	// ===== REDIS (optional bridge) =====
	if err := database.ConnectRedis(); err != nil {
		log.Printf("❌ Redis connection failed, continuing without bridge: %v", err)
	}
	defer database.DisconnectRedis()

	// ===== GIN MODE =====
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
		log.Println("⚙️ Running in RELEASE mode")
	} else {
		gin.SetMode(gin.DebugMode)
		log.Println("⚙️ Running in DEBUG mode")
	}

	// ===== WIRING =====
	chatStore := store.NewService(database.Rooms, database.Messages)
	resolver := identity.NewResolver(identity.NewMongoFinder(database.Users))

	handlers.SetStore(chatStore)
	handlers.SetResolver(resolver)
	handlers.SetVAPIDPrivateKey(os.Getenv("VAPID_PRIVATE_KEY"))

	// ===== ROUTER =====
	router := routes.SetupRouter()

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "WeatherFit Chat Backend Running 🚀",
			"service": "healthy",
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	// ===== WEBSOCKET HUB =====
	log.Println("🔌 Initializing WebSocket manager...")

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()

	wsManager := websocket.NewManager()
	if database.Redis != nil {
		bridge := websocket.NewRedisBridge(database.Redis)
		wsManager.SetBridge(bridge)
		bridge.Listen(hubCtx, wsManager)
		log.Println("📢 Redis bridge active, hub broadcasts shared across instances")
	}
	go wsManager.Run(hubCtx)

	handlers.SetWebSocketManager(wsManager)

	wsHandler := websocket.Handler(wsManager, middleware.UserIDFromToken)
	router.GET("/ws", func(c *gin.Context) {
		wsHandler(c.Writer, c.Request)
	})

	log.Println("✅ WebSocket endpoint: /ws")

	// ===== SERVER CONFIG =====
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server running on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Server error:", err)
		}
	}()

	log.Println("✅ Server is ready and accepting connections")

	// ===== GRACEFUL SHUTDOWN =====
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println("❌ Forced shutdown:", err)
	}

	log.Println("👋 Server stopped gracefully")
}
