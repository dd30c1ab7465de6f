package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"relay-bot-backend/internal/bot"
	"relay-bot-backend/internal/telegram"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// NewRouter builds the webhook HTTP surface.
//
// The webhook endpoint always answers 200 "OK", even for payloads it
// rejects: returning an error status makes the Bot API redeliver the same
// update in a loop. Processing happens in the background after the ack.
func NewRouter(dispatcher *bot.Dispatcher, origin, webhookSecret string, log zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	corsConfig := cors.DefaultConfig()
	if origin != "" {
		corsConfig.AllowOrigins = []string{origin}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", secretTokenHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/webhook", func(c *gin.Context) {
		if webhookSecret != "" && c.GetHeader(secretTokenHeader) != webhookSecret {
			log.Warn().Str("ip", c.ClientIP()).Msg("webhook secret mismatch")
			c.String(http.StatusOK, "OK")
			return
		}

		var update telegram.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			log.Warn().Err(err).Msg("malformed webhook payload")
			c.String(http.StatusOK, "OK")
			return
		}
		c.String(http.StatusOK, "OK")

		// Detached from the request context: the ack above already ended the
		// HTTP exchange.
		go dispatcher.Dispatch(context.Background(), &update)
	})

	return router
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}
