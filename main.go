package main

import (
	"log"

	"github.com/campushq/educhat/config"
	"github.com/campushq/educhat/db"
	"github.com/campushq/educhat/realtime"
	"github.com/campushq/educhat/server"
	"github.com/campushq/educhat/services"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	gormDB := db.GetDB(conf)
	authRepo := db.NewAuthRepo(gormDB)
	chatRepo := db.NewChatRepo(gormDB)

	authService := services.NewAuthService(authRepo, conf)
	chatService := services.NewChatService(chatRepo, conf)

	registry := realtime.NewRegistry()
	gateway := realtime.NewGateway(registry, chatService, authRepo, conf)

	s := &server.Server{
		Config:         conf,
		AuthRepository: authRepo,
		AuthService:    authService,
		ChatRepository: chatRepo,
		ChatService:    chatService,
		Registry:       registry,
		Gateway:        gateway,
		DB:             *gormDB,
	}

	s.Start()
}
