package handler

import (
	"parley/internal/app/hub"
	"parley/internal/app/store"
	"parley/internal/configs"
)

type AppDeps struct {
	Hub      *hub.Hub
	Messages store.MessageStore
	Config   *configs.AppConfig
}
