package handler

import (
	"github.com/avolov/imgd/internal/cache"
	"github.com/avolov/imgd/internal/config"
	"github.com/avolov/imgd/internal/database"
	"github.com/avolov/imgd/internal/storage"
	"github.com/avolov/imgd/internal/transcoder"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	DB     database.Database
	Store  storage.Storage
	Cache  *cache.Cache
	Worker *transcoder.Worker
	Config *config.Config
}
