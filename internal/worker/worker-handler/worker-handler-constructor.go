package worker_handler

import (
	user_repo "github.com/ThinkYuvraj/Sociale/internal/repo/user"
	worker_service "github.com/ThinkYuvraj/Sociale/internal/worker/worker-service"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type WorkerHandler struct {
	Users    user_repo.UserRepoContract
	Notifier worker_service.PushNotifier
}

func NewWorkerHandler(users user_repo.UserRepoContract, notifier worker_service.PushNotifier) *WorkerHandler {
	return &WorkerHandler{
		Users:    users,
		Notifier: notifier,
	}
}
