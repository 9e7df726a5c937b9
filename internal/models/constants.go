package models

// Статусы заявки. Допустимые переходы описаны в service.RequestService:
// CREATED -> IN_PROGRESS -> COMPLETED, CREATED -> REJECTED/CANCELLED.
const (
	RequestStatusCreated    = "CREATED"
	RequestStatusInProgress = "IN_PROGRESS"
	RequestStatusCompleted  = "COMPLETED"
	RequestStatusCancelled  = "CANCELLED"
	RequestStatusRejected   = "REJECTED"
)

// RequestStatuses содержит все допустимые статусы заявки.
var RequestStatuses = []string{
	RequestStatusCreated,
	RequestStatusInProgress,
	RequestStatusCompleted,
	RequestStatusCancelled,
	RequestStatusRejected,
}

// IsTerminalStatus сообщает, является ли статус конечным.
func IsTerminalStatus(status string) bool {
	switch status {
	case RequestStatusCompleted, RequestStatusCancelled, RequestStatusRejected:
		return true
	}
	return false
}

// IsValidStatus проверяет, что статус входит в список допустимых.
func IsValidStatus(status string) bool {
	for _, s := range RequestStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Действия над заявкой (PATCH /requests/:id/:action).
const (
	RequestActionAccept   = "accept"
	RequestActionReject   = "reject"
	RequestActionCancel   = "cancel"
	RequestActionComplete = "complete"
)

// Триггеры уведомлений.
const (
	TriggerRequestCreated   = "request_created"
	TriggerRequestUpdated   = "request_updated"
	TriggerRequestAccepted  = "request_accepted"
	TriggerRequestRejected  = "request_rejected"
	TriggerRequestCancelled = "request_cancelled"
	TriggerRequestCompleted = "request_completed"
	TriggerNewChatMessage   = "new_chat_message"
)
