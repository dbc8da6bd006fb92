package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Realtime
	FieldSessionID      = "session_id"
	FieldEventType      = "event_type"
	FieldConversationID = "conversation_id"
	FieldGroupID        = "group_id"
	FieldMessageID      = "message_id"
	FieldRecipientID    = "recipient_id"

	// Service
	FieldService  = "service"
	FieldInstance = "instance_id"

	// gRPC
	FieldGRPCMethod = "grpc_method"
	FieldGRPCCode   = "grpc_code"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
