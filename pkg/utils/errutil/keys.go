package errutil

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/types"
)

var (
	// IDs
	SessionIDKey = goerr.NewTypedKey[types.SessionID]("session_id")
	MessageIDKey = goerr.NewTypedKey[types.MessageID]("message_id")
	AccountIDKey = goerr.NewTypedKey[types.AccountID]("account_id")
	RequestIDKey = goerr.NewTypedKey[string]("request_id")
	TabIDKey     = goerr.NewTypedKey[string]("tab_id")

	// Values
	OperationKey  = goerr.NewTypedKey[string]("operation")
	RepositoryKey = goerr.NewTypedKey[string]("repository")
	CollectionKey = goerr.NewTypedKey[string]("collection")
	StorageKeyKey = goerr.NewTypedKey[string]("storage_key")
	QueryKey      = goerr.NewTypedKey[string]("query")
	AttemptKey    = goerr.NewTypedKey[int]("attempt")
	LengthKey     = goerr.NewTypedKey[int]("length")
	DurationKey   = goerr.NewTypedKey[time.Duration]("duration")

	// External services
	EndpointKey   = goerr.NewTypedKey[string]("endpoint")
	HTTPStatusKey = goerr.NewTypedKey[int]("http_status")
	URLKey        = goerr.NewTypedKey[string]("url")
)
